package session

import "fmt"

// State is a discovery session state.
type State int

// Session states.
const (
	Idle State = iota
	Navigating
	Loaded
	BotDetected
	NavError
	Exploring
	Finalizing
	Succeeded
	Exhausted
	Failed
)

var stateNames = map[State]string{
	Idle:        "idle",
	Navigating:  "navigating",
	Loaded:      "loaded",
	BotDetected: "bot_detected",
	NavError:    "nav_error",
	Exploring:   "exploring",
	Finalizing:  "finalizing",
	Succeeded:   "succeeded",
	Exhausted:   "exhausted",
	Failed:      "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Succeeded || s == Exhausted || s == Failed
}

// transitions lists the allowed successor states.
var transitions = map[State][]State{
	Idle:        {Navigating, Failed},
	Navigating:  {Loaded, BotDetected, NavError},
	Loaded:      {Exploring},
	BotDetected: {Navigating, Finalizing},
	NavError:    {Navigating, Finalizing},
	Exploring:   {Finalizing},
	Finalizing:  {Succeeded, Exhausted},
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// machine holds the FSM position and the retry budget.
type machine struct {
	state      State
	retryCount int
	maxRetries int
	onChange   func(from, to State, retryCount int)
}

func newMachine(maxRetries int) *machine {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &machine{state: Idle, maxRetries: maxRetries}
}

// to moves the machine to next. An illegal move is a programming error.
func (m *machine) to(next State) {
	if !CanTransition(m.state, next) {
		panic(fmt.Sprintf("session: illegal transition %s -> %s", m.state, next))
	}
	prev := m.state
	m.state = next
	if m.onChange != nil {
		m.onChange(prev, next, m.retryCount)
	}
}

// retry spends one unit of the retry budget after a failed attempt. It
// returns false once maxRetries attempts have failed.
func (m *machine) retry() bool {
	if m.state != BotDetected && m.state != NavError {
		panic(fmt.Sprintf("session: retry from %s", m.state))
	}
	m.retryCount++
	return m.retryCount < m.maxRetries
}
