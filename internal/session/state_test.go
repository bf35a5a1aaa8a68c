package session

import (
	"sync"
	"testing"
)

// =============================================================================
// State Machine Tests
// =============================================================================

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{Idle, Navigating, true},
		{Idle, Failed, true},
		{Navigating, Loaded, true},
		{Navigating, BotDetected, true},
		{Navigating, NavError, true},
		{BotDetected, Navigating, true},
		{NavError, Navigating, true},
		{NavError, Finalizing, true},
		{Loaded, Exploring, true},
		{Exploring, Finalizing, true},
		{Finalizing, Succeeded, true},
		{Finalizing, Exhausted, true},
		{Idle, Exploring, false},
		{Loaded, Navigating, false},
		{Exploring, Navigating, false},
		{Succeeded, Navigating, false},
		{Exhausted, Navigating, false},
		{Failed, Navigating, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestMachine_IllegalTransitionPanics(t *testing.T) {
	m := newMachine(3)
	defer func() {
		if recover() == nil {
			t.Error("illegal transition should panic")
		}
	}()
	m.to(Exploring)
}

func TestMachine_RetryBudget(t *testing.T) {
	m := newMachine(3)
	var seen []string
	m.onChange = func(from, to State, _ int) {
		seen = append(seen, from.String()+">"+to.String())
	}

	m.to(Navigating)
	allowed := 0
	for {
		m.to(NavError)
		if !m.retry() {
			break
		}
		allowed++
		m.to(Navigating)
	}

	if allowed != 2 || m.retryCount != 3 {
		t.Errorf("allowed = %d, retryCount = %d, want 2/3", allowed, m.retryCount)
	}
	if seen[0] != "idle>navigating" || seen[1] != "navigating>nav_error" {
		t.Errorf("transitions = %v", seen)
	}
}

func TestMachine_RetryOutsideFailurePanics(t *testing.T) {
	m := newMachine(3)
	defer func() {
		if recover() == nil {
			t.Error("retry from idle should panic")
		}
	}()
	m.retry()
}

func TestNewMachine_MinimumBudget(t *testing.T) {
	if m := newMachine(0); m.maxRetries != 1 {
		t.Errorf("maxRetries = %d, want 1", m.maxRetries)
	}
}

func TestState_String(t *testing.T) {
	if Succeeded.String() != "succeeded" || BotDetected.String() != "bot_detected" {
		t.Error("unexpected state names")
	}
	if State(99).String() != "state(99)" {
		t.Errorf("State(99).String() = %s", State(99).String())
	}
	if !Exhausted.Terminal() || Exploring.Terminal() {
		t.Error("Terminal() mismatch")
	}
}

// =============================================================================
// Rotator Tests
// =============================================================================

func TestRotator_Defaults(t *testing.T) {
	r := NewRotator(nil, nil)

	for i := 0; i < len(DefaultUserAgents)+1; i++ {
		id := r.Next()
		if id.Proxy != "" {
			t.Errorf("Proxy = %q, want direct", id.Proxy)
		}
		if id.UserAgent != DefaultUserAgents[i%len(DefaultUserAgents)] {
			t.Errorf("identity %d UserAgent = %q", i, id.UserAgent)
		}
	}
}

func TestRotator_SessionScoped(t *testing.T) {
	a := NewRotator([]string{"p1", "p2"}, []string{"ua"})
	b := NewRotator([]string{"p1", "p2"}, []string{"ua"})

	a.Next()
	if got := b.Next().Proxy; got != "p1" {
		t.Errorf("independent rotator started at %s, want p1", got)
	}
}

func TestRotator_Concurrent(t *testing.T) {
	r := NewRotator([]string{"p1", "p2"}, nil)
	var wg sync.WaitGroup

	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Next()
		}()
	}
	wg.Wait()

	if r.Issued() != 40 {
		t.Errorf("Issued() = %d, want 40", r.Issued())
	}
}
