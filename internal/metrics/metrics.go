// Package metrics collects discovery session counters.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector collects and aggregates metrics. All methods are safe for
// concurrent use.
type Collector struct {
	// Traffic
	exchangesSeen        atomic.Int64
	apiExchanges         atomic.Int64
	endpointsRecorded    atomic.Int64
	duplicates           atomic.Int64
	interceptionFailures atomic.Int64
	socketEvents         atomic.Int64
	staticCandidates     atomic.Int64

	// Session
	navigationAttempts atomic.Int64
	retries            atomic.Int64
	botDetections      atomic.Int64

	// Exploration
	clicks         atomic.Int64
	clickFailures  atomic.Int64
	formsSubmitted atomic.Int64
	scrollSteps    atomic.Int64

	// Status code breakdown
	statusCodes map[int]*atomic.Int64
	statusMu    sync.RWMutex

	startTime time.Time
}

// New creates a new metrics collector.
func New() *Collector {
	return &Collector{
		statusCodes: make(map[int]*atomic.Int64),
		startTime:   time.Now(),
	}
}

// RecordExchange records one intercepted exchange and its classification outcome.
func (c *Collector) RecordExchange(isAPI bool, status int) {
	c.exchangesSeen.Add(1)
	if isAPI {
		c.apiExchanges.Add(1)
	}
	if status > 0 {
		c.RecordStatusCode(status)
	}
}

// RecordEndpoint records a catalog insert, or a dropped duplicate.
func (c *Collector) RecordEndpoint(inserted bool) {
	if inserted {
		c.endpointsRecorded.Add(1)
	} else {
		c.duplicates.Add(1)
	}
}

// RecordInterceptionFailure records a response fetch that fell back to
// continuing the request.
func (c *Collector) RecordInterceptionFailure() {
	c.interceptionFailures.Add(1)
}

// RecordSocket records a long-lived connection event.
func (c *Collector) RecordSocket() {
	c.socketEvents.Add(1)
}

// RecordStaticCandidates records endpoint-like strings found in page source.
func (c *Collector) RecordStaticCandidates(n int) {
	c.staticCandidates.Add(int64(n))
}

// RecordNavigation records a navigation attempt.
func (c *Collector) RecordNavigation() {
	c.navigationAttempts.Add(1)
}

// RecordRetry records a retry.
func (c *Collector) RecordRetry() {
	c.retries.Add(1)
}

// RecordBotDetection records a challenge page.
func (c *Collector) RecordBotDetection() {
	c.botDetections.Add(1)
}

// RecordClick records a click attempt.
func (c *Collector) RecordClick(ok bool) {
	if ok {
		c.clicks.Add(1)
	} else {
		c.clickFailures.Add(1)
	}
}

// RecordFormSubmitted increments submitted forms.
func (c *Collector) RecordFormSubmitted() {
	c.formsSubmitted.Add(1)
}

// RecordScrollStep increments scroll steps.
func (c *Collector) RecordScrollStep() {
	c.scrollSteps.Add(1)
}

// RecordStatusCode records an HTTP status code.
func (c *Collector) RecordStatusCode(code int) {
	c.statusMu.Lock()
	if c.statusCodes[code] == nil {
		c.statusCodes[code] = &atomic.Int64{}
	}
	c.statusCodes[code].Add(1)
	c.statusMu.Unlock()
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	ExchangesSeen        int64         `json:"exchangesSeen"`
	APIExchanges         int64         `json:"apiExchanges"`
	EndpointsRecorded    int64         `json:"endpointsRecorded"`
	Duplicates           int64         `json:"duplicates"`
	InterceptionFailures int64         `json:"interceptionFailures"`
	SocketEvents         int64         `json:"socketEvents"`
	StaticCandidates     int64         `json:"staticCandidates"`
	NavigationAttempts   int64         `json:"navigationAttempts"`
	Retries              int64         `json:"retries"`
	BotDetections        int64         `json:"botDetections"`
	Clicks               int64         `json:"clicks"`
	ClickFailures        int64         `json:"clickFailures"`
	FormsSubmitted       int64         `json:"formsSubmitted"`
	ScrollSteps          int64         `json:"scrollSteps"`
	StatusCodes          map[int]int64 `json:"statusCodes,omitempty"`
	Elapsed              time.Duration `json:"elapsed"`
}

// Snapshot returns the current counters.
func (c *Collector) Snapshot() Snapshot {
	s := Snapshot{
		ExchangesSeen:        c.exchangesSeen.Load(),
		APIExchanges:         c.apiExchanges.Load(),
		EndpointsRecorded:    c.endpointsRecorded.Load(),
		Duplicates:           c.duplicates.Load(),
		InterceptionFailures: c.interceptionFailures.Load(),
		SocketEvents:         c.socketEvents.Load(),
		StaticCandidates:     c.staticCandidates.Load(),
		NavigationAttempts:   c.navigationAttempts.Load(),
		Retries:              c.retries.Load(),
		BotDetections:        c.botDetections.Load(),
		Clicks:               c.clicks.Load(),
		ClickFailures:        c.clickFailures.Load(),
		FormsSubmitted:       c.formsSubmitted.Load(),
		ScrollSteps:          c.scrollSteps.Load(),
		StatusCodes:          make(map[int]int64),
		Elapsed:              time.Since(c.startTime),
	}

	c.statusMu.RLock()
	for code, n := range c.statusCodes {
		s.StatusCodes[code] = n.Load()
	}
	c.statusMu.RUnlock()

	return s
}

// Map returns the snapshot as loggable key/values.
func (s Snapshot) Map() map[string]interface{} {
	return map[string]interface{}{
		"exchanges":             s.ExchangesSeen,
		"api_exchanges":         s.APIExchanges,
		"endpoints":             s.EndpointsRecorded,
		"duplicates":            s.Duplicates,
		"interception_failures": s.InterceptionFailures,
		"socket_events":         s.SocketEvents,
		"navigation_attempts":   s.NavigationAttempts,
		"retries":               s.Retries,
		"clicks":                s.Clicks,
		"forms":                 s.FormsSubmitted,
		"elapsed":               s.Elapsed.String(),
	}
}
