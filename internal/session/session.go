// Package session drives one discovery run through navigation, retry and
// interactive exploration of the target page.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/atharvkhisti/WebReckon/internal/aggregate"
	"github.com/atharvkhisti/WebReckon/internal/catalog"
	werrors "github.com/atharvkhisti/WebReckon/internal/errors"
	"github.com/atharvkhisti/WebReckon/internal/logger"
	"github.com/atharvkhisti/WebReckon/internal/metrics"
	"github.com/atharvkhisti/WebReckon/internal/ratelimit"
)

// Config controls one session.
type Config struct {
	TargetURL        string
	Timeout          time.Duration
	WaitAfterLoad    time.Duration
	MaxRetries       int
	RetryBackoff     time.Duration
	FinalLoadTimeout time.Duration
	SessionTimeout   time.Duration
	Explore          ExploreConfig
}

// DefaultConfig returns the session defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:          30 * time.Second,
		WaitAfterLoad:    8 * time.Second,
		MaxRetries:       3,
		RetryBackoff:     2 * time.Second,
		FinalLoadTimeout: 15 * time.Second,
		SessionTimeout:   5 * time.Minute,
		Explore:          DefaultExploreConfig(),
	}
}

// botMarkers match challenge and block pages.
var botMarkers = regexp.MustCompile(`(?i)\b(captcha|bot|blocked|security check|access denied)\b`)

// BotMarker returns the first challenge marker found in text, or "".
func BotMarker(text string) string {
	return strings.ToLower(botMarkers.FindString(text))
}

// Result is the outcome of a session.
type Result struct {
	State      State             `json:"state"`
	Attempts   int               `json:"attempts"`
	RetryCount int               `json:"retryCount"`
	FinalURL   string            `json:"finalUrl,omitempty"`
	Endpoints  []catalog.Record  `json:"endpoints"`
	Summary    aggregate.Summary `json:"summary"`
	Duration   time.Duration     `json:"duration"`
}

// Session is one discovery run against a single target.
type Session struct {
	cfg     Config
	target  string
	driver  Driver
	sink    Sink
	catalog *catalog.Catalog
	rotator *Rotator
	pacer   *ratelimit.Pacer
	log     *logger.Logger
	metrics *metrics.Collector
	sleep   func(ctx context.Context, d time.Duration) error
	observe func(from, to State, retryCount int)

	fsm      *machine
	attempts int
	finalURL string
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Session) {
		s.log = l
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithRotator sets the identity pool.
func WithRotator(r *Rotator) Option {
	return func(s *Session) {
		s.rotator = r
	}
}

// WithPacer sets the click pacer.
func WithPacer(p *ratelimit.Pacer) Option {
	return func(s *Session) {
		s.pacer = p
	}
}

// WithObserver registers fn to be called on every state transition, from the
// goroutine running the session.
func WithObserver(fn func(from, to State, retryCount int)) Option {
	return func(s *Session) {
		s.observe = fn
	}
}

// New creates a session. The target URL must already be validated.
func New(cfg Config, driver Driver, sink Sink, cat *catalog.Catalog, opts ...Option) *Session {
	s := &Session{
		cfg:     cfg,
		target:  cfg.TargetURL,
		driver:  driver,
		sink:    sink,
		catalog: cat,
		rotator: NewRotator(nil, nil),
		log:     logger.NewNop(),
		metrics: metrics.New(),
		sleep:   sleepCtx,
		fsm:     newMachine(cfg.MaxRetries),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.pacer == nil {
		s.pacer = ratelimit.Every(cfg.Explore.ClickInterval)
	}
	s.log = s.log.WithComponent("session")
	s.fsm.onChange = func(from, to State, retryCount int) {
		s.log.TransitionEvent(from.String(), to.String(), retryCount)
		if s.observe != nil {
			s.observe(from, to, retryCount)
		}
	}
	return s
}

// State returns the current FSM state.
func (s *Session) State() State {
	return s.fsm.state
}

// Run executes the session. The browsing context is always closed before Run
// returns. A non-nil error is SessionFatal or Cancelled; the partial result is
// returned alongside it.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	if s.cfg.SessionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.SessionTimeout)
		defer cancel()
	}

	if err := s.driver.Launch(ctx); err != nil {
		s.fsm.to(Failed)
		fatal := werrors.NewSessionFatalError(s.target, "launch", "browser failed to launch", err)
		s.log.ErrorEvent(fatal, s.target, "launch")
		return s.result(start), fatal
	}
	defer func() {
		if err := s.driver.Close(); err != nil {
			s.log.WithError(err).Debug("Browser close failed")
		}
	}()

	s.fsm.to(Navigating)
	page, err := s.navigate(ctx)
	if err != nil {
		s.fsm.to(Finalizing)
		s.fsm.to(Exhausted)
		s.log.ErrorEvent(err, s.target, "navigate")
		return s.result(start), err
	}
	released := false
	closePage := func() {
		if !released {
			released = true
			s.release(page)
		}
	}
	defer closePage()

	s.fsm.to(Exploring)
	s.explore(ctx, page)
	s.sink.Drain(page.Sockets())

	s.fsm.to(Finalizing)
	closePage()
	s.fsm.to(Succeeded)

	return s.result(start), nil
}

// navigate runs the retry loop and the final best-effort load. It returns a
// loaded page or the error that ends the session.
func (s *Session) navigate(ctx context.Context) (Page, error) {
	var lastErr error

	for {
		page, err := s.attempt(ctx, s.rotator.Next(), false)
		if err == nil {
			s.fsm.to(Loaded)
			return page, nil
		}
		lastErr = err

		if werrors.KindOf(err) == werrors.BotDetection {
			s.metrics.RecordBotDetection()
			s.fsm.to(BotDetected)
		} else {
			s.fsm.to(NavError)
		}
		s.log.WithError(err).Warnf("Navigation attempt %d failed", s.attempts)

		if ctx.Err() != nil {
			return nil, s.aborted(ctx, lastErr)
		}
		if !s.fsm.retry() {
			break
		}
		s.metrics.RecordRetry()
		if err := s.sleep(ctx, s.cfg.RetryBackoff); err != nil {
			return nil, s.aborted(ctx, lastErr)
		}
		s.fsm.to(Navigating)
	}

	s.fsm.to(Navigating)
	s.log.Infof("Retries exhausted after %d attempts, trying final load", s.attempts)
	page, err := s.attempt(ctx, s.rotator.Next(), true)
	if err == nil {
		s.fsm.to(Loaded)
		return page, nil
	}
	s.fsm.to(NavError)
	if ctx.Err() != nil {
		return nil, s.aborted(ctx, err)
	}
	return nil, werrors.NewSessionFatalError(s.target, "navigate",
		fmt.Sprintf("all %d navigation attempts failed", s.attempts), err)
}

// attempt opens a fresh browsing context for id and loads the target. A page
// is returned only when the load succeeded and passed the content checks.
func (s *Session) attempt(ctx context.Context, id Identity, final bool) (Page, error) {
	s.attempts++
	s.metrics.RecordNavigation()
	s.log.Event(logger.DebugLevel).
		Int("attempt", s.attempts).
		Str("proxy", id.Proxy).
		Str("user_agent", id.UserAgent).
		Bool("final", final).
		Msg("Opening browsing context")

	page, err := s.driver.Open(ctx, id, s.sink)
	if err != nil {
		return nil, werrors.NewNavigationError(s.target, s.attempts, err)
	}

	if final {
		err = page.Navigate(ctx, s.target, WaitCommit, s.cfg.FinalLoadTimeout)
	} else {
		err = s.load(ctx, page)
	}
	if err != nil {
		s.release(page)
		return nil, werrors.NewNavigationError(s.target, s.attempts, err)
	}
	s.finalURL = page.URL()

	// A committed document still needs the settle time before exploration.
	if err := s.sleep(ctx, s.cfg.WaitAfterLoad); err != nil {
		s.release(page)
		return nil, werrors.NewNavigationError(s.target, s.attempts, err)
	}
	if final {
		return page, nil
	}

	if text, err := page.Text(ctx); err == nil {
		if marker := BotMarker(text); marker != "" {
			s.release(page)
			return nil, werrors.NewBotDetectionError(s.target, s.attempts, marker)
		}
	}
	if title, err := page.Title(ctx); err == nil && strings.Contains(strings.ToLower(title), "error") {
		s.release(page)
		return nil, werrors.NewNavigationError(s.target, s.attempts, fmt.Errorf("page title reports an error: %q", title))
	}

	return page, nil
}

// load waits for network quiescence within half the timeout, then falls back
// to the parsed document within the remainder.
func (s *Session) load(ctx context.Context, page Page) error {
	half := s.cfg.Timeout / 2
	err := page.Navigate(ctx, s.target, WaitNetworkIdle, half)
	if err == nil || ctx.Err() != nil {
		return err
	}
	s.log.WithError(err).Debug("Network idle wait failed, falling back to DOMContentLoaded")
	return page.Navigate(ctx, s.target, WaitDOMContentLoaded, s.cfg.Timeout-half)
}

// release drains pending socket events from page and closes it.
func (s *Session) release(page Page) {
	if page == nil {
		return
	}
	s.sink.Drain(page.Sockets())
	if err := page.Close(); err != nil {
		s.log.WithError(err).Debug("Page close failed")
	}
}

func (s *Session) aborted(ctx context.Context, last error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return werrors.NewSessionFatalError(s.target, "navigate", "session deadline exceeded", last)
	}
	return werrors.NewCancelledError(s.target, "navigate", ctx.Err())
}

func (s *Session) result(start time.Time) *Result {
	records := s.catalog.Snapshot()
	return &Result{
		State:      s.fsm.state,
		Attempts:   s.attempts,
		RetryCount: s.fsm.retryCount,
		FinalURL:   s.finalURL,
		Endpoints:  records,
		Summary:    aggregate.Summarize(records),
		Duration:   time.Since(start),
	}
}

// baseURL returns the URL static hits are resolved against.
func (s *Session) baseURL(page Page) string {
	if u := page.URL(); u != "" {
		if parsed, err := url.Parse(u); err == nil && parsed.IsAbs() {
			return u
		}
	}
	return s.target
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
