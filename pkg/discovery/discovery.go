// Package discovery runs one API discovery session against a target: a
// headless browser loads the page, intercepted traffic is classified into an
// endpoint catalog and the result is persisted as an artifact and in the run
// history.
package discovery

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atharvkhisti/WebReckon/internal/aggregate"
	"github.com/atharvkhisti/WebReckon/internal/browser"
	"github.com/atharvkhisti/WebReckon/internal/catalog"
	"github.com/atharvkhisti/WebReckon/internal/classifier"
	"github.com/atharvkhisti/WebReckon/internal/interceptor"
	"github.com/atharvkhisti/WebReckon/internal/logger"
	"github.com/atharvkhisti/WebReckon/internal/metrics"
	"github.com/atharvkhisti/WebReckon/internal/output"
	"github.com/atharvkhisti/WebReckon/internal/progress"
	"github.com/atharvkhisti/WebReckon/internal/ratelimit"
	"github.com/atharvkhisti/WebReckon/internal/session"
	"github.com/atharvkhisti/WebReckon/internal/traffic"
	"github.com/atharvkhisti/WebReckon/internal/websocket"
)

// Discoverer is the top-level orchestrator.
type Discoverer struct {
	config  *Config
	log     *logger.Logger
	driver  session.Driver
	files   *output.FileSink
	history *output.BoltStore
	sinks   []output.Sink
	prober  *websocket.Prober

	onProgress    func(progress.Status)
	progressEvery time.Duration
	now           func() time.Time

	running atomic.Bool
}

// New creates a discoverer with the given options. A configuration problem
// is returned as an InvalidInput error.
func New(opts ...Option) (*Discoverer, error) {
	d := &Discoverer{
		config: DefaultConfig(),
		now:    time.Now,
	}

	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := d.config.Validate(); err != nil {
		return nil, err
	}

	if d.log == nil {
		lc := logger.DefaultConfig()
		lc.Level = logger.LevelFor(d.config.Verbose, d.config.Debug)
		lc.Component = "discovery"
		d.log = logger.New(lc)
	}

	if d.driver == nil {
		d.driver = browser.New(d.config.browserConfig(), d.log)
	}

	if d.config.Output.Dir != "" {
		d.files = output.NewFileSink(d.config.Output.Dir, d.config.Output.Pretty)
	}

	if d.config.Output.History != "" {
		store, err := output.NewBoltStore(d.config.Output.History)
		if err != nil {
			return nil, fmt.Errorf("failed to open history: %w", err)
		}
		d.history = store
	}

	if d.config.ProbeSockets {
		d.prober = websocket.NewProber()
		d.prober.SetMessageTimeout(d.config.ProbeTimeout)
		d.prober.SetHeaders(d.config.Browser.ExtraHeaders)
	}

	return d, nil
}

// Config returns a copy of the effective configuration.
func (d *Discoverer) Config() *Config {
	return d.config.Clone()
}

// Run executes one session and persists its result. The returned run is
// non-nil whenever the session started; err is SessionFatal or Cancelled
// when the session did not succeed.
func (d *Discoverer) Run(ctx context.Context) (*output.Run, error) {
	if !d.running.CompareAndSwap(false, true) {
		return nil, fmt.Errorf("discovery already running")
	}
	defer d.running.Store(false)

	started := d.now()
	target, _ := url.Parse(d.config.Target)
	log := d.log.WithRun(output.NewRunID(started)).WithURL(d.config.Target)

	m := metrics.New()
	cat := catalog.New(0)
	sink := interceptor.New(cat, traffic.Origin(target),
		interceptor.WithLogger(d.log),
		interceptor.WithMetrics(m),
		interceptor.WithBodyLimit(d.config.BodyLimit),
	)

	var state atomic.Value
	state.Store(session.Idle.String())

	sess := session.New(d.config.sessionConfig(), d.driver, sink, cat,
		session.WithLogger(d.log),
		session.WithMetrics(m),
		session.WithRotator(session.NewRotator(d.config.Proxies, d.config.UserAgents)),
		session.WithPacer(ratelimit.Every(d.config.Explore.ClickInterval)),
		session.WithObserver(func(_, to session.State, _ int) {
			state.Store(to.String())
		}),
	)

	log.Info("Discovery started")
	stopProgress := d.reportProgress(&state, m, cat)
	res, runErr := sess.Run(ctx)
	stopProgress()

	var probes []websocket.Result
	if d.prober != nil && ctx.Err() == nil {
		probes = d.probe(ctx, res.Endpoints)
	}

	run := &output.Run{
		ID:         output.NewRunID(started),
		Target:     d.config.Target,
		StartedAt:  started,
		Duration:   res.Duration,
		State:      res.State.String(),
		Attempts:   res.Attempts,
		RetryCount: res.RetryCount,
		FinalURL:   res.FinalURL,
		Summary:    res.Summary,
		Artifact:   aggregate.NewArtifact(d.now(), d.config.Target, res.Endpoints),
		Probes:     probes,
		Metrics:    m.Snapshot(),
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}

	d.log.StatsEvent(run.Metrics.Map())
	d.persist(run)

	return run, runErr
}

// persist hands run to the artifact file, the history and the extra sinks,
// in that order. Sink failures are logged and never fail the run.
func (d *Discoverer) persist(run *output.Run) {
	if d.files != nil {
		path, err := d.files.Save(run)
		if err != nil {
			d.log.WithError(err).Error("Failed to write artifact")
		} else {
			run.ArtifactPath = path
			d.log.WithField("path", path).Info("Artifact written")
		}
	}

	sinks := d.sinks
	if d.history != nil {
		sinks = append([]output.Sink{d.history}, sinks...)
	}
	for _, s := range sinks {
		if _, err := s.Save(run); err != nil {
			d.log.WithError(err).Error("Failed to save run")
		}
	}
}

// probe handshakes each distinct WebSocket endpoint, one per host at a time.
func (d *Discoverer) probe(ctx context.Context, records []catalog.Record) []websocket.Result {
	pacer := ratelimit.NewPacer(2, 1)
	seen := make(map[string]bool)

	var results []websocket.Result
	for _, r := range records {
		if r.Protocol != classifier.ProtocolWebSocket || seen[r.URL] {
			continue
		}
		u, err := url.Parse(r.URL)
		if err != nil || (!strings.EqualFold(u.Scheme, "ws") && !strings.EqualFold(u.Scheme, "wss")) {
			continue
		}
		seen[r.URL] = true

		if err := pacer.WaitKey(ctx, u.Host); err != nil {
			break
		}
		res, err := d.prober.Probe(ctx, r.URL)
		if err != nil {
			res.Error = err.Error()
		}
		d.log.WithURL(r.URL).WithField("connected", res.Connected).Debug("WebSocket probed")
		results = append(results, res)
	}
	return results
}

// reportProgress samples the session until the returned stop func is called.
func (d *Discoverer) reportProgress(state *atomic.Value, m *metrics.Collector, cat *catalog.Catalog) func() {
	if d.onProgress == nil {
		return func() {}
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)

	sample := func() {
		s := m.Snapshot()
		d.onProgress(progress.Status{
			State:     state.Load().(string),
			Attempt:   int(s.NavigationAttempts),
			Exchanges: s.ExchangesSeen,
			Endpoints: cat.Len(),
			Sockets:   s.SocketEvents,
			Failures:  s.InterceptionFailures,
		})
	}

	go func() {
		defer wg.Done()
		ticker := time.NewTicker(d.progressEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sample()
			case <-done:
				sample()
				return
			}
		}
	}()

	return func() {
		close(done)
		wg.Wait()
	}
}

// Close releases the history store and every extra sink.
func (d *Discoverer) Close() error {
	var firstErr error
	if d.history != nil {
		firstErr = d.history.Close()
	}
	for _, s := range d.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
