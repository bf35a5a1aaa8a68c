package discovery

import (
	"testing"
	"time"

	"github.com/atharvkhisti/WebReckon/internal/logger"
	"github.com/atharvkhisti/WebReckon/internal/progress"
)

// Helper to create a minimal discoverer for option testing
func newOptionDiscoverer() *Discoverer {
	return &Discoverer{config: DefaultConfig()}
}

// =============================================================================
// WithConfig Tests
// =============================================================================

func TestWithConfig(t *testing.T) {
	cfg := QuickConfig()
	cfg.Target = "https://example.com"

	d := newOptionDiscoverer()
	if err := WithConfig(cfg)(d); err != nil {
		t.Fatalf("WithConfig() error = %v", err)
	}
	if d.config.Target != cfg.Target || d.config.MaxRetries != 1 {
		t.Errorf("config = %+v", d.config)
	}

	cfg.Target = "https://changed.example.com"
	if d.config.Target == cfg.Target {
		t.Error("WithConfig should copy the config")
	}

	if err := WithConfig(nil)(d); err == nil {
		t.Error("WithConfig(nil) should fail")
	}
}

// =============================================================================
// WithMaxRetries Tests
// =============================================================================

func TestWithMaxRetries(t *testing.T) {
	tests := []struct {
		name   string
		input  int
		expect int
	}{
		{"normal value", 4, 4},
		{"zero", 0, 1},
		{"negative", -2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newOptionDiscoverer()
			if err := WithMaxRetries(tt.input)(d); err != nil {
				t.Fatalf("WithMaxRetries() error = %v", err)
			}
			if d.config.MaxRetries != tt.expect {
				t.Errorf("MaxRetries = %d, want %d", d.config.MaxRetries, tt.expect)
			}
		})
	}
}

// =============================================================================
// Scalar Option Tests
// =============================================================================

func TestScalarOptions(t *testing.T) {
	d := newOptionDiscoverer()
	opts := []Option{
		WithTarget("https://example.com"),
		WithTimeout(10 * time.Second),
		WithWaitAfterLoad(time.Second),
		WithRetryBackoff(0),
		WithSessionTimeout(time.Minute),
		WithHeadless(false),
		WithIgnoreHTTPSErrors(false),
		WithBodyLimit(1024),
		WithProbeSockets(true),
		WithOutputDir("out"),
		WithHistory("out/history.db"),
		WithPretty(false),
		WithVerbose(true),
		WithDebug(true),
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			t.Fatalf("option error = %v", err)
		}
	}

	c := d.config
	if c.Target != "https://example.com" {
		t.Errorf("Target = %s", c.Target)
	}
	if c.Timeout != 10*time.Second || c.WaitAfterLoad != time.Second || c.RetryBackoff != 0 {
		t.Errorf("timings = %v %v %v", c.Timeout, c.WaitAfterLoad, c.RetryBackoff)
	}
	if c.SessionTimeout != time.Minute {
		t.Errorf("SessionTimeout = %v, want 1m", c.SessionTimeout)
	}
	if c.Browser.Headless || c.Browser.IgnoreHTTPSErrors {
		t.Errorf("Browser = %+v", c.Browser)
	}
	if c.BodyLimit != 1024 || !c.ProbeSockets {
		t.Errorf("BodyLimit = %d, ProbeSockets = %v", c.BodyLimit, c.ProbeSockets)
	}
	if c.Output.Dir != "out" || c.Output.History != "out/history.db" || c.Output.Pretty {
		t.Errorf("Output = %+v", c.Output)
	}
	if !c.Verbose || !c.Debug {
		t.Error("Verbose and Debug should be set")
	}
}

// =============================================================================
// Pool Option Tests
// =============================================================================

func TestWithProxiesAndUserAgents_Append(t *testing.T) {
	d := newOptionDiscoverer()
	WithProxies("http://p1:8080")(d)
	WithProxies("http://p2:8080")(d)
	WithUserAgents("ua-1", "ua-2")(d)

	if len(d.config.Proxies) != 2 || d.config.Proxies[1] != "http://p2:8080" {
		t.Errorf("Proxies = %v", d.config.Proxies)
	}
	if len(d.config.UserAgents) != 2 {
		t.Errorf("UserAgents = %v", d.config.UserAgents)
	}
}

func TestWithHeaders_Merges(t *testing.T) {
	d := newOptionDiscoverer()
	WithHeaders(map[string]string{"X-One": "1"})(d)
	WithHeaders(map[string]string{"X-Two": "2", "X-One": "override"})(d)

	h := d.config.Browser.ExtraHeaders
	if len(h) != 2 || h["X-One"] != "override" || h["X-Two"] != "2" {
		t.Errorf("ExtraHeaders = %v", h)
	}
}

// =============================================================================
// Collaborator Option Tests
// =============================================================================

func TestWithProgress_DefaultInterval(t *testing.T) {
	d := newOptionDiscoverer()
	WithProgress(func(progress.Status) {}, 0)(d)

	if d.onProgress == nil {
		t.Error("onProgress not set")
	}
	if d.progressEvery != 500*time.Millisecond {
		t.Errorf("progressEvery = %v, want 500ms", d.progressEvery)
	}
}

func TestCollaboratorOptions(t *testing.T) {
	d := newOptionDiscoverer()
	log := logger.NewNop()
	driver := &fakeDriver{}
	sink := &recordingSink{}
	clock := func() time.Time { return time.Unix(0, 0) }

	for _, opt := range []Option{WithLogger(log), WithDriver(driver), WithSinks(sink), WithClock(clock)} {
		if err := opt(d); err != nil {
			t.Fatalf("option error = %v", err)
		}
	}

	if d.log != log {
		t.Error("logger not set")
	}
	if d.driver != driver {
		t.Error("driver not set")
	}
	if len(d.sinks) != 1 {
		t.Errorf("sinks = %d, want 1", len(d.sinks))
	}
	if !d.now().Equal(time.Unix(0, 0)) {
		t.Error("clock not set")
	}
}
