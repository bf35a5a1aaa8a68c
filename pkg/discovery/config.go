package discovery

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/atharvkhisti/WebReckon/internal/browser"
	werrors "github.com/atharvkhisti/WebReckon/internal/errors"
	"github.com/atharvkhisti/WebReckon/internal/output"
	"github.com/atharvkhisti/WebReckon/internal/session"
	"github.com/atharvkhisti/WebReckon/internal/traffic"
)

// Config holds all discovery configuration.
type Config struct {
	// Target URL to load
	Target string `json:"target" yaml:"target"`

	// Full navigation budget per attempt; network idle gets half of it
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Settle time after a successful load
	WaitAfterLoad time.Duration `json:"wait_after_load" yaml:"wait_after_load"`

	// Navigation attempts before the final best-effort load
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	RetryBackoff     time.Duration `json:"retry_backoff" yaml:"retry_backoff"`
	FinalLoadTimeout time.Duration `json:"final_load_timeout" yaml:"final_load_timeout"`
	SessionTimeout   time.Duration `json:"session_timeout" yaml:"session_timeout"`

	// Response bytes kept per exchange
	BodyLimit int `json:"body_limit" yaml:"body_limit"`

	// Identity pools rotated on every retry
	Proxies    []string `json:"proxies,omitempty" yaml:"proxies"`
	UserAgents []string `json:"user_agents,omitempty" yaml:"user_agents"`

	// Browser configuration
	Browser browser.Config `json:"browser" yaml:"browser"`

	// Exploration steps run after the page loads
	Explore session.ExploreConfig `json:"explore" yaml:"explore"`

	// Handshake every discovered WebSocket endpoint after the session
	ProbeSockets bool          `json:"probe_sockets" yaml:"probe_sockets"`
	ProbeTimeout time.Duration `json:"probe_timeout" yaml:"probe_timeout"`

	// Output configuration
	Output output.Config `json:"output" yaml:"output"`

	// Verbose logging
	Verbose bool `json:"verbose" yaml:"verbose"`

	// Debug mode
	Debug bool `json:"debug" yaml:"debug"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	sc := session.DefaultConfig()
	return &Config{
		Timeout:          sc.Timeout,
		WaitAfterLoad:    sc.WaitAfterLoad,
		MaxRetries:       sc.MaxRetries,
		RetryBackoff:     sc.RetryBackoff,
		FinalLoadTimeout: sc.FinalLoadTimeout,
		SessionTimeout:   sc.SessionTimeout,
		BodyLimit:        traffic.DefaultBodyLimit,
		Browser:          browser.DefaultConfig(),
		Explore:          sc.Explore,
		ProbeSockets:     false,
		ProbeTimeout:     3 * time.Second,
		Output:           output.DefaultConfig(),
	}
}

// QuickConfig trades coverage for speed: one attempt, short settle and
// no form submission.
func QuickConfig() *Config {
	c := DefaultConfig()
	c.Timeout = 15 * time.Second
	c.WaitAfterLoad = 2 * time.Second
	c.MaxRetries = 1
	c.FinalLoadTimeout = 10 * time.Second
	c.SessionTimeout = 2 * time.Minute
	c.Explore.ScrollMaxSteps = 50
	c.Explore.MaxClicksPerSelector = 5
	c.Explore.Forms = false
	return c
}

// LoadFromFile loads configuration from a file (JSON or YAML).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()

	// Try YAML first, then JSON
	if err := yaml.Unmarshal(data, config); err != nil {
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return config, nil
}

// SaveToFile saves configuration to a file.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".json") {
		data, err = json.MarshalIndent(c, "", "  ")
	} else {
		data, err = yaml.Marshal(c)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks the configuration. Failures are InvalidInput errors.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Target) == "" {
		return werrors.NewInvalidInputError("", "missing target URL")
	}

	u, err := url.Parse(c.Target)
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return werrors.NewInvalidInputError(c.Target, "invalid URL format")
	}

	if c.MaxRetries < 1 {
		return werrors.NewInvalidInputError(c.Target, "max retries must be at least 1")
	}

	if c.Timeout <= 0 {
		return werrors.NewInvalidInputError(c.Target, "timeout must be positive")
	}

	for _, p := range c.Proxies {
		pu, err := url.Parse(p)
		if err != nil || pu.Host == "" {
			return werrors.NewInvalidInputError(c.Target, fmt.Sprintf("invalid proxy %q", p))
		}
	}

	return nil
}

// Clone creates a deep copy of the configuration.
func (c *Config) Clone() *Config {
	data, _ := json.Marshal(c)
	clone := &Config{}
	json.Unmarshal(data, clone)
	return clone
}

// sessionConfig projects the session settings.
func (c *Config) sessionConfig() session.Config {
	return session.Config{
		TargetURL:        c.Target,
		Timeout:          c.Timeout,
		WaitAfterLoad:    c.WaitAfterLoad,
		MaxRetries:       c.MaxRetries,
		RetryBackoff:     c.RetryBackoff,
		FinalLoadTimeout: c.FinalLoadTimeout,
		SessionTimeout:   c.SessionTimeout,
		Explore:          c.Explore,
	}
}

// browserConfig projects the browser settings; the replay client shares the
// navigation timeout.
func (c *Config) browserConfig() browser.Config {
	bc := c.Browser
	if bc.Timeout <= 0 {
		bc.Timeout = c.Timeout
	}
	return bc
}
