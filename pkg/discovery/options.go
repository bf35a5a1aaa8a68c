package discovery

import (
	"fmt"
	"time"

	"github.com/atharvkhisti/WebReckon/internal/logger"
	"github.com/atharvkhisti/WebReckon/internal/output"
	"github.com/atharvkhisti/WebReckon/internal/progress"
	"github.com/atharvkhisti/WebReckon/internal/session"
)

// Option is a functional option for configuring the Discoverer.
type Option func(*Discoverer) error

// WithConfig replaces the whole configuration. Later options still apply.
func WithConfig(cfg *Config) Option {
	return func(d *Discoverer) error {
		if cfg == nil {
			return fmt.Errorf("nil config")
		}
		d.config = cfg.Clone()
		return nil
	}
}

// WithTarget sets the URL to discover.
func WithTarget(url string) Option {
	return func(d *Discoverer) error {
		d.config.Target = url
		return nil
	}
}

// WithTimeout sets the per-attempt navigation budget.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Discoverer) error {
		d.config.Timeout = timeout
		return nil
	}
}

// WithWaitAfterLoad sets the settle time after a load.
func WithWaitAfterLoad(wait time.Duration) Option {
	return func(d *Discoverer) error {
		d.config.WaitAfterLoad = wait
		return nil
	}
}

// WithMaxRetries sets the number of navigation attempts.
func WithMaxRetries(n int) Option {
	return func(d *Discoverer) error {
		if n < 1 {
			n = 1
		}
		d.config.MaxRetries = n
		return nil
	}
}

// WithRetryBackoff sets the pause between attempts.
func WithRetryBackoff(backoff time.Duration) Option {
	return func(d *Discoverer) error {
		d.config.RetryBackoff = backoff
		return nil
	}
}

// WithSessionTimeout bounds the whole session.
func WithSessionTimeout(timeout time.Duration) Option {
	return func(d *Discoverer) error {
		d.config.SessionTimeout = timeout
		return nil
	}
}

// WithHeadless enables/disables headless mode.
func WithHeadless(headless bool) Option {
	return func(d *Discoverer) error {
		d.config.Browser.Headless = headless
		return nil
	}
}

// WithIgnoreHTTPSErrors accepts invalid certificates.
func WithIgnoreHTTPSErrors(ignore bool) Option {
	return func(d *Discoverer) error {
		d.config.Browser.IgnoreHTTPSErrors = ignore
		return nil
	}
}

// WithProxies sets the proxy pool rotated on retries.
func WithProxies(proxies ...string) Option {
	return func(d *Discoverer) error {
		d.config.Proxies = append(d.config.Proxies, proxies...)
		return nil
	}
}

// WithUserAgents sets the user agent pool rotated on retries.
func WithUserAgents(uas ...string) Option {
	return func(d *Discoverer) error {
		d.config.UserAgents = append(d.config.UserAgents, uas...)
		return nil
	}
}

// WithHeaders adds headers sent with every browser request.
func WithHeaders(headers map[string]string) Option {
	return func(d *Discoverer) error {
		if d.config.Browser.ExtraHeaders == nil {
			d.config.Browser.ExtraHeaders = make(map[string]string)
		}
		for k, v := range headers {
			d.config.Browser.ExtraHeaders[k] = v
		}
		return nil
	}
}

// WithBodyLimit sets the response bytes kept per exchange.
func WithBodyLimit(n int) Option {
	return func(d *Discoverer) error {
		d.config.BodyLimit = n
		return nil
	}
}

// WithExplore replaces the exploration settings.
func WithExplore(ec session.ExploreConfig) Option {
	return func(d *Discoverer) error {
		d.config.Explore = ec
		return nil
	}
}

// WithProbeSockets enables handshake probes of discovered WebSocket
// endpoints.
func WithProbeSockets(enabled bool) Option {
	return func(d *Discoverer) error {
		d.config.ProbeSockets = enabled
		return nil
	}
}

// WithOutputDir sets where artifacts are written. An empty dir disables
// artifact files.
func WithOutputDir(dir string) Option {
	return func(d *Discoverer) error {
		d.config.Output.Dir = dir
		return nil
	}
}

// WithHistory sets the run history database. An empty path disables it.
func WithHistory(path string) Option {
	return func(d *Discoverer) error {
		d.config.Output.History = path
		return nil
	}
}

// WithPretty enables/disables indented artifacts.
func WithPretty(pretty bool) Option {
	return func(d *Discoverer) error {
		d.config.Output.Pretty = pretty
		return nil
	}
}

// WithVerbose enables verbose logging.
func WithVerbose(verbose bool) Option {
	return func(d *Discoverer) error {
		d.config.Verbose = verbose
		return nil
	}
}

// WithDebug enables debug logging.
func WithDebug(debug bool) Option {
	return func(d *Discoverer) error {
		d.config.Debug = debug
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *logger.Logger) Option {
	return func(d *Discoverer) error {
		d.log = l
		return nil
	}
}

// WithDriver replaces the headless browser driver.
func WithDriver(driver session.Driver) Option {
	return func(d *Discoverer) error {
		d.driver = driver
		return nil
	}
}

// WithSinks adds sinks that receive the finished run after the artifact file
// and history.
func WithSinks(sinks ...output.Sink) Option {
	return func(d *Discoverer) error {
		d.sinks = append(d.sinks, sinks...)
		return nil
	}
}

// WithProgress reports session progress to fn at the given interval.
func WithProgress(fn func(progress.Status), interval time.Duration) Option {
	return func(d *Discoverer) error {
		if interval <= 0 {
			interval = 500 * time.Millisecond
		}
		d.onProgress = fn
		d.progressEvery = interval
		return nil
	}
}

// WithClock sets the time source for run IDs and artifact timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Discoverer) error {
		d.now = now
		return nil
	}
}
