// Package browser provides headless Chrome integration via Rod.
package browser

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/atharvkhisti/WebReckon/internal/logger"
	"github.com/atharvkhisti/WebReckon/internal/session"
	"github.com/atharvkhisti/WebReckon/internal/traffic"
)

// Config defines browser configuration.
type Config struct {
	Headless          bool              `json:"headless" yaml:"headless"`
	Timeout           time.Duration     `json:"timeout" yaml:"timeout"`
	ViewportWidth     int               `json:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int               `json:"viewport_height" yaml:"viewport_height"`
	IgnoreHTTPSErrors bool              `json:"ignore_https_errors" yaml:"ignore_https_errors"`
	Stealth           bool              `json:"stealth" yaml:"stealth"`
	ExtraHeaders      map[string]string `json:"extra_headers,omitempty" yaml:"extra_headers"`
	SocketBuffer      int               `json:"socket_buffer" yaml:"socket_buffer"`
}

// DefaultConfig returns default browser configuration.
func DefaultConfig() Config {
	return Config{
		Headless:          true,
		Timeout:           30 * time.Second,
		ViewportWidth:     1920,
		ViewportHeight:    1080,
		IgnoreHTTPSErrors: true,
		Stealth:           true,
		SocketBuffer:      256,
	}
}

// Driver launches Chrome and opens one isolated browser context per
// identity. It implements session.Driver.
type Driver struct {
	config   Config
	log      *logger.Logger
	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	opened   int
}

// New creates a driver. Nothing is started until Launch.
func New(config Config, log *logger.Logger) *Driver {
	if log == nil {
		log = logger.NewNop()
	}
	if config.SocketBuffer <= 0 {
		config.SocketBuffer = 256
	}
	return &Driver{
		config: config,
		log:    log.WithComponent("browser"),
	}
}

// Launch starts the browser process and connects to it.
func (d *Driver) Launch(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.browser != nil {
		return nil
	}

	l := launcher.New().Context(ctx).Headless(d.config.Headless)
	if d.config.IgnoreHTTPSErrors {
		l = l.Set("ignore-certificate-errors", "true")
	}

	u, err := l.Launch()
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		return fmt.Errorf("failed to connect to browser: %w", err)
	}

	d.launcher = l
	d.browser = b
	d.log.Debug("Browser launched")
	return nil
}

// Open creates a fresh browser context routed through id.Proxy, with one tab
// whose traffic is reported to h.
func (d *Driver) Open(ctx context.Context, id session.Identity, h traffic.Handler) (session.Page, error) {
	d.mu.Lock()
	b := d.browser
	d.opened++
	d.mu.Unlock()

	if b == nil {
		return nil, fmt.Errorf("browser not launched")
	}

	client, err := newHTTPClient(d.config, id.Proxy)
	if err != nil {
		return nil, err
	}

	bc, err := proto.TargetCreateBrowserContext{
		DisposeOnDetach: true,
		ProxyServer:     id.Proxy,
	}.Call(b)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	rp, err := b.Page(proto.TargetCreateTarget{
		URL:              "about:blank",
		BrowserContextID: bc.BrowserContextID,
	})
	if err != nil {
		_ = proto.TargetDisposeBrowserContext{BrowserContextID: bc.BrowserContextID}.Call(b)
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	pctx, cancel := context.WithCancel(ctx)
	p := &Page{
		driver:    d,
		page:      rp.Context(pctx),
		contextID: bc.BrowserContextID,
		cancel:    cancel,
		handler:   h,
		client:    client,
		sockets:   make(chan traffic.SocketEvent, d.config.SocketBuffer),
		log:       d.log.WithField("proxy", id.Proxy),
	}

	if err := p.prepare(id); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

// Close shuts the browser down.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.browser == nil {
		return nil
	}
	err := d.browser.Close()
	d.browser = nil
	if d.launcher != nil {
		d.launcher.Cleanup()
		d.launcher = nil
	}
	return err
}

// Opened returns how many browser contexts have been opened.
func (d *Driver) Opened() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opened
}

// newHTTPClient builds the client hijacked requests are replayed with. It
// never follows redirects so the browser sees every hop.
func newHTTPClient(config Config, proxy string) (*http.Client, error) {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     30 * time.Second,
	}
	if proxy != "" {
		pu, err := url.Parse(proxy)
		if err != nil || pu.Host == "" {
			return nil, fmt.Errorf("invalid proxy %q", proxy)
		}
		transport.Proxy = http.ProxyURL(pu)
	}
	if config.IgnoreHTTPSErrors {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   config.Timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}, nil
}
