package browser

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/atharvkhisti/WebReckon/internal/logger"
	"github.com/atharvkhisti/WebReckon/internal/session"
	"github.com/atharvkhisti/WebReckon/internal/traffic"
)

// Page is one tab inside an isolated browser context. It implements
// session.Page.
type Page struct {
	driver    *Driver
	page      *rod.Page
	contextID proto.BrowserBrowserContextID
	cancel    context.CancelFunc
	handler   traffic.Handler
	client    *http.Client
	router    *rod.HijackRouter
	sockets   chan traffic.SocketEvent
	log       *logger.Logger

	eventsDone chan struct{}
	closeOnce  sync.Once
	closeErr   error
}

// prepare applies the identity and starts interception and socket events.
func (p *Page) prepare(id session.Identity) error {
	cfg := p.driver.config

	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		_ = p.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:  cfg.ViewportWidth,
			Height: cfg.ViewportHeight,
		})
	}

	if id.UserAgent != "" {
		if err := (proto.NetworkSetUserAgentOverride{UserAgent: id.UserAgent}).Call(p.page); err != nil {
			return fmt.Errorf("failed to set user agent: %w", err)
		}
	}

	if len(cfg.ExtraHeaders) > 0 {
		_ = proto.NetworkSetExtraHTTPHeaders{Headers: toNetworkHeaders(cfg.ExtraHeaders)}.Call(p.page)
	}

	if cfg.Stealth {
		if _, err := p.page.EvalOnNewDocument(stealthScript); err != nil {
			p.log.WithError(err).Debug("Stealth script not installed")
		}
	}

	if err := (proto.NetworkEnable{}).Call(p.page); err != nil {
		return fmt.Errorf("failed to enable network events: %w", err)
	}
	p.watchSockets()

	router := p.page.HijackRequests()
	if err := router.Add("*", "", p.hijack); err != nil {
		// The page still loads; only its traffic goes unobserved.
		p.log.WithError(err).Warn("Request interception unavailable")
		return nil
	}
	p.router = router
	go router.Run()

	return nil
}

// hijack replays one request, reports the exchange and lets the browser
// continue. A replay failure falls back to the browser's own request.
func (p *Page) hijack(h *rod.Hijack) {
	req := h.Request
	raw := traffic.Raw{
		URL:            req.URL().String(),
		Method:         req.Method(),
		RequestHeaders: map[string]string(traffic.FromHTTP(req.Req().Header)),
		RequestBody:    req.Body(),
		ResourceType:   string(req.Type()),
	}

	if !wantsResponse(req.Type()) {
		h.ContinueRequest(&proto.FetchContinueRequest{})
		p.handler.HandleExchange(raw)
		return
	}

	if err := h.LoadResponse(p.client, true); err != nil {
		h.ContinueRequest(&proto.FetchContinueRequest{})
		p.handler.HandleFailure(raw.URL, raw.Method, err)
		return
	}

	raw.Response = &traffic.RawResponse{
		Status:  h.Response.Payload().ResponseCode,
		Headers: map[string]string(traffic.FromHTTP(h.Response.Headers())),
		Body:    h.Response.Body(),
	}
	p.handler.HandleExchange(raw)
}

// watchSockets forwards WebSocket handshakes to the sockets channel until the
// page is closed.
func (p *Page) watchSockets() {
	var mu sync.Mutex
	pending := make(map[proto.NetworkRequestID]string)

	wait := p.page.EachEvent(
		func(e *proto.NetworkWebSocketCreated) {
			mu.Lock()
			pending[e.RequestID] = e.URL
			mu.Unlock()
		},
		func(e *proto.NetworkWebSocketHandshakeResponseReceived) {
			mu.Lock()
			u, ok := pending[e.RequestID]
			delete(pending, e.RequestID)
			mu.Unlock()
			if !ok || e.Response == nil {
				return
			}
			p.emit(traffic.SocketEvent{
				URL:             u,
				Status:          e.Response.Status,
				RequestHeaders:  fromNetworkHeaders(e.Response.RequestHeaders),
				ResponseHeaders: fromNetworkHeaders(e.Response.Headers),
				Timestamp:       time.Now(),
			})
		},
	)

	p.eventsDone = make(chan struct{})
	go func() {
		defer close(p.eventsDone)
		wait()
	}()
}

func (p *Page) emit(ev traffic.SocketEvent) {
	select {
	case p.sockets <- ev:
	default:
		p.log.Event(logger.WarnLevel).Str("url", ev.URL).Msg("Socket buffer full, event dropped")
	}
}

// Navigate loads rawURL and waits according to wait, bounded by timeout.
func (p *Page) Navigate(ctx context.Context, rawURL string, wait session.WaitStrategy, timeout time.Duration) error {
	nctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	page := p.page.Context(nctx)

	var waitFn func()
	if ev, ok := lifecycleEvent(wait); ok {
		waitFn = page.WaitNavigation(ev)
	}

	if err := page.Navigate(rawURL); err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	if waitFn != nil {
		waitFn()
	}
	if err := nctx.Err(); err != nil {
		return fmt.Errorf("wait for %s: %w", wait, err)
	}
	return nil
}

// URL returns the current document URL.
func (p *Page) URL() string {
	info, err := p.page.Info()
	if err != nil || info == nil {
		return ""
	}
	return info.URL
}

// Title returns the document title.
func (p *Page) Title(ctx context.Context) (string, error) {
	return p.evalString(ctx, `() => document.title || ""`)
}

// Text returns the visible body text.
func (p *Page) Text(ctx context.Context) (string, error) {
	return p.evalString(ctx, `() => document.body ? document.body.innerText : ""`)
}

// HTML returns the serialized document.
func (p *Page) HTML(ctx context.Context) (string, error) {
	return p.page.Context(ctx).HTML()
}

// ScrollBy scrolls the window by dy pixels.
func (p *Page) ScrollBy(ctx context.Context, dy float64) (float64, float64, error) {
	res, err := p.page.Context(ctx).Eval(scrollScript, dy)
	if err != nil {
		return 0, 0, err
	}
	arr := res.Value.Arr()
	if len(arr) != 2 {
		return 0, 0, fmt.Errorf("unexpected scroll result %s", res.Value.JSON("", ""))
	}
	return arr[0].Num(), arr[1].Num(), nil
}

// Elements returns the elements matching selector.
func (p *Page) Elements(ctx context.Context, selector string) ([]session.Element, error) {
	els, err := p.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, err
	}
	return wrapElements(els), nil
}

// TriggerLazyLoad fires scroll and resize events and promotes data-src
// attributes.
func (p *Page) TriggerLazyLoad(ctx context.Context) error {
	_, err := p.page.Context(ctx).Eval(lazyLoadScript)
	return err
}

// Sockets delivers WebSocket handshakes observed on this page.
func (p *Page) Sockets() <-chan traffic.SocketEvent {
	return p.sockets
}

// Close stops interception, shuts the tab and disposes its browser context.
// It is safe to call more than once.
func (p *Page) Close() error {
	p.closeOnce.Do(func() {
		if p.router != nil {
			_ = p.router.Stop()
		}
		p.closeErr = p.page.Close()
		p.cancel()
		if p.eventsDone != nil {
			<-p.eventsDone
		}
		close(p.sockets)

		p.driver.mu.Lock()
		b := p.driver.browser
		p.driver.mu.Unlock()
		if b != nil {
			_ = proto.TargetDisposeBrowserContext{BrowserContextID: p.contextID}.Call(b)
		}
	})
	return p.closeErr
}

func (p *Page) evalString(ctx context.Context, js string) (string, error) {
	res, err := p.page.Context(ctx).Eval(js)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

const scrollScript = `(dy) => {
	window.scrollBy(0, dy);
	const height = Math.max(
		document.body ? document.body.scrollHeight : 0,
		document.documentElement ? document.documentElement.scrollHeight : 0
	);
	return [window.scrollY + window.innerHeight, height];
}`

const lazyLoadScript = `() => {
	window.dispatchEvent(new Event('scroll'));
	window.dispatchEvent(new Event('resize'));
	document.querySelectorAll('[data-src]').forEach(el => {
		if (!el.getAttribute('src')) {
			el.setAttribute('src', el.getAttribute('data-src'));
		}
	});
	return true;
}`
