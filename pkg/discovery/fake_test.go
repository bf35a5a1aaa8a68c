package discovery

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/atharvkhisti/WebReckon/internal/session"
	"github.com/atharvkhisti/WebReckon/internal/traffic"
)

// =============================================================================
// Fakes
// =============================================================================

// fakePage replays a fixed set of exchanges and socket handshakes on load.
type fakePage struct {
	handler  traffic.Handler
	url      string
	traffic  []traffic.Raw
	sockets  chan traffic.SocketEvent
	navErr   error
	closed   bool
	closeMu  sync.Mutex
	navigate int
}

func (p *fakePage) Navigate(context.Context, string, session.WaitStrategy, time.Duration) error {
	p.navigate++
	if p.navErr != nil {
		return p.navErr
	}
	for _, raw := range p.traffic {
		p.handler.HandleExchange(raw)
	}
	return nil
}

func (p *fakePage) URL() string                           { return p.url }
func (p *fakePage) Title(context.Context) (string, error) { return "Shop", nil }
func (p *fakePage) Text(context.Context) (string, error)  { return "Welcome to the shop", nil }
func (p *fakePage) HTML(context.Context) (string, error)  { return "<html></html>", nil }

func (p *fakePage) ScrollBy(context.Context, float64) (float64, float64, error) {
	return 1000, 1000, nil
}

func (p *fakePage) Elements(context.Context, string) ([]session.Element, error) { return nil, nil }
func (p *fakePage) TriggerLazyLoad(context.Context) error                      { return nil }
func (p *fakePage) Sockets() <-chan traffic.SocketEvent                        { return p.sockets }

func (p *fakePage) Close() error {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.sockets)
	}
	return nil
}

type fakeDriver struct {
	mu        sync.Mutex
	launchErr error
	navErr    error
	traffic   []traffic.Raw
	sockets   []traffic.SocketEvent
	pages     []*fakePage
	ids       []session.Identity
}

func (d *fakeDriver) Launch(context.Context) error { return d.launchErr }

func (d *fakeDriver) Open(_ context.Context, id session.Identity, h traffic.Handler) (session.Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p := &fakePage{
		handler: h,
		url:     "https://shop.example.com/",
		traffic: d.traffic,
		sockets: make(chan traffic.SocketEvent, len(d.sockets)+1),
		navErr:  d.navErr,
	}
	for _, ev := range d.sockets {
		p.sockets <- ev
	}
	d.pages = append(d.pages, p)
	d.ids = append(d.ids, id)
	return p, nil
}

func (d *fakeDriver) Close() error { return nil }

func jsonCall(method, rawURL string, status int) traffic.Raw {
	return traffic.Raw{
		URL:          rawURL,
		Method:       method,
		ResourceType: "xhr",
		Response: &traffic.RawResponse{
			Status:  status,
			Headers: map[string]string{"content-type": "application/json"},
			Body:    `{"ok":true}`,
		},
	}
}

var errConnReset = errors.New("net::ERR_CONNECTION_RESET")
