package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/atharvkhisti/WebReckon/internal/traffic"
)

// =============================================================================
// Fakes
// =============================================================================

type navCall struct {
	wait    WaitStrategy
	timeout time.Duration
}

type fakePage struct {
	mu       sync.Mutex
	url      string
	navErr   map[WaitStrategy]error
	text     string
	title    string
	html     string
	height   float64
	bottom   float64
	elements map[string][]Element
	sockets  chan traffic.SocketEvent
	navs     []navCall
	closed   bool
	onLoad   func(h traffic.Handler)
	handler  traffic.Handler
	lazy     int
}

func newFakePage(url string) *fakePage {
	return &fakePage{
		url:      url,
		navErr:   make(map[WaitStrategy]error),
		height:   300,
		elements: make(map[string][]Element),
		sockets:  make(chan traffic.SocketEvent, 16),
	}
}

func (p *fakePage) Navigate(_ context.Context, _ string, wait WaitStrategy, timeout time.Duration) error {
	p.mu.Lock()
	p.navs = append(p.navs, navCall{wait, timeout})
	err := p.navErr[wait]
	p.mu.Unlock()
	if err == nil && p.onLoad != nil {
		p.onLoad(p.handler)
	}
	return err
}

func (p *fakePage) URL() string                           { return p.url }
func (p *fakePage) Title(context.Context) (string, error) { return p.title, nil }
func (p *fakePage) Text(context.Context) (string, error)  { return p.text, nil }
func (p *fakePage) HTML(context.Context) (string, error)  { return p.html, nil }

func (p *fakePage) ScrollBy(_ context.Context, dy float64) (float64, float64, error) {
	p.bottom += dy
	return p.bottom, p.height, nil
}

func (p *fakePage) Elements(_ context.Context, sel string) ([]Element, error) {
	return p.elements[sel], nil
}

func (p *fakePage) TriggerLazyLoad(context.Context) error {
	p.lazy++
	return nil
}

func (p *fakePage) Sockets() <-chan traffic.SocketEvent { return p.sockets }

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("page closed twice")
	}
	p.closed = true
	close(p.sockets)
	return nil
}

func (p *fakePage) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type fakeElement struct {
	tag      string
	attrs    map[string]string
	hidden   bool
	disabled bool
	clickErr error
	hoverErr error
	fillErr  error
	panics   bool
	children map[string][]Element
	clicks   int
	hovers   int
	filled   string
	selected bool
}

func (e *fakeElement) Tag(context.Context) string { return e.tag }

func (e *fakeElement) Attribute(_ context.Context, name string) (string, bool) {
	v, ok := e.attrs[name]
	return v, ok
}

func (e *fakeElement) Visible(context.Context) bool { return !e.hidden }
func (e *fakeElement) Enabled(context.Context) bool { return !e.disabled }

func (e *fakeElement) Click(context.Context, time.Duration) error {
	if e.panics {
		panic("detached node")
	}
	e.clicks++
	return e.clickErr
}

func (e *fakeElement) Hover(context.Context) error {
	e.hovers++
	return e.hoverErr
}

func (e *fakeElement) Fill(_ context.Context, v string) error {
	if e.fillErr != nil {
		return e.fillErr
	}
	e.filled = v
	return nil
}

func (e *fakeElement) SelectFirst(context.Context) error {
	e.selected = true
	return nil
}

func (e *fakeElement) Elements(_ context.Context, sel string) ([]Element, error) {
	return e.children[sel], nil
}

type fakeDriver struct {
	mu        sync.Mutex
	launchErr error
	openErr   error
	newPage   func(n int) *fakePage
	pages     []*fakePage
	ids       []Identity
	launched  bool
	closed    bool
}

func (d *fakeDriver) Launch(context.Context) error {
	d.launched = true
	return d.launchErr
}

func (d *fakeDriver) Open(_ context.Context, id Identity, h traffic.Handler) (Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ids = append(d.ids, id)
	if d.openErr != nil {
		return nil, d.openErr
	}
	p := d.newPage(len(d.pages))
	p.handler = h
	d.pages = append(d.pages, p)
	return p, nil
}

func (d *fakeDriver) Close() error {
	d.closed = true
	return nil
}

func elements(n int, mk func(i int) *fakeElement) []Element {
	out := make([]Element, n)
	for i := range out {
		out[i] = mk(i)
	}
	return out
}
