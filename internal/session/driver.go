package session

import (
	"context"
	"time"

	"github.com/atharvkhisti/WebReckon/internal/traffic"
)

// WaitStrategy selects when a navigation counts as finished.
type WaitStrategy int

const (
	// WaitNetworkIdle waits until the page stops issuing requests.
	WaitNetworkIdle WaitStrategy = iota
	// WaitDOMContentLoaded waits for the parsed document.
	WaitDOMContentLoaded
	// WaitLoad waits for the load event.
	WaitLoad
	// WaitCommit returns as soon as the navigation is committed.
	WaitCommit
)

func (w WaitStrategy) String() string {
	switch w {
	case WaitNetworkIdle:
		return "networkidle"
	case WaitDOMContentLoaded:
		return "domcontentloaded"
	case WaitLoad:
		return "load"
	case WaitCommit:
		return "commit"
	default:
		return "unknown"
	}
}

// Driver is the browser engine a session drives.
type Driver interface {
	// Launch starts the engine. It is called once per session.
	Launch(ctx context.Context) error
	// Open creates a fresh browsing context using id. Every exchange the
	// context issues is reported to h.
	Open(ctx context.Context, id Identity, h traffic.Handler) (Page, error)
	// Close shuts the engine down.
	Close() error
}

// Page is one browsing context with a single tab.
type Page interface {
	Navigate(ctx context.Context, url string, wait WaitStrategy, timeout time.Duration) error
	URL() string
	Title(ctx context.Context) (string, error)
	// Text returns the visible text of the document body.
	Text(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	// ScrollBy scrolls the window by dy pixels and returns the bottom edge of
	// the viewport and the document height.
	ScrollBy(ctx context.Context, dy float64) (bottom, height float64, err error)
	Elements(ctx context.Context, selector string) ([]Element, error)
	// TriggerLazyLoad dispatches the window events lazy loaders listen to.
	TriggerLazyLoad(ctx context.Context) error
	// Sockets delivers long-lived connection events. The channel is closed
	// when the page is closed.
	Sockets() <-chan traffic.SocketEvent
	Close() error
}

// Element is a DOM element handle.
type Element interface {
	Tag(ctx context.Context) string
	Attribute(ctx context.Context, name string) (string, bool)
	Visible(ctx context.Context) bool
	Enabled(ctx context.Context) bool
	Click(ctx context.Context, timeout time.Duration) error
	Hover(ctx context.Context) error
	Fill(ctx context.Context, value string) error
	// SelectFirst picks the first option of a select element.
	SelectFirst(ctx context.Context) error
	Elements(ctx context.Context, selector string) ([]Element, error)
}

// Sink receives everything a session observes.
type Sink interface {
	traffic.Handler
	Drain(ch <-chan traffic.SocketEvent) int
	RecordStatic(rawURL string) bool
}
