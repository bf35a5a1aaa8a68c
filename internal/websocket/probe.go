// Package websocket probes discovered WebSocket endpoints with a direct
// handshake and samples the first messages they push.
package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	errUnsupportedScheme = errors.New("unsupported scheme")
	errMissingHost       = errors.New("missing host")
)

// Result is the outcome of probing one endpoint.
type Result struct {
	URL       string    `json:"url"`
	Connected bool      `json:"connected"`
	Status    int       `json:"status,omitempty"`
	Protocols []string  `json:"protocols,omitempty"`
	Messages  []Message `json:"messages,omitempty"`
	Error     string    `json:"error,omitempty"`
	ProbedAt  time.Time `json:"probedAt"`
}

// Message is one frame received during a probe.
type Message struct {
	Type      string    `json:"type"`
	Data      string    `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Prober dials endpoints and records what they send within a short window.
type Prober struct {
	mu         sync.RWMutex
	dialer     *websocket.Dialer
	headers    http.Header
	maxMsgs    int
	msgTimeout time.Duration
}

// NewProber creates a prober with a 10s handshake timeout.
func NewProber() *Prober {
	return &Prober{
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		headers:    make(http.Header),
		maxMsgs:    10,
		msgTimeout: 3 * time.Second,
	}
}

// SetHeaders sets headers sent with every handshake.
func (p *Prober) SetHeaders(headers map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for k, v := range headers {
		p.headers.Set(k, v)
	}
}

// SetMaxMessages caps the frames kept per endpoint.
func (p *Prober) SetMaxMessages(max int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.maxMsgs = max
}

// SetMessageTimeout sets how long to wait for each frame.
func (p *Prober) SetMessageTimeout(timeout time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgTimeout = timeout
}

// Probe performs the handshake against wsURL and samples frames until the
// server goes quiet, the cap is reached or ctx ends. Connection failures are
// reported in the Result; only an unusable URL returns an error.
func (p *Prober) Probe(ctx context.Context, wsURL string) (Result, error) {
	res := Result{URL: wsURL, ProbedAt: time.Now()}

	target, err := socketURL(wsURL)
	if err != nil {
		return res, err
	}

	p.mu.RLock()
	headers := p.headers.Clone()
	maxMsgs := p.maxMsgs
	timeout := p.msgTimeout
	p.mu.RUnlock()

	conn, resp, err := p.dialer.DialContext(ctx, target, headers)
	if resp != nil {
		res.Status = resp.StatusCode
		if resp.Body != nil {
			resp.Body.Close()
		}
	}
	if err != nil {
		res.Error = err.Error()
		return res, nil
	}
	defer conn.Close()

	res.Connected = true
	if resp != nil {
		if protocols := resp.Header.Get("Sec-WebSocket-Protocol"); protocols != "" {
			res.Protocols = splitStrings(protocols, ",")
		}
	}

	res.Messages = sample(ctx, conn, maxMsgs, timeout)
	return res, nil
}

// ProbeAll probes each URL in order. It stops early when ctx ends.
func (p *Prober) ProbeAll(ctx context.Context, urls []string) []Result {
	out := make([]Result, 0, len(urls))
	for _, u := range urls {
		if ctx.Err() != nil {
			break
		}
		res, err := p.Probe(ctx, u)
		if err != nil {
			res.Error = err.Error()
		}
		out = append(out, res)
	}
	return out
}

func sample(ctx context.Context, conn *websocket.Conn, maxMsgs int, timeout time.Duration) []Message {
	if maxMsgs <= 0 {
		return nil
	}

	// Unblocks ReadMessage when ctx ends.
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	var msgs []Message
	for len(msgs) < maxMsgs {
		conn.SetReadDeadline(time.Now().Add(timeout))
		mt, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		msgs = append(msgs, Message{
			Type:      messageType(mt),
			Data:      string(data),
			Timestamp: time.Now(),
		})
	}
	return msgs
}

// socketURL maps http(s) to ws(s) and rejects anything else.
func socketURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", &url.Error{Op: "probe", URL: raw, Err: errUnsupportedScheme}
	}
	if u.Host == "" {
		return "", &url.Error{Op: "probe", URL: raw, Err: errMissingHost}
	}
	u.Fragment = ""
	return u.String(), nil
}

func messageType(mt int) string {
	switch mt {
	case websocket.TextMessage:
		return "text"
	case websocket.BinaryMessage:
		return "binary"
	default:
		return "unknown"
	}
}

func splitStrings(s, sep string) []string {
	result := make([]string, 0)
	for _, part := range strings.Split(s, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
