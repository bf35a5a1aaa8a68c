package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// =============================================================================
// Test WebSocket Server
// =============================================================================

var upgrader = websocket.Upgrader{
	CheckOrigin:  func(r *http.Request) bool { return true },
	Subprotocols: []string{"graphql-ws"},
}

func createTestWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Reject") != "" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if handler != nil {
			handler(conn)
		}
	}))
}

func httpToWS(url string) string {
	return strings.Replace(url, "http://", "ws://", 1)
}

// =============================================================================
// Prober Tests
// =============================================================================

func TestNewProber(t *testing.T) {
	p := NewProber()

	if p.maxMsgs != 10 {
		t.Errorf("maxMsgs = %d, want 10", p.maxMsgs)
	}
	if p.msgTimeout != 3*time.Second {
		t.Errorf("msgTimeout = %v, want 3s", p.msgTimeout)
	}
	if p.dialer.HandshakeTimeout != 10*time.Second {
		t.Errorf("HandshakeTimeout = %v, want 10s", p.dialer.HandshakeTimeout)
	}
}

func TestProber_SamplesMessages(t *testing.T) {
	srv := createTestWSServer(t, func(c *websocket.Conn) {
		c.WriteMessage(websocket.TextMessage, []byte(`{"type":"hello"}`))
		c.WriteMessage(websocket.BinaryMessage, []byte{0x01, 0x02})
		c.WriteMessage(websocket.TextMessage, []byte(`{"type":"tick"}`))
		time.Sleep(500 * time.Millisecond)
	})
	defer srv.Close()

	p := NewProber()
	p.SetMaxMessages(2)
	p.SetMessageTimeout(200 * time.Millisecond)

	res, err := p.Probe(context.Background(), httpToWS(srv.URL))
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if !res.Connected {
		t.Fatalf("Connected = false, error %q", res.Error)
	}
	if res.Status != http.StatusSwitchingProtocols {
		t.Errorf("Status = %d, want 101", res.Status)
	}
	if len(res.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(res.Messages))
	}
	if res.Messages[0].Type != "text" || res.Messages[0].Data != `{"type":"hello"}` {
		t.Errorf("first message = %+v", res.Messages[0])
	}
	if res.Messages[1].Type != "binary" {
		t.Errorf("second message type = %q, want binary", res.Messages[1].Type)
	}
}

func TestProber_NegotiatedProtocol(t *testing.T) {
	srv := createTestWSServer(t, nil)
	defer srv.Close()

	p := NewProber()
	p.SetHeaders(map[string]string{"Sec-WebSocket-Protocol": "graphql-ws"})
	p.SetMessageTimeout(50 * time.Millisecond)

	res, err := p.Probe(context.Background(), httpToWS(srv.URL))
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if len(res.Protocols) != 1 || res.Protocols[0] != "graphql-ws" {
		t.Errorf("Protocols = %v, want [graphql-ws]", res.Protocols)
	}
}

func TestProber_HTTPSchemeMapped(t *testing.T) {
	srv := createTestWSServer(t, nil)
	defer srv.Close()

	p := NewProber()
	p.SetMessageTimeout(50 * time.Millisecond)

	res, err := p.Probe(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if !res.Connected {
		t.Errorf("Connected = false, error %q", res.Error)
	}
	if res.URL != srv.URL {
		t.Errorf("URL = %q, want the original %q", res.URL, srv.URL)
	}
}

func TestProber_HandshakeRejected(t *testing.T) {
	srv := createTestWSServer(t, nil)
	defer srv.Close()

	p := NewProber()
	p.SetHeaders(map[string]string{"X-Reject": "1"})

	res, err := p.Probe(context.Background(), httpToWS(srv.URL))
	if err != nil {
		t.Fatalf("Probe() error = %v, want failure in result", err)
	}
	if res.Connected {
		t.Error("Connected = true, want false")
	}
	if res.Status != http.StatusForbidden {
		t.Errorf("Status = %d, want 403", res.Status)
	}
	if res.Error == "" {
		t.Error("Error should describe the failed handshake")
	}
}

func TestProber_InvalidURL(t *testing.T) {
	p := NewProber()

	tests := []string{"ftp://example.com/socket", "ws:///nohost", "://bad"}
	for _, u := range tests {
		if _, err := p.Probe(context.Background(), u); err == nil {
			t.Errorf("Probe(%q) error = nil, want error", u)
		}
	}
}

func TestProber_ContextCancelStopsSampling(t *testing.T) {
	srv := createTestWSServer(t, func(c *websocket.Conn) {
		time.Sleep(2 * time.Second)
	})
	defer srv.Close()

	p := NewProber()
	p.SetMessageTimeout(5 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	res, err := p.Probe(ctx, httpToWS(srv.URL))
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if !res.Connected {
		t.Fatalf("Connected = false, error %q", res.Error)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Probe took %v after context deadline", elapsed)
	}
}

func TestProber_ProbeAll(t *testing.T) {
	srv := createTestWSServer(t, func(c *websocket.Conn) {
		c.WriteMessage(websocket.TextMessage, []byte("ping"))
	})
	defer srv.Close()

	p := NewProber()
	p.SetMessageTimeout(100 * time.Millisecond)

	results := p.ProbeAll(context.Background(), []string{httpToWS(srv.URL), "ftp://nope"})
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if !results[0].Connected {
		t.Errorf("first probe not connected: %q", results[0].Error)
	}
	if results[1].Error == "" {
		t.Error("second probe should carry an error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if got := p.ProbeAll(ctx, []string{httpToWS(srv.URL)}); len(got) != 0 {
		t.Errorf("ProbeAll on cancelled context = %d results, want 0", len(got))
	}
}

// =============================================================================
// Helper Tests
// =============================================================================

func TestSocketURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"ws://example.com/live", "ws://example.com/live", false},
		{"wss://example.com/live#x", "wss://example.com/live", false},
		{"http://example.com/live", "ws://example.com/live", false},
		{"https://example.com/live", "wss://example.com/live", false},
		{"ftp://example.com/live", "", true},
		{"ws:///live", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := socketURL(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("socketURL(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("socketURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSplitStrings(t *testing.T) {
	got := splitStrings(" a, b ,,c ", ",")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("splitStrings = %v, want [a b c]", got)
	}
}
