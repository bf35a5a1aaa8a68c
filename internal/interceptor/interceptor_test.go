package interceptor

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/atharvkhisti/WebReckon/internal/catalog"
	"github.com/atharvkhisti/WebReckon/internal/classifier"
	"github.com/atharvkhisti/WebReckon/internal/metrics"
	"github.com/atharvkhisti/WebReckon/internal/traffic"
)

const target = "https://shop.example.com"

func newTestInterceptor(opts ...Option) (*Interceptor, *catalog.Catalog, *metrics.Collector) {
	cat := catalog.New(0)
	m := metrics.New()
	opts = append([]Option{WithMetrics(m), WithClock(func() time.Time { return time.Unix(7, 0) })}, opts...)
	return New(cat, target, opts...), cat, m
}

func jsonResponse(body string) *traffic.RawResponse {
	return &traffic.RawResponse{
		Status:  200,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
	}
}

// =============================================================================
// HandleExchange Tests
// =============================================================================

func TestHandleExchange_RecordsAPICalls(t *testing.T) {
	i, cat, m := newTestInterceptor()

	i.HandleExchange(traffic.Raw{URL: target + "/api/cart", Method: "GET", ResourceType: "Fetch", Response: jsonResponse("{}")})
	i.HandleExchange(traffic.Raw{URL: target + "/static/app.css", Method: "GET", ResourceType: "Stylesheet"})
	i.HandleExchange(traffic.Raw{URL: target + "/", Method: "GET", ResourceType: "Document",
		Response: &traffic.RawResponse{Status: 200, Headers: map[string]string{"Content-Type": "text/html"}}})

	snap := cat.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("records = %d, want 1", len(snap))
	}
	if snap[0].Key != "GET "+target+"/api/cart" {
		t.Errorf("Key = %s", snap[0].Key)
	}
	if !snap[0].Timestamp.Equal(time.Unix(7, 0)) {
		t.Errorf("Timestamp = %v, want injected clock", snap[0].Timestamp)
	}

	s := m.Snapshot()
	if s.ExchangesSeen != 3 || s.APIExchanges != 1 || s.EndpointsRecorded != 1 {
		t.Errorf("metrics = %+v", s)
	}
}

func TestHandleExchange_TruncatesBody(t *testing.T) {
	i, cat, _ := newTestInterceptor(WithBodyLimit(16))

	i.HandleExchange(traffic.Raw{URL: target + "/api/items", Method: "GET", ResourceType: "xhr",
		Response: jsonResponse(strings.Repeat("a", 100))})

	r := cat.Snapshot()[0]
	want := strings.Repeat("a", 16) + traffic.TruncationMarker
	if r.ResponseBody != want {
		t.Errorf("ResponseBody = %q, want %q", r.ResponseBody, want)
	}
}

func TestHandleExchange_DuplicatesCounted(t *testing.T) {
	i, cat, m := newTestInterceptor()

	for q := 0; q < 3; q++ {
		i.HandleExchange(traffic.Raw{URL: fmt.Sprintf("%s/search?q=%d", target, q), Method: "GET", ResourceType: "xhr", Response: jsonResponse("[]")})
	}

	if cat.Len() != 1 {
		t.Errorf("Len() = %d, want 1", cat.Len())
	}
	if got := m.Snapshot().Duplicates; got != 2 {
		t.Errorf("Duplicates = %d, want 2", got)
	}
}

func TestHandleFailure(t *testing.T) {
	i, cat, m := newTestInterceptor()

	i.HandleFailure(target+"/api/x", "GET", errors.New("connection reset"))

	if cat.Len() != 0 {
		t.Error("failures must not be recorded")
	}
	if got := m.Snapshot().InterceptionFailures; got != 1 {
		t.Errorf("InterceptionFailures = %d, want 1", got)
	}
}

// =============================================================================
// Socket Tests
// =============================================================================

func TestRecordSocket(t *testing.T) {
	i, cat, _ := newTestInterceptor()

	ok := i.RecordSocket(traffic.SocketEvent{URL: "wss://push.example.com/user/stream", Status: 101})
	if !ok {
		t.Fatal("RecordSocket() = false")
	}

	r := cat.Snapshot()[0]
	if r.Method != SocketMethod {
		t.Errorf("Method = %s, want WS", r.Method)
	}
	if r.Protocol != classifier.ProtocolWebSocket || !r.IsAPI {
		t.Errorf("Classification = %+v", r.Classification)
	}
	if r.Purpose != classifier.PurposeUser {
		t.Errorf("Purpose = %s, want user", r.Purpose)
	}
	if !r.HasCategory(classifier.CategoryRealtime) || !r.HasCategory("user") {
		t.Errorf("Categories = %v", r.Categories)
	}
	if r.Source != catalog.SourceWebSocket || r.IsSuspicious {
		t.Errorf("Source = %s, IsSuspicious = %v", r.Source, r.IsSuspicious)
	}
	if !r.IsThirdParty {
		t.Error("push.example.com differs from the target host")
	}

	if i.RecordSocket(traffic.SocketEvent{URL: "wss://push.example.com/user/stream?v=2", Status: 101}) {
		t.Error("same socket route should be deduplicated")
	}
}

func TestDrain(t *testing.T) {
	i, cat, m := newTestInterceptor()
	ch := make(chan traffic.SocketEvent, 4)

	ch <- traffic.SocketEvent{URL: "wss://shop.example.com/a", Status: 101}
	ch <- traffic.SocketEvent{URL: "wss://shop.example.com/b", Status: 101}

	if n := i.Drain(ch); n != 2 {
		t.Errorf("Drain() = %d, want 2", n)
	}
	if n := i.Drain(ch); n != 0 {
		t.Errorf("Drain() on empty channel = %d, want 0", n)
	}

	ch <- traffic.SocketEvent{URL: "wss://shop.example.com/c", Status: 101}
	close(ch)
	if n := i.Drain(ch); n != 1 {
		t.Errorf("Drain() on closed channel = %d, want 1", n)
	}

	if cat.Len() != 3 || m.Snapshot().SocketEvents != 3 {
		t.Errorf("Len() = %d, SocketEvents = %d", cat.Len(), m.Snapshot().SocketEvents)
	}
}

// =============================================================================
// Static Tests
// =============================================================================

func TestRecordStatic(t *testing.T) {
	i, cat, _ := newTestInterceptor()

	i.HandleExchange(traffic.Raw{URL: target + "/api/cart", Method: "GET", ResourceType: "xhr", Response: jsonResponse("{}")})

	if i.RecordStatic(target + "/api/cart?from=source") {
		t.Error("observed key must win over a static hit")
	}
	if !i.RecordStatic(target + "/api/admin/config") {
		t.Fatal("RecordStatic() = false for a new key")
	}

	snap := cat.Snapshot()
	if snap[0].Confidence != catalog.ConfidenceHigh {
		t.Errorf("observed record confidence = %s", snap[0].Confidence)
	}
	r := snap[1]
	if r.Protocol != classifier.ProtocolStatic || r.Confidence != catalog.ConfidenceLow {
		t.Errorf("static record = %s/%s", r.Protocol, r.Confidence)
	}
	if r.Purpose != classifier.PurposeAdmin {
		t.Errorf("Purpose = %s, want admin", r.Purpose)
	}
	if r.Method != "GET" {
		t.Errorf("Method = %s, want GET", r.Method)
	}
}

func TestInterceptor_ConcurrentPaths(t *testing.T) {
	i, cat, _ := newTestInterceptor()
	ch := make(chan traffic.SocketEvent, 64)
	var wg sync.WaitGroup

	for n := 0; n < 50; n++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			i.HandleExchange(traffic.Raw{URL: fmt.Sprintf("%s/api/item/%d", target, n%10), Method: "GET", ResourceType: "fetch", Response: jsonResponse("{}")})
		}(n)
		go func(n int) {
			defer wg.Done()
			ch <- traffic.SocketEvent{URL: fmt.Sprintf("wss://shop.example.com/ws/%d", n%5), Status: 101}
		}(n)
	}
	wg.Wait()
	i.Drain(ch)

	if got := cat.Len(); got != 15 {
		t.Errorf("Len() = %d, want 15", got)
	}
}
