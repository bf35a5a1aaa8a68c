package traffic

import (
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		limit int
		want  string
	}{
		{"short body", "abc", 10, "abc"},
		{"exact budget", "abcde", 5, "abcde"},
		{"over budget", "abcdef", 5, "abcde" + TruncationMarker},
		{"default budget", strings.Repeat("x", DefaultBodyLimit+1), 0, strings.Repeat("x", DefaultBodyLimit) + TruncationMarker},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.body, tt.limit); got != tt.want {
				t.Errorf("Truncate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewExchange(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	raw := Raw{
		URL:            "https://x.com/api",
		Method:         "post",
		RequestHeaders: map[string]string{"Content-Type": "application/json"},
		RequestBody:    `{"a":1}`,
		ResourceType:   "XHR",
		Response: &RawResponse{
			Status:  201,
			Headers: map[string]string{"X-RateLimit-Limit": "100"},
			Body:    strings.Repeat("b", 20),
		},
	}

	ex := NewExchange(raw, 10, ts)

	if ex.Method != "POST" {
		t.Errorf("Method = %s, want POST", ex.Method)
	}
	if ex.ResourceType != ResourceXHR {
		t.Errorf("ResourceType = %s, want xhr", ex.ResourceType)
	}
	if ex.RequestHeaders.Get("content-type") != "application/json" {
		t.Error("request headers should be lower-cased")
	}
	if !ex.HasResponse || ex.ResponseStatus != 201 {
		t.Errorf("response = %v/%d, want true/201", ex.HasResponse, ex.ResponseStatus)
	}
	if ex.ResponseBody != strings.Repeat("b", 10)+TruncationMarker {
		t.Errorf("ResponseBody = %q", ex.ResponseBody)
	}
	if !ex.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", ex.Timestamp, ts)
	}
}

func TestNewExchange_NoResponse(t *testing.T) {
	ex := NewExchange(Raw{URL: "https://x.com/"}, 0, time.Now())

	if ex.Method != http.MethodGet {
		t.Errorf("Method = %s, want GET", ex.Method)
	}
	if ex.HasResponse || ex.ResponseStatus != 0 {
		t.Error("exchange without response should have zero status")
	}
	if ex.ResourceType != ResourceOther {
		t.Errorf("ResourceType = %s, want other", ex.ResourceType)
	}
}

func TestExchange_ContentType(t *testing.T) {
	ex := Exchange{RequestHeaders: Header{"content-type": "application/xml"}}
	if got := ex.ContentType(); got != "application/xml" {
		t.Errorf("ContentType() = %s, want request fallback", got)
	}

	ex.ResponseHeaders = Header{"content-type": "application/json"}
	if got := ex.ContentType(); got != "application/json" {
		t.Errorf("ContentType() = %s, want response value", got)
	}
}

func TestFromHTTP(t *testing.T) {
	h := http.Header{}
	h.Add("Accept", "a")
	h.Add("Accept", "b")

	got := FromHTTP(h)
	if got.Get("ACCEPT") != "a, b" {
		t.Errorf("Get() = %q, want joined values", got.Get("accept"))
	}
	if !got.Has("accept") {
		t.Error("Has() = false")
	}
}

func TestOrigin(t *testing.T) {
	u, _ := url.Parse("HTTPS://Example.COM:8443/path?q=1")
	if got := Origin(u); got != "https://example.com:8443" {
		t.Errorf("Origin() = %s", got)
	}
}
