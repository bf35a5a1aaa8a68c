// Package traffic defines the network exchange types shared by the browser
// adapter, the classifier and the endpoint catalog.
package traffic

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBodyLimit is the response body budget in bytes.
const DefaultBodyLimit = 2048

// TruncationMarker is appended to bodies cut at the budget.
const TruncationMarker = "...[truncated]"

// ResourceType is the browser-reported kind of a request.
type ResourceType string

// Known resource types, lower-cased.
const (
	ResourceDocument   ResourceType = "document"
	ResourceXHR        ResourceType = "xhr"
	ResourceFetch      ResourceType = "fetch"
	ResourceScript     ResourceType = "script"
	ResourceStylesheet ResourceType = "stylesheet"
	ResourceImage      ResourceType = "image"
	ResourceFont       ResourceType = "font"
	ResourceMedia      ResourceType = "media"
	ResourceWebSocket  ResourceType = "websocket"
	ResourceOther      ResourceType = "other"
)

// NormalizeResourceType lower-cases a resource kind as reported by CDP
// ("XHR", "Fetch", "Image", ...).
func NormalizeResourceType(s string) ResourceType {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ResourceOther
	}
	return ResourceType(s)
}

// Header is a header map keyed by lower-cased names.
type Header map[string]string

// NewHeader copies src with lower-cased keys.
func NewHeader(src map[string]string) Header {
	h := make(Header, len(src))
	for k, v := range src {
		h[strings.ToLower(k)] = v
	}
	return h
}

// FromHTTP flattens an http.Header, joining repeated values with ", ".
func FromHTTP(src http.Header) Header {
	h := make(Header, len(src))
	for k, vals := range src {
		if len(vals) == 0 {
			continue
		}
		h[strings.ToLower(k)] = strings.Join(vals, ", ")
	}
	return h
}

// Get returns the value for key, case-insensitively.
func (h Header) Get(key string) string {
	return h[strings.ToLower(key)]
}

// Has reports whether key is present.
func (h Header) Has(key string) bool {
	_, ok := h[strings.ToLower(key)]
	return ok
}

// Clone returns a copy of h.
func (h Header) Clone() Header {
	if h == nil {
		return nil
	}
	out := make(Header, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Raw is what the browser adapter reports for one intercepted request.
type Raw struct {
	URL            string
	Method         string
	RequestHeaders map[string]string
	RequestBody    string
	ResourceType   string
	Response       *RawResponse
}

// RawResponse is the response half of a Raw exchange.
type RawResponse struct {
	Status  int
	Headers map[string]string
	Body    string
}

// Exchange is one request paired with its optional response.
// It is never mutated after construction.
type Exchange struct {
	URL             string       `json:"url"`
	Method          string       `json:"method"`
	RequestHeaders  Header       `json:"requestHeaders,omitempty"`
	RequestBody     string       `json:"requestBody,omitempty"`
	ResponseHeaders Header       `json:"responseHeaders,omitempty"`
	ResponseStatus  int          `json:"status"`
	ResponseBody    string       `json:"responseBody,omitempty"`
	HasResponse     bool         `json:"hasResponse"`
	ResourceType    ResourceType `json:"resourceType"`
	Timestamp       time.Time    `json:"timestamp"`
}

// NewExchange builds an Exchange from a raw report, truncating the response
// body to limit bytes. A non-positive limit selects DefaultBodyLimit.
func NewExchange(raw Raw, limit int, ts time.Time) Exchange {
	method := strings.ToUpper(raw.Method)
	if method == "" {
		method = http.MethodGet
	}
	ex := Exchange{
		URL:            raw.URL,
		Method:         method,
		RequestHeaders: NewHeader(raw.RequestHeaders),
		RequestBody:    raw.RequestBody,
		ResourceType:   NormalizeResourceType(raw.ResourceType),
		Timestamp:      ts,
	}
	if raw.Response != nil {
		ex.HasResponse = true
		ex.ResponseStatus = raw.Response.Status
		ex.ResponseHeaders = NewHeader(raw.Response.Headers)
		ex.ResponseBody = Truncate(raw.Response.Body, limit)
	}
	return ex
}

// Truncate cuts body to limit bytes and appends TruncationMarker.
func Truncate(body string, limit int) string {
	if limit <= 0 {
		limit = DefaultBodyLimit
	}
	if len(body) <= limit {
		return body
	}
	return body[:limit] + TruncationMarker
}

// ContentType returns the response content type, falling back to the
// request content type when no response was captured.
func (e Exchange) ContentType() string {
	if ct := e.ResponseHeaders.Get("content-type"); ct != "" {
		return ct
	}
	return e.RequestHeaders.Get("content-type")
}

// Origin returns scheme://host for u, lower-cased.
func Origin(u *url.URL) string {
	return strings.ToLower(u.Scheme + "://" + u.Host)
}

// SocketEvent reports an established long-lived connection.
type SocketEvent struct {
	URL             string
	Status          int
	RequestHeaders  map[string]string
	ResponseHeaders map[string]string
	Timestamp       time.Time
}

// Handler consumes exchanges surfaced by a browser adapter. Implementations
// must be safe for concurrent use.
type Handler interface {
	HandleExchange(raw Raw)
	HandleFailure(url, method string, err error)
}
