package classifier

import (
	"net/url"
	"strings"

	"github.com/atharvkhisti/WebReckon/internal/traffic"
)

// AuthSchemeOf derives the credential style of a request.
func AuthSchemeOf(ex traffic.Exchange) AuthScheme {
	if auth := strings.ToLower(strings.TrimSpace(ex.RequestHeaders.Get("authorization"))); auth != "" {
		switch {
		case strings.HasPrefix(auth, "bearer"):
			return AuthBearer
		case strings.HasPrefix(auth, "basic"):
			return AuthBasic
		case strings.HasPrefix(auth, "digest"):
			return AuthDigest
		}
	}
	if ex.RequestHeaders.Has("x-api-key") {
		return AuthAPIKey
	}

	u, err := url.Parse(ex.URL)
	if err != nil {
		return AuthNone
	}
	q := u.Query()
	if q.Has("token") || q.Has("access_token") {
		return AuthURLToken
	}
	if q.Has("api_key") || q.Has("apikey") {
		return AuthAPIKey
	}
	return AuthNone
}

// RequestFormatOf derives the request body encoding from the content type,
// then from the body itself.
func RequestFormatOf(ex traffic.Exchange) Format {
	ct := strings.ToLower(ex.RequestHeaders.Get("content-type"))
	switch {
	case strings.Contains(ct, "json"):
		return FormatJSON
	case strings.Contains(ct, "xml"):
		return FormatXML
	case strings.Contains(ct, "x-www-form-urlencoded"):
		return FormatFormData
	case strings.Contains(ct, "multipart/form-data"):
		return FormatMultipart
	}

	body := strings.TrimSpace(ex.RequestBody)
	switch {
	case body == "":
		return FormatUnknown
	case body[0] == '{' || body[0] == '[':
		return FormatJSON
	case body[0] == '<':
		return FormatXML
	default:
		return FormatUnknown
	}
}

// ResponseFormatOf derives the response body encoding from its content type.
func ResponseFormatOf(ex traffic.Exchange) Format {
	ct := strings.ToLower(ex.ResponseHeaders.Get("content-type"))
	switch {
	case ct == "":
		return FormatUnknown
	case strings.Contains(ct, "json"):
		return FormatJSON
	case strings.Contains(ct, "xml"):
		return FormatXML
	case strings.Contains(ct, "text/html"):
		return FormatHTML
	case strings.HasPrefix(ct, "text/"):
		return FormatText
	default:
		return FormatUnknown
	}
}

// RateLimitOf reads x-ratelimit-* or ratelimit-* headers. It returns nil
// when none are present.
func RateLimitOf(ex traffic.Exchange) *RateLimit {
	h := ex.ResponseHeaders
	rl := RateLimit{
		Limit:     firstHeader(h, "x-ratelimit-limit", "ratelimit-limit"),
		Remaining: firstHeader(h, "x-ratelimit-remaining", "ratelimit-remaining"),
		Reset:     firstHeader(h, "x-ratelimit-reset", "ratelimit-reset"),
	}
	if rl == (RateLimit{}) {
		return nil
	}
	return &rl
}

// CacheOf reads caching headers. It returns nil when none are present.
func CacheOf(ex traffic.Exchange) *Cache {
	h := ex.ResponseHeaders
	c := Cache{
		CacheControl: h.Get("cache-control"),
		ETag:         h.Get("etag"),
		LastModified: h.Get("last-modified"),
	}
	if c == (Cache{}) {
		return nil
	}
	return &c
}

// CORSOf reads access-control-* response headers.
func CORSOf(ex traffic.Exchange) CORS {
	h := ex.ResponseHeaders
	return CORS{
		Enabled:      h.Has("access-control-allow-origin"),
		AllowOrigin:  h.Get("access-control-allow-origin"),
		AllowMethods: h.Get("access-control-allow-methods"),
		AllowHeaders: h.Get("access-control-allow-headers"),
	}
}

func firstHeader(h traffic.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return ""
}
