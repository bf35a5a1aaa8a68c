package classifier

import (
	"testing"
)

func TestAuthSchemeOf(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		headers map[string]string
		want    AuthScheme
	}{
		{"bearer", "https://x.com/a", map[string]string{"Authorization": "Bearer abc"}, AuthBearer},
		{"basic", "https://x.com/a", map[string]string{"Authorization": "basic dXNlcg=="}, AuthBasic},
		{"digest", "https://x.com/a", map[string]string{"Authorization": "Digest username=x"}, AuthDigest},
		{"api key header", "https://x.com/a", map[string]string{"X-API-Key": "k"}, AuthAPIKey},
		{"unknown scheme falls through to key", "https://x.com/a", map[string]string{"Authorization": "Custom x", "x-api-key": "k"}, AuthAPIKey},
		{"url token", "https://x.com/a?token=t", nil, AuthURLToken},
		{"api key query", "https://x.com/a?apikey=k", nil, AuthAPIKey},
		{"none", "https://x.com/a", nil, AuthNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := exchange("GET", tt.url, "xhr", tt.headers, nil, "")
			if got := AuthSchemeOf(ex); got != tt.want {
				t.Errorf("AuthSchemeOf() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRequestFormatOf(t *testing.T) {
	tests := []struct {
		name string
		ct   string
		body string
		want Format
	}{
		{"json content type", "application/json; charset=utf-8", "", FormatJSON},
		{"xml content type", "text/xml", "", FormatXML},
		{"form", "application/x-www-form-urlencoded", "a=1", FormatFormData},
		{"multipart", "multipart/form-data; boundary=x", "", FormatMultipart},
		{"json body sniffing", "", `{"a":1}`, FormatJSON},
		{"array body sniffing", "", ` [1,2]`, FormatJSON},
		{"xml body sniffing", "", `<a/>`, FormatXML},
		{"plain body", "", "a=1", FormatUnknown},
		{"empty", "", "", FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.ct != "" {
				headers["Content-Type"] = tt.ct
			}
			ex := exchange("POST", "https://x.com/a", "fetch", headers, nil, tt.body)
			if got := RequestFormatOf(ex); got != tt.want {
				t.Errorf("RequestFormatOf() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestResponseFormatOf(t *testing.T) {
	tests := []struct {
		ct   string
		want Format
	}{
		{"application/json", FormatJSON},
		{"application/problem+json", FormatJSON},
		{"application/soap+xml", FormatXML},
		{"text/html; charset=utf-8", FormatHTML},
		{"text/plain", FormatText},
		{"application/octet-stream", FormatUnknown},
		{"", FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.ct, func(t *testing.T) {
			ex := exchange("GET", "https://x.com/a", "fetch", nil, map[string]string{"Content-Type": tt.ct}, "")
			if got := ResponseFormatOf(ex); got != tt.want {
				t.Errorf("ResponseFormatOf(%q) = %s, want %s", tt.ct, got, tt.want)
			}
		})
	}
}

func TestRateLimitOf(t *testing.T) {
	ex := exchange("GET", "https://x.com/a", "fetch", nil, map[string]string{
		"X-RateLimit-Limit":   "100",
		"RateLimit-Remaining": "99",
		"X-RateLimit-Reset":   "60",
	}, "")

	rl := RateLimitOf(ex)
	if rl == nil {
		t.Fatal("RateLimitOf() = nil")
	}
	if rl.Limit != "100" || rl.Remaining != "99" || rl.Reset != "60" {
		t.Errorf("RateLimitOf() = %+v", rl)
	}

	if got := RateLimitOf(exchange("GET", "https://x.com/a", "fetch", nil, map[string]string{}, "")); got != nil {
		t.Errorf("RateLimitOf() without headers = %+v, want nil", got)
	}
}

func TestCacheOf(t *testing.T) {
	ex := exchange("GET", "https://x.com/a", "fetch", nil, map[string]string{
		"Cache-Control": "max-age=60",
		"ETag":          `"abc"`,
	}, "")

	c := CacheOf(ex)
	if c == nil {
		t.Fatal("CacheOf() = nil")
	}
	if c.CacheControl != "max-age=60" || c.ETag != `"abc"` || c.LastModified != "" {
		t.Errorf("CacheOf() = %+v", c)
	}

	if got := CacheOf(exchange("GET", "https://x.com/a", "fetch", nil, nil, "")); got != nil {
		t.Errorf("CacheOf() without response = %+v, want nil", got)
	}
}

func TestCORSOf(t *testing.T) {
	ex := exchange("GET", "https://x.com/a", "fetch", nil, map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": "GET, POST",
	}, "")

	cors := CORSOf(ex)
	if !cors.Enabled || cors.AllowOrigin != "*" || cors.AllowMethods != "GET, POST" {
		t.Errorf("CORSOf() = %+v", cors)
	}

	if CORSOf(exchange("GET", "https://x.com/a", "fetch", nil, nil, "")).Enabled {
		t.Error("CORS should be disabled without headers")
	}
}
