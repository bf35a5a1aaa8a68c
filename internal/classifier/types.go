package classifier

// Protocol is the API style of an exchange.
type Protocol string

// Protocol types.
const (
	ProtocolREST      Protocol = "REST"
	ProtocolGraphQL   Protocol = "GraphQL"
	ProtocolWebSocket Protocol = "WebSocket"
	ProtocolSOAP      Protocol = "SOAP"
	ProtocolGRPC      Protocol = "gRPC"
	ProtocolSSE       Protocol = "ServerSentEvents"
	ProtocolJSONAPI   Protocol = "JsonAPI"
	ProtocolHAL       Protocol = "HAL"
	ProtocolStatic    Protocol = "Static"
	ProtocolUnknown   Protocol = "Unknown"
)

// Purpose is the coarse heuristic label of what an endpoint does.
type Purpose string

// Purpose tags.
const (
	PurposeAuth     Purpose = "auth"
	PurposeSearch   Purpose = "search"
	PurposeUser     Purpose = "user"
	PurposeData     Purpose = "data"
	PurposeAdmin    Purpose = "admin"
	PurposePayments Purpose = "payments"
	PurposeOther    Purpose = "other"
)

// Sensitive reports whether endpoints with this purpose may handle personal
// or financial data.
func (p Purpose) Sensitive() bool {
	switch p {
	case PurposeAuth, PurposeUser, PurposePayments:
		return true
	default:
		return false
	}
}

// AuthScheme is the credential style observed on a request.
type AuthScheme string

// Auth schemes.
const (
	AuthNone     AuthScheme = "None"
	AuthBearer   AuthScheme = "Bearer"
	AuthBasic    AuthScheme = "Basic"
	AuthDigest   AuthScheme = "Digest"
	AuthAPIKey   AuthScheme = "ApiKey"
	AuthURLToken AuthScheme = "UrlToken"
)

// Format is a request or response body encoding.
type Format string

// Body formats.
const (
	FormatJSON      Format = "JSON"
	FormatXML       Format = "XML"
	FormatFormData  Format = "FormData"
	FormatMultipart Format = "Multipart"
	FormatHTML      Format = "HTML"
	FormatText      Format = "Text"
	FormatUnknown   Format = "Unknown"
)

// Category tags beyond the purpose buckets.
const (
	CategoryRealtime     = "realtime"
	CategoryRequiresAuth = "requires_auth"
	CategoryBetting      = "betting"
	CategoryOdds         = "odds"
	CategoryEvents       = "events"
	CategoryLive         = "live"
	CategoryAccount      = "account"
)

// RateLimit holds rate-limit response headers.
type RateLimit struct {
	Limit     string `json:"limit,omitempty"`
	Remaining string `json:"remaining,omitempty"`
	Reset     string `json:"reset,omitempty"`
}

// Cache holds caching response headers.
type Cache struct {
	CacheControl string `json:"cacheControl,omitempty"`
	ETag         string `json:"etag,omitempty"`
	LastModified string `json:"lastModified,omitempty"`
}

// CORS holds cross-origin response headers.
type CORS struct {
	Enabled      bool   `json:"enabled"`
	AllowOrigin  string `json:"allowOrigin,omitempty"`
	AllowMethods string `json:"allowMethods,omitempty"`
	AllowHeaders string `json:"allowHeaders,omitempty"`
}

// Classification is everything derived from a single exchange.
type Classification struct {
	IsAPI          bool       `json:"isApi"`
	Protocol       Protocol   `json:"type"`
	Purpose        Purpose    `json:"purpose"`
	Categories     []string   `json:"categories,omitempty"`
	AuthScheme     AuthScheme `json:"authType"`
	RequestFormat  Format     `json:"requestFormat"`
	ResponseFormat Format     `json:"responseFormat"`
	RateLimit      *RateLimit `json:"rateLimit,omitempty"`
	Cache          *Cache     `json:"cache,omitempty"`
	CORS           CORS       `json:"cors"`
}

// HasCategory reports whether tag is among the categories.
func (c Classification) HasCategory(tag string) bool {
	for _, t := range c.Categories {
		if t == tag {
			return true
		}
	}
	return false
}

func unknown() Classification {
	return Classification{
		Protocol:       ProtocolUnknown,
		Purpose:        PurposeOther,
		AuthScheme:     AuthNone,
		RequestFormat:  FormatUnknown,
		ResponseFormat: FormatUnknown,
	}
}
