package classifier

import "regexp"

// Field selects the part of an exchange a rule is matched against.
type Field int

const (
	// FieldPath is the lower-cased URL path.
	FieldPath Field = iota
	// FieldHost is the lower-cased hostname without port.
	FieldHost
	// FieldScheme is the lower-cased URL scheme.
	FieldScheme
	// FieldResourceType is the browser-reported resource kind.
	FieldResourceType
	// FieldRequestHeader is the request header named by Rule.Key.
	FieldRequestHeader
	// FieldResponseHeader is the response header named by Rule.Key.
	FieldResponseHeader
	// FieldContentType is the base media type of the response, or of the
	// request when no response was captured.
	FieldContentType
	// FieldQueryKey matches when any query parameter name matches.
	FieldQueryKey
	// FieldBody is the raw request body.
	FieldBody
)

// Effect is what a matching rule contributes.
type Effect int

const (
	// EffectExclude marks an exchange as not an API call, overriding everything.
	EffectExclude Effect = iota
	// EffectUpgrade marks a protocol upgrade: API, WebSocket, no further
	// protocol resolution.
	EffectUpgrade
	// EffectSignal is a positive API signal.
	EffectSignal
	// EffectProtocol selects a protocol; the lowest precedence match wins.
	EffectProtocol
	// EffectPurpose selects a purpose bucket; the lowest precedence match wins.
	EffectPurpose
	// EffectCategory adds a category tag.
	EffectCategory
)

// Rule is one row of the classification table.
type Rule struct {
	Name       string
	Field      Field
	Key        string
	Pattern    *regexp.Regexp
	Effect     Effect
	Protocol   Protocol
	Purpose    Purpose
	Category   string
	Precedence int
}

var (
	anyValue  = regexp.MustCompile(`.*`)
	jsonMedia = regexp.MustCompile(`(?i)application/json`)
)

// DefaultRules is the single table consumed by the classifier.
var DefaultRules = []Rule{
	// Exclusion filter.
	{Name: "static-extension", Field: FieldPath, Effect: EffectExclude,
		Pattern: regexp.MustCompile(`\.(css|js|mjs|png|jpe?g|gif|svg|webp|avif|bmp|woff2?|ttf|otf|eot|ico|map|mp4|mp3|webm|ogg|wav)$`)},
	{Name: "static-resource", Field: FieldResourceType, Effect: EffectExclude,
		Pattern: regexp.MustCompile(`^(image|font|media|stylesheet)$`)},
	{Name: "tracking-path", Field: FieldPath, Effect: EffectExclude,
		Pattern: regexp.MustCompile(`/(analytics|pixel|tracker|tracking|beacon)\b`)},
	{Name: "tracking-host", Field: FieldHost, Effect: EffectExclude,
		Pattern: regexp.MustCompile(`(^|[.-])(analytics|tracking|metrics|ads|advertising)([.-]|$)`)},

	// Protocol upgrade.
	{Name: "upgrade-header", Field: FieldRequestHeader, Key: "upgrade", Effect: EffectUpgrade,
		Pattern: regexp.MustCompile(`(?i)^\s*websocket\s*$`)},
	{Name: "ws-scheme", Field: FieldScheme, Effect: EffectUpgrade,
		Pattern: regexp.MustCompile(`^wss?$`)},
	{Name: "ws-resource", Field: FieldResourceType, Effect: EffectUpgrade,
		Pattern: regexp.MustCompile(`^websocket$`)},

	// Header signals.
	{Name: "authorization", Field: FieldRequestHeader, Key: "authorization", Effect: EffectSignal, Pattern: anyValue},
	{Name: "api-key", Field: FieldRequestHeader, Key: "x-api-key", Effect: EffectSignal, Pattern: anyValue},
	{Name: "accept-json", Field: FieldRequestHeader, Key: "accept", Effect: EffectSignal, Pattern: jsonMedia},
	{Name: "request-json", Field: FieldRequestHeader, Key: "content-type", Effect: EffectSignal, Pattern: jsonMedia},
	{Name: "requested-with", Field: FieldRequestHeader, Key: "x-requested-with", Effect: EffectSignal,
		Pattern: regexp.MustCompile(`(?i)^xmlhttprequest$`)},
	{Name: "cors", Field: FieldResponseHeader, Key: "access-control-allow-origin", Effect: EffectSignal, Pattern: anyValue},
	{Name: "api-version", Field: FieldResponseHeader, Key: "api-version", Effect: EffectSignal, Pattern: anyValue},
	{Name: "x-api-version", Field: FieldResponseHeader, Key: "x-api-version", Effect: EffectSignal, Pattern: anyValue},
	{Name: "rate-limit", Field: FieldResponseHeader, Key: "x-ratelimit-limit", Effect: EffectSignal, Pattern: anyValue},

	// Content-type signal.
	{Name: "api-content-type", Field: FieldContentType, Effect: EffectSignal,
		Pattern: regexp.MustCompile(`^(application/(json|xml|graphql|x-ndjson|ndjson|hal\+json|vnd\.api\+json|soap\+xml|problem\+json|ld\+json|grpc(-web)?(\+[a-z]+)?)|text/(xml|event-stream))$`)},

	// Resource-kind signal.
	{Name: "xhr-fetch", Field: FieldResourceType, Effect: EffectSignal,
		Pattern: regexp.MustCompile(`^(xhr|fetch)$`)},

	// URL patterns.
	{Name: "api-root", Field: FieldPath, Effect: EffectSignal, Pattern: regexp.MustCompile(`/(api|rest|service|gateway|endpoint)\b`)},
	{Name: "version-segment", Field: FieldPath, Effect: EffectSignal, Pattern: regexp.MustCompile(`/v[0-9]+(\.[0-9]+)?(/|$)`)},
	{Name: "named-api", Field: FieldPath, Effect: EffectSignal, Pattern: regexp.MustCompile(`/(public|private)api\b`)},
	{Name: "graphql-root", Field: FieldPath, Effect: EffectSignal, Pattern: regexp.MustCompile(`/(graphql|gql|query|mutations)\b`)},
	{Name: "domain-root", Field: FieldPath, Effect: EffectSignal, Pattern: regexp.MustCompile(`/(auth|login|register|user|users|data|search|account)\b`)},
	{Name: "settings-root", Field: FieldPath, Effect: EffectSignal, Pattern: regexp.MustCompile(`/(profile|settings|config|preferences)\b`)},
	{Name: "data-suffix", Field: FieldPath, Effect: EffectSignal, Pattern: regexp.MustCompile(`\.(json|xml|graphql|yaml)$`)},
	{Name: "verb-in-path", Field: FieldPath, Effect: EffectSignal, Pattern: regexp.MustCompile(`/(fetch|get|list|create|update|delete|post|put|patch)\b`)},
	{Name: "rpc-root", Field: FieldPath, Effect: EffectSignal, Pattern: regexp.MustCompile(`/(ws|rpc|soap|webhooks?|callback)\b`)},
	{Name: "stream-root", Field: FieldPath, Effect: EffectSignal, Pattern: regexp.MustCompile(`/(stream|events|notifications)\b`)},

	// Betting and market feeds.
	{Name: "market-path", Field: FieldPath, Effect: EffectSignal, Pattern: regexp.MustCompile(`/(odds|markets|betting|prices|quotes)\b`)},
	{Name: "event-path", Field: FieldPath, Effect: EffectSignal, Pattern: regexp.MustCompile(`/(sports|events|matches|fixtures)\b`)},
	{Name: "live-path", Field: FieldPath, Effect: EffectSignal, Pattern: regexp.MustCompile(`/(live|in-play|streaming|prematch|pre-match|upcoming)\b`)},
	{Name: "wager-path", Field: FieldPath, Effect: EffectSignal, Pattern: regexp.MustCompile(`/(bet|stake|wager|place-bet)\b`)},
	{Name: "wallet-path", Field: FieldPath, Effect: EffectSignal, Pattern: regexp.MustCompile(`/(balance|account|wallet)\b`)},
	{Name: "feed-path", Field: FieldPath, Effect: EffectSignal, Pattern: regexp.MustCompile(`/(feed|stream|updates|changes)\b`)},

	// Query-parameter signal.
	{Name: "market-query", Field: FieldQueryKey, Effect: EffectSignal, Pattern: regexp.MustCompile(`^(odds|markets|eventId)$`)},

	// Protocol resolution.
	{Name: "graphql-path", Field: FieldPath, Effect: EffectProtocol, Protocol: ProtocolGraphQL, Precedence: 10,
		Pattern: regexp.MustCompile(`graphql`)},
	{Name: "graphql-media", Field: FieldContentType, Effect: EffectProtocol, Protocol: ProtocolGraphQL, Precedence: 11,
		Pattern: regexp.MustCompile(`^application/graphql`)},
	{Name: "graphql-body", Field: FieldBody, Effect: EffectProtocol, Protocol: ProtocolGraphQL, Precedence: 12,
		Pattern: regexp.MustCompile(`\b(query|mutation)\b`)},
	{Name: "soap-media", Field: FieldContentType, Effect: EffectProtocol, Protocol: ProtocolSOAP, Precedence: 20,
		Pattern: regexp.MustCompile(`soap\+xml`)},
	{Name: "soap-action", Field: FieldRequestHeader, Key: "soapaction", Effect: EffectProtocol, Protocol: ProtocolSOAP, Precedence: 21,
		Pattern: anyValue},
	{Name: "grpc-media", Field: FieldContentType, Effect: EffectProtocol, Protocol: ProtocolGRPC, Precedence: 30,
		Pattern: regexp.MustCompile(`^application/grpc`)},
	{Name: "sse-media", Field: FieldContentType, Effect: EffectProtocol, Protocol: ProtocolSSE, Precedence: 40,
		Pattern: regexp.MustCompile(`^text/event-stream$`)},
	{Name: "jsonapi-media", Field: FieldContentType, Effect: EffectProtocol, Protocol: ProtocolJSONAPI, Precedence: 50,
		Pattern: regexp.MustCompile(`^application/vnd\.api\+json$`)},
	{Name: "hal-media", Field: FieldContentType, Effect: EffectProtocol, Protocol: ProtocolHAL, Precedence: 60,
		Pattern: regexp.MustCompile(`^application/hal\+json$`)},

	// Purpose buckets, in lookup order.
	{Name: "purpose-auth", Field: FieldPath, Effect: EffectPurpose, Purpose: PurposeAuth, Precedence: 1,
		Pattern: regexp.MustCompile(`auth|login|logout|signin|signup|token|oauth`)},
	{Name: "purpose-search", Field: FieldPath, Effect: EffectPurpose, Purpose: PurposeSearch, Precedence: 2,
		Pattern: regexp.MustCompile(`search|query|filter|suggest`)},
	{Name: "purpose-user", Field: FieldPath, Effect: EffectPurpose, Purpose: PurposeUser, Precedence: 3,
		Pattern: regexp.MustCompile(`user|profile|account|(^|/)me(/|$)`)},
	{Name: "purpose-data", Field: FieldPath, Effect: EffectPurpose, Purpose: PurposeData, Precedence: 4,
		Pattern: regexp.MustCompile(`data|items|list|feed|records`)},
	{Name: "purpose-admin", Field: FieldPath, Effect: EffectPurpose, Purpose: PurposeAdmin, Precedence: 5,
		Pattern: regexp.MustCompile(`admin|manage|settings|config`)},
	{Name: "purpose-payments", Field: FieldPath, Effect: EffectPurpose, Purpose: PurposePayments, Precedence: 6,
		Pattern: regexp.MustCompile(`payment|checkout|billing|invoice`)},

	// Extra categories.
	{Name: "auth-header", Field: FieldRequestHeader, Key: "authorization", Effect: EffectCategory, Category: CategoryRequiresAuth, Pattern: anyValue},
	{Name: "key-header", Field: FieldRequestHeader, Key: "x-api-key", Effect: EffectCategory, Category: CategoryRequiresAuth, Pattern: anyValue},
	{Name: "token-query", Field: FieldQueryKey, Effect: EffectCategory, Category: CategoryRequiresAuth,
		Pattern: regexp.MustCompile(`(?i)^(token|access_token|api_key|apikey)$`)},
	{Name: "market-category", Field: FieldQueryKey, Effect: EffectCategory, Category: CategoryBetting,
		Pattern: regexp.MustCompile(`^(odds|markets|eventId)$`)},

	// Market keyword tags, substring matches over the path.
	{Name: "odds-keyword", Field: FieldPath, Effect: EffectCategory, Category: CategoryOdds,
		Pattern: regexp.MustCompile(`odds|prices|markets|quotes`)},
	{Name: "events-keyword", Field: FieldPath, Effect: EffectCategory, Category: CategoryEvents,
		Pattern: regexp.MustCompile(`events|matches|fixtures|schedule`)},
	{Name: "live-keyword", Field: FieldPath, Effect: EffectCategory, Category: CategoryLive,
		Pattern: regexp.MustCompile(`live|in-play|streaming|real-time`)},
	{Name: "betting-keyword", Field: FieldPath, Effect: EffectCategory, Category: CategoryBetting,
		Pattern: regexp.MustCompile(`bet|stake|wager|place`)},
	{Name: "account-keyword", Field: FieldPath, Effect: EffectCategory, Category: CategoryAccount,
		Pattern: regexp.MustCompile(`balance|account|wallet|user`)},
}
