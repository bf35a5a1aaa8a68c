// Package classifier decides whether a network exchange is an API call and
// tags it with protocol, purpose and header-derived metadata.
//
// Classification is a pure function of the exchange and a static rule table.
package classifier

import (
	"mime"
	"net/url"
	"sort"
	"strings"

	"github.com/atharvkhisti/WebReckon/internal/traffic"
)

// Classifier evaluates exchanges against a rule table.
type Classifier struct {
	rules []Rule
}

// New creates a classifier over rules. A nil table selects DefaultRules.
func New(rules []Rule) *Classifier {
	if rules == nil {
		rules = DefaultRules
	}
	return &Classifier{rules: rules}
}

var defaultClassifier = New(nil)

// Classify runs the default rule table over ex.
func Classify(ex traffic.Exchange) Classification {
	return defaultClassifier.Classify(ex)
}

// PurposeOf returns the purpose bucket for a URL path using the default table.
func PurposeOf(path string) Purpose {
	v := view{path: strings.ToLower(path)}
	return defaultClassifier.purpose(v)
}

// Classify never fails; an internal fault yields an Unknown, non-API result.
func (c *Classifier) Classify(ex traffic.Exchange) (cls Classification) {
	defer func() {
		if r := recover(); r != nil {
			cls = unknown()
		}
	}()

	v := newView(ex)
	cls = unknown()
	cls.Purpose = c.purpose(v)
	cls.AuthScheme = AuthSchemeOf(ex)
	cls.RequestFormat = RequestFormatOf(ex)
	cls.ResponseFormat = ResponseFormatOf(ex)
	cls.RateLimit = RateLimitOf(ex)
	cls.Cache = CacheOf(ex)
	cls.CORS = CORSOf(ex)

	if c.any(v, EffectExclude) {
		cls.Categories = c.categories(v, cls)
		return cls
	}

	upgrade := c.any(v, EffectUpgrade)
	cls.IsAPI = upgrade || c.any(v, EffectSignal)
	if cls.IsAPI {
		if upgrade {
			cls.Protocol = ProtocolWebSocket
		} else {
			cls.Protocol = c.protocol(v)
		}
	}
	cls.Categories = c.categories(v, cls)
	return cls
}

func (c *Classifier) any(v view, effect Effect) bool {
	for i := range c.rules {
		if c.rules[i].Effect == effect && v.matches(&c.rules[i]) {
			return true
		}
	}
	return false
}

// first returns the lowest-precedence matching rule of effect, or nil.
func (c *Classifier) first(v view, effect Effect) *Rule {
	var best *Rule
	for i := range c.rules {
		r := &c.rules[i]
		if r.Effect != effect || !v.matches(r) {
			continue
		}
		if best == nil || r.Precedence < best.Precedence {
			best = r
		}
	}
	return best
}

func (c *Classifier) protocol(v view) Protocol {
	if r := c.first(v, EffectProtocol); r != nil {
		return r.Protocol
	}
	return ProtocolREST
}

func (c *Classifier) purpose(v view) Purpose {
	if r := c.first(v, EffectPurpose); r != nil {
		return r.Purpose
	}
	return PurposeOther
}

func (c *Classifier) categories(v view, cls Classification) []string {
	set := make(map[string]struct{})
	for i := range c.rules {
		r := &c.rules[i]
		switch r.Effect {
		case EffectPurpose:
			if v.matches(r) {
				set[string(r.Purpose)] = struct{}{}
			}
		case EffectCategory:
			if v.matches(r) {
				set[r.Category] = struct{}{}
			}
		}
	}
	if cls.Protocol == ProtocolWebSocket || cls.Protocol == ProtocolSSE {
		set[CategoryRealtime] = struct{}{}
	}
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for tag := range set {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// view is the pre-extracted set of fields rules are matched against.
type view struct {
	path        string
	host        string
	scheme      string
	query       url.Values
	resource    string
	contentType string
	body        string
	reqHeaders  traffic.Header
	respHeaders traffic.Header
}

func newView(ex traffic.Exchange) view {
	v := view{
		resource:    string(ex.ResourceType),
		contentType: baseMediaType(ex.ContentType()),
		body:        ex.RequestBody,
		reqHeaders:  ex.RequestHeaders,
		respHeaders: ex.ResponseHeaders,
	}
	u, err := url.Parse(ex.URL)
	if err != nil {
		v.path = strings.ToLower(ex.URL)
		return v
	}
	v.path = strings.ToLower(u.Path)
	v.host = strings.ToLower(u.Hostname())
	v.scheme = strings.ToLower(u.Scheme)
	v.query = u.Query()
	return v
}

func (v view) matches(r *Rule) bool {
	switch r.Field {
	case FieldPath:
		return r.Pattern.MatchString(v.path)
	case FieldHost:
		return v.host != "" && r.Pattern.MatchString(v.host)
	case FieldScheme:
		return r.Pattern.MatchString(v.scheme)
	case FieldResourceType:
		return r.Pattern.MatchString(v.resource)
	case FieldRequestHeader:
		val, ok := v.reqHeaders[r.Key]
		return ok && r.Pattern.MatchString(val)
	case FieldResponseHeader:
		val, ok := v.respHeaders[r.Key]
		return ok && r.Pattern.MatchString(val)
	case FieldContentType:
		return v.contentType != "" && r.Pattern.MatchString(v.contentType)
	case FieldQueryKey:
		for key := range v.query {
			if r.Pattern.MatchString(key) {
				return true
			}
		}
		return false
	case FieldBody:
		return v.body != "" && r.Pattern.MatchString(v.body)
	default:
		return false
	}
}

// baseMediaType strips parameters and lower-cases a content type.
func baseMediaType(ct string) string {
	if ct == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}
