// Package catalog holds the deduplicated set of discovered endpoints.
package catalog

import (
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/atharvkhisti/WebReckon/internal/classifier"
	"github.com/atharvkhisti/WebReckon/internal/traffic"
)

// Source is how an endpoint was discovered.
type Source string

// Discovery sources.
const (
	SourceNetwork   Source = "network"
	SourceWebSocket Source = "websocket"
	SourceScan      Source = "source-scan"
)

// Confidence of a record.
const (
	ConfidenceHigh = "high"
	ConfidenceLow  = "low"
)

// Record is a catalog entry. It is written once and never mutated.
type Record struct {
	Key string `json:"key"`
	traffic.Exchange
	classifier.Classification
	Host           string    `json:"host"`
	Site           string    `json:"site"`
	Path           string    `json:"path"`
	IsThirdParty   bool      `json:"isThirdParty"`
	MaybeSensitive bool      `json:"maybeSensitive"`
	IsSuspicious   bool      `json:"isSuspicious"`
	Source         Source    `json:"source"`
	Confidence     string    `json:"confidence"`
	FirstSeenAt    time.Time `json:"firstSeenAt"`
}

// Stats counts catalog activity.
type Stats struct {
	Recorded   int `json:"recorded"`
	Duplicates int `json:"duplicates"`
}

// Catalog is a deduplicating endpoint store keyed by method, origin and path.
// First observation wins. All methods are safe for concurrent use.
type Catalog struct {
	mu         sync.Mutex
	index      *keyIndex
	records    []Record
	duplicates int
	now        func() time.Time
}

// New creates an empty catalog sized for roughly estimatedKeys endpoints.
func New(estimatedKeys int) *Catalog {
	return &Catalog{
		index: newKeyIndex(estimatedKeys),
		now:   time.Now,
	}
}

// SetClock replaces the clock used for FirstSeenAt.
func (c *Catalog) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Key returns the dedup key for method and rawURL. The query string and
// fragment are not part of the key.
func Key(method, rawURL string) string {
	method = strings.ToUpper(method)
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return method + " " + rawURL
	}
	return method + " " + traffic.Origin(u) + u.Path
}

// Record inserts an observed network exchange. It returns false when the key
// is already present, in which case nothing changes.
func (c *Catalog) Record(ex traffic.Exchange, cls classifier.Classification, targetOrigin string) bool {
	return c.RecordFrom(SourceNetwork, ex, cls, targetOrigin)
}

// RecordFrom is Record with an explicit discovery source.
func (c *Catalog) RecordFrom(src Source, ex traffic.Exchange, cls classifier.Classification, targetOrigin string) bool {
	key := Key(ex.Method, ex.URL)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.index.add(key) {
		c.duplicates++
		return false
	}
	c.records = append(c.records, newRecord(key, src, ex, cls, targetOrigin, c.now()))
	return true
}

// Contains reports whether an endpoint with the same key is recorded.
func (c *Catalog) Contains(method, rawURL string) bool {
	key := Key(method, rawURL)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index.seen(key)
}

// Snapshot returns the records in insertion order.
func (c *Catalog) Snapshot() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Record, len(c.records))
	copy(out, c.records)
	return out
}

// Len returns the number of records.
func (c *Catalog) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index.len()
}

// Stats returns insert and duplicate counts.
func (c *Catalog) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{Recorded: len(c.records), Duplicates: c.duplicates}
}

func newRecord(key string, src Source, ex traffic.Exchange, cls classifier.Classification, targetOrigin string, now time.Time) Record {
	r := Record{
		Key:            key,
		Exchange:       ex,
		Classification: cls,
		MaybeSensitive: cls.Purpose.Sensitive(),
		Source:         src,
		Confidence:     ConfidenceHigh,
		FirstSeenAt:    now,
	}
	if u, err := url.Parse(ex.URL); err == nil {
		r.Host = strings.ToLower(u.Hostname())
		r.Path = u.Path
		r.Site = SiteOf(r.Host)
		r.IsThirdParty = IsThirdParty(r.Host, targetOrigin)
	}

	if src == SourceScan {
		r.Confidence = ConfidenceLow
	} else {
		r.IsSuspicious = ex.ResponseStatus >= 400 || ex.ResponseStatus == 0
	}
	return r
}

// IsThirdParty reports whether host differs from the target's hostname.
// An unparseable target never makes anything third-party.
func IsThirdParty(host, targetOrigin string) bool {
	t, err := url.Parse(targetOrigin)
	if err != nil || t.Hostname() == "" || host == "" {
		return false
	}
	return !strings.EqualFold(host, t.Hostname())
}

// SiteOf returns the registrable domain of host, or host itself when the
// public suffix list cannot resolve it (IP literals, localhost).
func SiteOf(host string) string {
	if host == "" || net.ParseIP(host) != nil {
		return host
	}
	site, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return site
}
