// Package interceptor bridges browser traffic into the classifier and the
// endpoint catalog.
package interceptor

import (
	"net/url"
	"sort"
	"time"

	"github.com/atharvkhisti/WebReckon/internal/catalog"
	"github.com/atharvkhisti/WebReckon/internal/classifier"
	"github.com/atharvkhisti/WebReckon/internal/logger"
	"github.com/atharvkhisti/WebReckon/internal/metrics"
	"github.com/atharvkhisti/WebReckon/internal/traffic"
)

// SocketMethod is the synthetic method of long-lived connection records.
const SocketMethod = "WS"

// Interceptor turns raw adapter reports into catalog records. It implements
// traffic.Handler and is safe for concurrent use; the catalog is the only
// shared state.
type Interceptor struct {
	catalog      *catalog.Catalog
	classifier   *classifier.Classifier
	targetOrigin string
	bodyLimit    int
	now          func() time.Time
	log          *logger.Logger
	metrics      *metrics.Collector
}

// Option configures an Interceptor.
type Option func(*Interceptor)

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(i *Interceptor) {
		i.log = l
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(i *Interceptor) {
		i.metrics = m
	}
}

// WithClock sets the exchange timestamp source.
func WithClock(now func() time.Time) Option {
	return func(i *Interceptor) {
		i.now = now
	}
}

// WithBodyLimit sets the response body budget in bytes.
func WithBodyLimit(n int) Option {
	return func(i *Interceptor) {
		i.bodyLimit = n
	}
}

// WithClassifier replaces the default rule table.
func WithClassifier(c *classifier.Classifier) Option {
	return func(i *Interceptor) {
		i.classifier = c
	}
}

// New creates an interceptor feeding cat. targetOrigin decides third-party
// status of recorded endpoints.
func New(cat *catalog.Catalog, targetOrigin string, opts ...Option) *Interceptor {
	i := &Interceptor{
		catalog:      cat,
		classifier:   classifier.New(nil),
		targetOrigin: targetOrigin,
		bodyLimit:    traffic.DefaultBodyLimit,
		now:          time.Now,
		log:          logger.NewNop(),
		metrics:      metrics.New(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// HandleExchange classifies one intercepted exchange and records it when it
// is an API call.
func (i *Interceptor) HandleExchange(raw traffic.Raw) {
	ex := traffic.NewExchange(raw, i.bodyLimit, i.now())
	cls := i.classifier.Classify(ex)
	i.metrics.RecordExchange(cls.IsAPI, ex.ResponseStatus)
	if !cls.IsAPI {
		return
	}
	i.record(catalog.SourceNetwork, ex, cls)
}

// HandleFailure notes a response fetch fault. The adapter has already let
// the request continue un-intercepted.
func (i *Interceptor) HandleFailure(rawURL, method string, err error) {
	i.metrics.RecordInterceptionFailure()
	i.log.Event(logger.DebugLevel).
		Err(err).
		Str("url", rawURL).
		Str("method", method).
		Msg("Response fetch failed, request continued")
}

// RecordSocket registers an established long-lived connection. The
// classifier is bypassed.
func (i *Interceptor) RecordSocket(ev traffic.SocketEvent) bool {
	i.metrics.RecordSocket()

	ts := ev.Timestamp
	if ts.IsZero() {
		ts = i.now()
	}
	raw := traffic.Raw{
		URL:            ev.URL,
		Method:         SocketMethod,
		RequestHeaders: ev.RequestHeaders,
		ResourceType:   string(traffic.ResourceWebSocket),
		Response:       &traffic.RawResponse{Status: ev.Status, Headers: ev.ResponseHeaders},
	}
	ex := traffic.NewExchange(raw, i.bodyLimit, ts)

	cls := synthetic(ex, classifier.ProtocolWebSocket)
	cls.AuthScheme = classifier.AuthSchemeOf(ex)
	cls.CORS = classifier.CORSOf(ex)
	cls.Categories = appendTag(cls.Categories, classifier.CategoryRealtime)
	return i.record(catalog.SourceWebSocket, ex, cls)
}

// Drain records every socket event currently buffered in ch without
// blocking and returns how many were consumed.
func (i *Interceptor) Drain(ch <-chan traffic.SocketEvent) int {
	n := 0
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return n
			}
			i.RecordSocket(ev)
			n++
		default:
			return n
		}
	}
}

// RecordStatic registers an endpoint-like URL found in page source. Keys
// already observed on the wire are kept as is.
func (i *Interceptor) RecordStatic(rawURL string) bool {
	ex := traffic.NewExchange(traffic.Raw{URL: rawURL, ResourceType: string(traffic.ResourceOther)}, i.bodyLimit, i.now())
	return i.record(catalog.SourceScan, ex, synthetic(ex, classifier.ProtocolStatic))
}

func (i *Interceptor) record(src catalog.Source, ex traffic.Exchange, cls classifier.Classification) bool {
	inserted := i.catalog.RecordFrom(src, ex, cls, i.targetOrigin)
	i.metrics.RecordEndpoint(inserted)
	if inserted {
		i.log.DiscoveryEvent(string(cls.Protocol), ex.Method, ex.URL, string(src))
	}
	return inserted
}

func synthetic(ex traffic.Exchange, protocol classifier.Protocol) classifier.Classification {
	path := ""
	if u, err := url.Parse(ex.URL); err == nil {
		path = u.Path
	}
	purpose := classifier.PurposeOf(path)
	cls := classifier.Classification{
		IsAPI:          true,
		Protocol:       protocol,
		Purpose:        purpose,
		AuthScheme:     classifier.AuthNone,
		RequestFormat:  classifier.FormatUnknown,
		ResponseFormat: classifier.FormatUnknown,
	}
	if purpose != classifier.PurposeOther {
		cls.Categories = []string{string(purpose)}
	}
	return cls
}

func appendTag(tags []string, tag string) []string {
	for _, t := range tags {
		if t == tag {
			return tags
		}
	}
	tags = append(tags, tag)
	sort.Strings(tags)
	return tags
}
