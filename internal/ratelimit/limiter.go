// Package ratelimit paces page interactions and outbound probes.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out actions with a token bucket. A global bucket applies to
// every action; WaitKey additionally applies a bucket per key (for example a
// host).
type Pacer struct {
	mu           sync.Mutex
	limiter      *rate.Limiter
	perKey       map[string]*rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
}

// NewPacer creates a pacer allowing perSecond actions with the given burst.
// A non-positive rate disables pacing.
func NewPacer(perSecond float64, burst int) *Pacer {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &Pacer{
		limiter:      rate.NewLimiter(limit, burst),
		perKey:       make(map[string]*rate.Limiter),
		defaultRate:  limit,
		defaultBurst: burst,
	}
}

// Every creates a pacer allowing one action per interval.
func Every(interval time.Duration) *Pacer {
	if interval <= 0 {
		return NewPacer(0, 1)
	}
	return NewPacer(float64(time.Second)/float64(interval), 1)
}

// Wait blocks until the next action is allowed or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// WaitKey blocks on the global bucket, then on the bucket for key.
func (p *Pacer) WaitKey(ctx context.Context, key string) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	p.mu.Lock()
	l, ok := p.perKey[key]
	if !ok {
		l = rate.NewLimiter(p.defaultRate, p.defaultBurst)
		p.perKey[key] = l
	}
	p.mu.Unlock()

	return l.Wait(ctx)
}

// Allow reports whether an action may happen now, consuming a token if so.
func (p *Pacer) Allow() bool {
	return p.limiter.Allow()
}

// SetRate updates the global rate.
func (p *Pacer) SetRate(perSecond float64, burst int) {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	p.limiter.SetLimit(limit)
	p.limiter.SetBurst(burst)

	p.mu.Lock()
	p.defaultRate = limit
	p.defaultBurst = burst
	p.mu.Unlock()
}

// Stats returns pacer statistics.
func (p *Pacer) Stats() PacerStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return PacerStats{
		Keys:  len(p.perKey),
		Rate:  float64(p.defaultRate),
		Burst: p.defaultBurst,
	}
}

// PacerStats contains pacer statistics.
type PacerStats struct {
	Keys  int     `json:"keys"`
	Rate  float64 `json:"rate"`
	Burst int     `json:"burst"`
}
