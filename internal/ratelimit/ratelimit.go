// Package ratelimit holds the upstream catalog quota as an explicit, injectable
// resource: a token bucket for request pacing, a cooldown armed by upstream
// throttling, an optional daily cap, and counters for observability.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// ErrExhausted is returned when the quota refuses a request without waiting:
// during a throttle cooldown or after the daily cap is reached.
var ErrExhausted = errors.New("upstream quota exhausted")

// Config sizes a Quota.
type Config struct {
	RPS        float64       // sustained requests per second
	Burst      int           // tokens available immediately
	Cooldown   time.Duration // pause after upstream throttling when it gives no Retry-After
	DailyLimit int64         // zero means unlimited
}

// Stats is a snapshot of quota counters.
type Stats struct {
	Requests  int64 `json:"requests"`
	Retries   int64 `json:"retries"`
	Throttled int64 `json:"throttled"`
	Refused   int64 `json:"refused"`
}

// Quota paces outbound requests against one upstream. Safe for concurrent use.
type Quota struct {
	limiter *rate.Limiter
	cfg     Config
	now     func() time.Time

	mu          sync.Mutex
	pausedUntil time.Time
	dayCount    int64
	dayResetAt  time.Time

	requests  atomic.Int64
	retries   atomic.Int64
	throttled atomic.Int64
	refused   atomic.Int64
}

// New creates a quota from cfg.
func New(cfg Config) *Quota {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	q := &Quota{
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		cfg:     cfg,
		now:     time.Now,
	}
	q.dayResetAt = nextMidnightUTC(q.now())
	return q
}

// Acquire blocks until a request may be sent or ctx is done. It fails fast
// with ErrExhausted while a throttle cooldown is active or the daily cap is spent.
// A wait cut short by ctx gives its daily unit back.
func (q *Quota) Acquire(ctx context.Context) error {
	day, err := q.admit()
	if err != nil {
		q.refused.Add(1)
		return err
	}
	if err := q.limiter.Wait(ctx); err != nil {
		q.refund(day)
		return err
	}
	q.requests.Add(1)
	return nil
}

// admit charges one unit of the daily cap and returns the end of the day it
// was charged to; the zero time means nothing was charged.
func (q *Quota) admit() (time.Time, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	if now.Before(q.pausedUntil) {
		return time.Time{}, ErrExhausted
	}
	if q.cfg.DailyLimit <= 0 {
		return time.Time{}, nil
	}
	if !now.Before(q.dayResetAt) {
		q.dayCount = 0
		q.dayResetAt = nextMidnightUTC(now)
	}
	if q.dayCount >= q.cfg.DailyLimit {
		return time.Time{}, ErrExhausted
	}
	q.dayCount++
	return q.dayResetAt, nil
}

// refund returns a unit charged by admit, unless the day has rolled over since.
func (q *Quota) refund(day time.Time) {
	if day.IsZero() {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if day.Equal(q.dayResetAt) && q.dayCount > 0 {
		q.dayCount--
	}
}

// RecordRetry counts a retried request.
func (q *Quota) RecordRetry() {
	q.retries.Add(1)
}

// RecordThrottled arms the cooldown after the upstream rejected a request for
// rate reasons. retryAfter overrides the configured cooldown when positive.
func (q *Quota) RecordThrottled(retryAfter time.Duration) {
	q.throttled.Add(1)
	if retryAfter <= 0 {
		retryAfter = q.cfg.Cooldown
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if until := q.now().Add(retryAfter); until.After(q.pausedUntil) {
		q.pausedUntil = until
	}
}

// Stats returns a snapshot of the counters.
func (q *Quota) Stats() Stats {
	return Stats{
		Requests:  q.requests.Load(),
		Retries:   q.retries.Load(),
		Throttled: q.throttled.Load(),
		Refused:   q.refused.Load(),
	}
}

func nextMidnightUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}
