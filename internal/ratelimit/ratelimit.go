// Package ratelimit throttles outbound provider calls with a per-source
// sliding window. The limiter only ever delays a call, it never drops one;
// callers wanting a hard deadline wrap Wait in their own context timeout.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ebita-intel/metrics-cli/internal/metric"
)

const (
	window       = time.Minute
	safetyMargin = 50 * time.Millisecond
)

// Limit is the per-source quota configuration, immutable after
// construction. PerDay is advisory: exceeding it is logged and surfaced,
// not enforced by blocking.
type Limit struct {
	PerMinute int
	PerDay    int
}

// Stat is a point-in-time view of one source's limiter state.
type Stat struct {
	InWindow  int  `json:"in_window"`
	Today     int  `json:"today"`
	PerMinute int  `json:"per_minute"`
	PerDay    int  `json:"per_day"`
	OverQuota bool `json:"over_quota"`
}

// Limiter tracks call timestamps per source. Safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	limits   map[metric.Source]Limit
	windows  map[metric.Source][]time.Time
	daily    map[metric.Source]int
	day      time.Time
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error
}

// New builds a limiter from a per-source quota table. Sources absent from
// the table are never throttled.
func New(limits map[metric.Source]Limit) *Limiter {
	l := &Limiter{
		limits:  limits,
		windows: make(map[metric.Source][]time.Time),
		daily:   make(map[metric.Source]int),
		now:     time.Now,
	}
	l.sleep = func(ctx context.Context, d time.Duration) error {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		}
	}
	l.day = l.now().Truncate(24 * time.Hour)
	return l
}

// FromSpecs derives a quota table from the provider spec table.
func FromSpecs(specs map[metric.Source]metric.SourceSpec) map[metric.Source]Limit {
	out := make(map[metric.Source]Limit, len(specs))
	for s, sp := range specs {
		if sp.PerMinute > 0 || sp.PerDay > 0 {
			out[s] = Limit{PerMinute: sp.PerMinute, PerDay: sp.PerDay}
		}
	}
	return out
}

// WithNow swaps the clock. Testing hook.
func (l *Limiter) WithNow(now func() time.Time) *Limiter {
	l.now = now
	l.day = now().Truncate(24 * time.Hour)
	return l
}

// WithSleep swaps the suspension primitive. Testing hook.
func (l *Limiter) WithSleep(sleep func(context.Context, time.Duration) error) *Limiter {
	l.sleep = sleep
	return l
}

// Wait blocks until a call to source is permitted, then records it. It
// returns early only when ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context, source metric.Source) error {
	for {
		d, ok := l.tryAcquire(source)
		if ok {
			return nil
		}
		zap.L().Debug("rate limit reached, waiting",
			zap.String("source", string(source)),
			zap.Duration("wait", d))
		if err := l.sleep(ctx, d); err != nil {
			return err
		}
	}
}

// tryAcquire records a call if the window has room, or returns how long to
// wait before retrying.
func (l *Limiter) tryAcquire(source metric.Source) (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.rollDay(now)

	limit, ok := l.limits[source]
	if !ok || limit.PerMinute <= 0 {
		l.record(source, limit)
		return 0, true
	}

	w := l.prune(source, now)
	if len(w) < limit.PerMinute {
		l.windows[source] = append(w, now)
		l.record(source, limit)
		return 0, true
	}
	return window - now.Sub(w[0]) + safetyMargin, false
}

// record counts the call against the daily quota, logging once on the call
// that crosses it. Caller holds the lock.
func (l *Limiter) record(source metric.Source, limit Limit) {
	l.daily[source]++
	if limit.PerDay > 0 && l.daily[source] == limit.PerDay {
		zap.L().Warn("daily quota likely exhausted",
			zap.String("source", string(source)),
			zap.Int("calls_today", l.daily[source]),
			zap.Int("per_day", limit.PerDay))
	}
}

// prune drops timestamps older than the window. Caller holds the lock.
func (l *Limiter) prune(source metric.Source, now time.Time) []time.Time {
	w := l.windows[source]
	cutoff := now.Add(-window)
	i := 0
	for i < len(w) && !w[i].After(cutoff) {
		i++
	}
	w = w[i:]
	l.windows[source] = w
	return w
}

func (l *Limiter) rollDay(now time.Time) {
	day := now.Truncate(24 * time.Hour)
	if day.After(l.day) {
		l.day = day
		l.daily = make(map[metric.Source]int)
	}
}

// QuotaExceeded reports whether source has passed its advisory daily quota.
func (l *Limiter) QuotaExceeded(source metric.Source) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollDay(l.now())
	limit, ok := l.limits[source]
	if !ok || limit.PerDay <= 0 {
		return false
	}
	return l.daily[source] >= limit.PerDay
}

// Snapshot returns per-source limiter state for observability endpoints.
func (l *Limiter) Snapshot() map[metric.Source]Stat {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.rollDay(now)

	out := make(map[metric.Source]Stat)
	for source := range l.limits {
		limit := l.limits[source]
		out[source] = Stat{
			InWindow:  len(l.prune(source, now)),
			Today:     l.daily[source],
			PerMinute: limit.PerMinute,
			PerDay:    limit.PerDay,
			OverQuota: limit.PerDay > 0 && l.daily[source] >= limit.PerDay,
		}
	}
	for source, count := range l.daily {
		if _, ok := out[source]; !ok {
			out[source] = Stat{InWindow: len(l.prune(source, now)), Today: count}
		}
	}
	return out
}
