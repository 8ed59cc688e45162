package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ebita-intel/metrics-cli/internal/metric"
)

// fakeClock advances only when the limiter sleeps, so tests run instantly.
type fakeClock struct {
	now    time.Time
	slept  []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
	return nil
}

func newTestLimiter(clock *fakeClock, limits map[metric.Source]Limit) *Limiter {
	return New(limits).WithNow(clock.Now).WithSleep(clock.Sleep)
}

func TestWaitUnderLimitDoesNotBlock(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock, map[metric.Source]Limit{metric.SourceYahoo: {PerMinute: 5}})

	for range 5 {
		require.NoError(t, l.Wait(context.Background(), metric.SourceYahoo))
	}
	assert.Empty(t, clock.slept)
}

func TestWaitDelaysCallPastWindow(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock, map[metric.Source]Limit{metric.SourceAlphaVantage: {PerMinute: 5}})

	start := clock.now
	for range 5 {
		require.NoError(t, l.Wait(context.Background(), metric.SourceAlphaVantage))
		clock.now = clock.now.Add(2 * time.Second) // five calls inside a 10s burst
	}

	require.NoError(t, l.Wait(context.Background(), metric.SourceAlphaVantage))
	require.NotEmpty(t, clock.slept, "sixth call must be delayed")
	assert.GreaterOrEqual(t, clock.now.Sub(start), time.Minute,
		"delayed call proceeds only once a full minute has passed since the first call in the window")
}

func TestWaitUnknownSourceNeverThrottled(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock, nil)
	for range 100 {
		require.NoError(t, l.Wait(context.Background(), metric.Source("unlisted")))
	}
	assert.Empty(t, clock.slept)
}

func TestWaitHonorsContextCancellation(t *testing.T) {
	clock := newFakeClock()
	l := New(map[metric.Source]Limit{metric.SourceScrape: {PerMinute: 1}}).
		WithNow(clock.Now).
		WithSleep(func(ctx context.Context, _ time.Duration) error { return context.Canceled })

	require.NoError(t, l.Wait(context.Background(), metric.SourceScrape))
	err := l.Wait(context.Background(), metric.SourceScrape)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDailyQuotaIsAdvisory(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock, map[metric.Source]Limit{
		metric.SourceAlphaVantage: {PerMinute: 0, PerDay: 3},
	})

	for range 3 {
		require.NoError(t, l.Wait(context.Background(), metric.SourceAlphaVantage))
	}
	assert.Empty(t, clock.slept, "daily quota never blocks")
	assert.True(t, l.QuotaExceeded(metric.SourceAlphaVantage))

	// counters reset at the day boundary.
	clock.now = clock.now.Add(25 * time.Hour)
	assert.False(t, l.QuotaExceeded(metric.SourceAlphaVantage))
}

func TestSnapshot(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(clock, map[metric.Source]Limit{
		metric.SourceNSE: {PerMinute: 30, PerDay: 100},
	})
	for range 4 {
		require.NoError(t, l.Wait(context.Background(), metric.SourceNSE))
	}

	snap := l.Snapshot()
	stat := snap[metric.SourceNSE]
	assert.Equal(t, 4, stat.InWindow)
	assert.Equal(t, 4, stat.Today)
	assert.Equal(t, 30, stat.PerMinute)
	assert.False(t, stat.OverQuota)

	// entries older than the window fall out of the in-window count.
	clock.now = clock.now.Add(2 * time.Minute)
	stat = l.Snapshot()[metric.SourceNSE]
	assert.Equal(t, 0, stat.InWindow)
	assert.Equal(t, 4, stat.Today)
}

func TestFromSpecs(t *testing.T) {
	limits := FromSpecs(metric.DefaultSourceSpecs())
	assert.Equal(t, Limit{PerMinute: 5, PerDay: 25}, limits[metric.SourceAlphaVantage])
	_, ok := limits[metric.SourceComputed]
	assert.False(t, ok)
}

func TestQuotaWarningLoggedOnceAtCrossing(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	prev := zap.ReplaceGlobals(zap.New(core))
	defer prev()

	clock := newFakeClock()
	l := newTestLimiter(clock, map[metric.Source]Limit{metric.SourceBSE: {PerDay: 3}})

	for range 5 {
		require.NoError(t, l.Wait(context.Background(), metric.SourceBSE))
	}
	for range 4 {
		assert.True(t, l.QuotaExceeded(metric.SourceBSE))
	}

	matched := logs.FilterMessage("daily quota likely exhausted").All()
	require.Len(t, matched, 1, "the warning fires on the crossing call only")
	assert.Equal(t, int64(3), matched[0].ContextMap()["calls_today"])
}
