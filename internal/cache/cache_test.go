package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebita-intel/metrics-cli/internal/metric"
)

func TestTTLs(t *testing.T) {
	ttls := DefaultTTLs()
	assert.Equal(t, 5*time.Minute, ttls.For(metric.ClassLive))
	assert.Equal(t, time.Hour, ttls.For(metric.ClassFundamental))
	assert.Equal(t, 24*time.Hour, ttls.For(metric.ClassStructural))

	// mixed kinds take the slowest member's lifetime.
	got := ttls.Slowest([]metric.Kind{metric.Price, metric.Revenue, metric.ROE})
	assert.Equal(t, 24*time.Hour, got)

	assert.Equal(t, time.Hour, ttls.Slowest([]metric.Kind{metric.Revenue, metric.Price}))
	assert.Equal(t, 5*time.Minute, ttls.Slowest(nil))
}

func TestFinancialsKey(t *testing.T) {
	k1 := FinancialsKey("infy", "india", "Banking", []metric.Kind{metric.Revenue, metric.MarketCap})
	k2 := FinancialsKey("INFY", "INDIA", "banking", []metric.Kind{metric.MarketCap, metric.Revenue})
	assert.Equal(t, k1, k2, "keys are case and order insensitive")
	assert.Contains(t, k1, "INFY")

	assert.NotEqual(t, k1, FinancialsKey("INFY", "", "banking", []metric.Kind{metric.Revenue, metric.MarketCap}))

	// records carry profile findings, so the industry separates entries
	tech := FinancialsKey("INFY", "india", "technology", nil)
	assert.NotEqual(t, FinancialsKey("INFY", "india", "banking", nil), tech)
	assert.Equal(t, FinancialsKey("INFY", "india", "default", nil),
		FinancialsKey("INFY", "india", "", nil))
}

func TestMemoryGetSetRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, ok, err := m.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "k", []byte("v1"), time.Minute))
	payload, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v1"), payload)

	// last set wins.
	require.NoError(t, m.Set(ctx, "k", []byte("v2"), time.Minute))
	payload, _, _ = m.Get(ctx, "k")
	assert.Equal(t, []byte("v2"), payload)
}

func TestMemoryLazyExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	m := NewMemory().WithNow(func() time.Time { return now })

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 5*time.Minute))

	now = now.Add(4 * time.Minute)
	_, ok, _ := m.Get(ctx, "k")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, _ = m.Get(ctx, "k")
	assert.False(t, ok, "expired entries behave exactly like a miss")

	stats := m.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Evictions)
	assert.Equal(t, 0, stats.Entries)
}

func TestMemoryInvalidateSubstring(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Set(ctx, "financials:INFY:india", []byte("a"), time.Minute))
	require.NoError(t, m.Set(ctx, "source:yahoo:INFY", []byte("b"), time.Minute))
	require.NoError(t, m.Set(ctx, "financials:TCS:india", []byte("c"), time.Minute))

	removed, err := m.Invalidate(ctx, "INFY")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	_, ok, _ := m.Get(ctx, "financials:TCS:india")
	assert.True(t, ok)
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	in := metric.EntityFinancials{EntityID: "INFY", Warnings: []string{}}
	require.NoError(t, SetJSON(ctx, m, "k", in, time.Minute))

	var out metric.EntityFinancials
	ok, err := GetJSON(ctx, m, "k", &out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "INFY", out.EntityID)

	ok, err = GetJSON(ctx, m, "absent", &out)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, "INFY", escapeGlob("INFY"))
	assert.Equal(t, `fin\*\?\[a\]\\`, escapeGlob(`fin*?[a]\`))
}
