package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebita-intel/metrics-cli/internal/metric"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Microsecond,
		MaxBackoff:     time.Microsecond,
		JitterFraction: -1,
	}
}

func TestDoValSucceedsFirstTry(t *testing.T) {
	calls := 0
	got, err := DoVal(context.Background(), fastRetry(2), "fmp", func(context.Context) (int, error) {
		calls++
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 1, calls)
}

func TestDoValRetriesTransientOnly(t *testing.T) {
	calls := 0
	got, err := DoVal(context.Background(), fastRetry(3), "fmp", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewTransientError(errors.New("upstream 503"), 503)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)

	calls = 0
	_, err = DoVal(context.Background(), fastRetry(3), "fmp", func(context.Context) (string, error) {
		calls++
		return "", errors.New("malformed payload")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls, "permanent failures are not retried")
}

func TestDoValExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), fastRetry(2), "yahoo", func(context.Context) (int, error) {
		calls++
		return 0, NewTransientError(errors.New("timeout"), 504)
	})
	require.Error(t, err)
	assert.Equal(t, 2, calls)
}

func TestDoValStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := DoVal(ctx, fastRetry(5), "nse", func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, NewTransientError(errors.New("reset"), 0)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(errors.New("schema mismatch")))
	assert.True(t, IsTransient(NewTransientError(errors.New("429"), 429)))
	assert.True(t, IsTransient(errors.New("read tcp: i/o timeout")))
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "code %d", code)
	}
	for _, code := range []int{200, 400, 401, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), "code %d", code)
	}
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	b := NewBreaker(BreakerConfig{FailureThreshold: 3, ResetTimeout: 30 * time.Second}).
		WithNow(func() time.Time { return now })

	boom := errors.New("boom")
	for range 2 {
		require.NoError(t, b.Allow())
		b.Record(boom)
	}
	require.NoError(t, b.Allow(), "still closed below threshold")
	b.Record(boom)

	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)
	assert.Equal(t, BreakerOpen, b.State())

	// after the reset timeout one probe is allowed.
	now = now.Add(31 * time.Second)
	require.NoError(t, b.Allow())
	assert.Equal(t, BreakerHalfOpen, b.State())

	// a failed probe reopens immediately.
	b.Record(boom)
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)

	// a successful probe closes and clears the counter.
	now = now.Add(31 * time.Second)
	require.NoError(t, b.Allow())
	b.Record(nil)
	assert.Equal(t, BreakerClosed, b.State())
	require.NoError(t, b.Allow())
}

func TestSourceBreakers(t *testing.T) {
	sb := NewSourceBreakers(BreakerConfig{FailureThreshold: 1})

	sb.For(metric.SourceYahoo).Record(errors.New("down"))

	states := sb.States()
	assert.Equal(t, BreakerOpen, states[metric.SourceYahoo])

	assert.Same(t, sb.For(metric.SourceFMP), sb.For(metric.SourceFMP))
	assert.NoError(t, sb.For(metric.SourceFMP).Allow())
}
