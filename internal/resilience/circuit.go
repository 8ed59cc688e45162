package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/ebita-intel/metrics-cli/internal/metric"
)

// ErrCircuitOpen is returned when a provider call is rejected because its
// breaker is open.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// BreakerState is the current position of one breaker.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half-open"
)

// BreakerConfig controls when a provider's breaker trips and recovers.
type BreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the
	// breaker. Default: 5.
	FailureThreshold int

	// ResetTimeout is how long the breaker stays open before allowing a
	// probe. Default: 30s.
	ResetTimeout time.Duration
}

// DefaultBreakerConfig returns the standard per-provider policy.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, ResetTimeout: 30 * time.Second}
}

// Breaker is a circuit breaker for one provider. Safe for concurrent use.
type Breaker struct {
	cfg BreakerConfig

	mu          sync.Mutex
	state       BreakerState
	failures    int
	lastFailure time.Time
	now         func() time.Time
}

// NewBreaker builds a closed breaker under cfg.
func NewBreaker(cfg BreakerConfig) *Breaker {
	def := DefaultBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	return &Breaker{cfg: cfg, state: BreakerClosed, now: time.Now}
}

// WithNow swaps the clock. Testing hook.
func (b *Breaker) WithNow(now func() time.Time) *Breaker {
	b.now = now
	return b
}

// Allow reports whether a call may proceed, transitioning open breakers to
// half-open once the reset timeout has elapsed.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen {
		if b.now().Sub(b.lastFailure) < b.cfg.ResetTimeout {
			return ErrCircuitOpen
		}
		b.state = BreakerHalfOpen
	}
	return nil
}

// Record feeds one call outcome back into the breaker.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.failures = 0
		b.state = BreakerClosed
		return
	}

	b.failures++
	b.lastFailure = b.now()
	if b.state == BreakerHalfOpen || b.failures >= b.cfg.FailureThreshold {
		b.state = BreakerOpen
	}
}

// State returns the breaker's current position.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.now().Sub(b.lastFailure) >= b.cfg.ResetTimeout {
		return BreakerHalfOpen
	}
	return b.state
}

// SourceBreakers holds one breaker per provider, created on demand.
type SourceBreakers struct {
	mu       sync.Mutex
	cfg      BreakerConfig
	breakers map[metric.Source]*Breaker
}

// NewSourceBreakers builds an empty per-provider breaker set.
func NewSourceBreakers(cfg BreakerConfig) *SourceBreakers {
	return &SourceBreakers{cfg: cfg, breakers: make(map[metric.Source]*Breaker)}
}

// For returns the breaker for source, creating it if needed.
func (sb *SourceBreakers) For(source metric.Source) *Breaker {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	b, ok := sb.breakers[source]
	if !ok {
		b = NewBreaker(sb.cfg)
		sb.breakers[source] = b
	}
	return b
}

// States snapshots every breaker's position for observability endpoints.
func (sb *SourceBreakers) States() map[metric.Source]BreakerState {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	out := make(map[metric.Source]BreakerState, len(sb.breakers))
	for source, b := range sb.breakers {
		out[source] = b.State()
	}
	return out
}
