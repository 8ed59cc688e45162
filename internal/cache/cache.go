// Package cache provides the short-lived TTL store used for final consensus
// records and per-source auxiliary payloads. Entries past their expiry are
// treated as absent; expiry is lazy, no background sweep runs. Set always
// overwrites, so concurrent writers to one key race and the last write
// wins. That weak consistency is accepted: entries are replaced wholesale,
// never updated in place.
package cache

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/ebita-intel/metrics-cli/internal/metric"
)

// Cache is the backend contract. Implementations must be safe for
// concurrent use.
type Cache interface {
	// Get returns the payload for key, or ok=false on a miss or an
	// expired entry.
	Get(ctx context.Context, key string) (payload []byte, ok bool, err error)
	// Set writes key unconditionally with the given lifetime.
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	// Invalidate removes every key containing the substring and reports
	// how many entries were dropped.
	Invalidate(ctx context.Context, substring string) (int, error)
	Close() error
}

// TTLs is the per-data-class lifetime table.
type TTLs struct {
	Live        time.Duration
	Fundamental time.Duration
	Structural  time.Duration
}

// DefaultTTLs returns the standard lifetimes: live quotes stay minutes,
// fundamentals an hour, structural ratios a day.
func DefaultTTLs() TTLs {
	return TTLs{
		Live:        5 * time.Minute,
		Fundamental: time.Hour,
		Structural:  24 * time.Hour,
	}
}

// For returns the lifetime for one data class.
func (t TTLs) For(class metric.DataClass) time.Duration {
	switch class {
	case metric.ClassLive:
		return t.Live
	case metric.ClassStructural:
		return t.Structural
	default:
		return t.Fundamental
	}
}

// Slowest returns the longest lifetime among the metric kinds present. A
// consensus record is cached with the TTL of its slowest-changing member.
func (t TTLs) Slowest(kinds []metric.Kind) time.Duration {
	ttl := t.Live
	for _, k := range kinds {
		if d := t.For(k.Class()); d > ttl {
			ttl = d
		}
	}
	return ttl
}

// FinancialsKey derives the deterministic cache key for a consensus record.
// The industry participates because the plausibility findings baked into a
// record depend on the profile it was checked against.
func FinancialsKey(entityID, region, industry string, kinds []metric.Kind) string {
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, string(k))
	}
	sort.Strings(names)
	if industry == "" {
		industry = "default"
	}
	var b strings.Builder
	b.WriteString("financials:")
	b.WriteString(strings.ToUpper(entityID))
	if region != "" {
		b.WriteString(":")
		b.WriteString(strings.ToLower(region))
	}
	b.WriteString(":")
	b.WriteString(strings.ToLower(industry))
	if len(names) > 0 {
		b.WriteString(":")
		b.WriteString(strings.Join(names, ","))
	}
	return b.String()
}

// SourceKey derives the auxiliary cache key for one provider's raw points.
func SourceKey(source metric.Source, entityID string) string {
	return "source:" + string(source) + ":" + strings.ToUpper(entityID)
}

// GetJSON reads key and unmarshals it into out. ok=false on miss.
func GetJSON(ctx context.Context, c Cache, key string, out any) (bool, error) {
	payload, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return false, eris.Wrapf(err, "decoding cache entry %s", key)
	}
	return true, nil
}

// SetJSON marshals v and writes it under key.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "encoding cache entry %s", key)
	}
	return c.Set(ctx, key, payload, ttl)
}
