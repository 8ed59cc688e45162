package source

import (
	"context"
	"sync"

	"github.com/ebita-intel/metrics-cli/internal/metric"
)

// Static is an adapter serving canned payloads, used in tests and dry runs.
type Static struct {
	source metric.Source

	mu     sync.Mutex
	points map[string]RawPoints
	err    error
	calls  int
}

// NewStatic builds an adapter for source with per-entity payloads.
func NewStatic(source metric.Source, points map[string]RawPoints) *Static {
	if points == nil {
		points = make(map[string]RawPoints)
	}
	return &Static{source: source, points: points}
}

// Fail makes every subsequent Fetch return err.
func (s *Static) Fail(err error) *Static {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
	return s
}

func (s *Static) Source() metric.Source { return s.source }

func (s *Static) Fetch(_ context.Context, entityID, _ string) (RawPoints, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return RawPoints{}, s.err
	}
	if p, ok := s.points[entityID]; ok {
		return p, nil
	}
	return RawPoints{}, NewFetchError(s.source, ReasonUnavailable, nil)
}

// Calls reports how many fetches were issued.
func (s *Static) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
