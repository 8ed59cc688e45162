package source

import (
	"sort"
	"strings"
	"sync"

	"github.com/ebita-intel/metrics-cli/internal/metric"
)

// Registry holds the configured adapters, optionally tagged with the
// regions they cover. Untagged adapters serve every region.
type Registry struct {
	mu       sync.RWMutex
	adapters map[metric.Source]Adapter
	regions  map[metric.Source][]string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[metric.Source]Adapter),
		regions:  make(map[metric.Source][]string),
	}
}

// Register adds an adapter, replacing any previous one for the same source.
// With no regions the adapter is global.
func (r *Registry) Register(a Adapter, regions ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	src := a.Source()
	r.adapters[src] = a
	r.regions[src] = nil
	for _, region := range regions {
		r.regions[src] = append(r.regions[src], strings.ToLower(region))
	}
}

// Get returns the adapter for source, if registered.
func (r *Registry) Get(source metric.Source) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[source]
	return a, ok
}

// ForRegion returns the adapters serving the given region hint: every
// global adapter plus those tagged with the region. An empty hint selects
// only global adapters. Results are ordered by source name for
// deterministic fan-out.
func (r *Registry) ForRegion(region string) []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	region = strings.ToLower(strings.TrimSpace(region))

	out := make([]Adapter, 0, len(r.adapters))
	for src, a := range r.adapters {
		tags := r.regions[src]
		if len(tags) == 0 {
			out = append(out, a)
			continue
		}
		for _, tag := range tags {
			if tag == region {
				out = append(out, a)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source() < out[j].Source() })
	return out
}

// Sources lists every registered source, sorted.
func (r *Registry) Sources() []metric.Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]metric.Source, 0, len(r.adapters))
	for src := range r.adapters {
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
