// Package reconcile merges normalized, validated points from multiple
// sources into one consensus value per metric. Consensus is a weighted
// median over source authority, so one outlier from a low-weight source
// cannot dominate, and observed values are never nudged toward each other.
package reconcile

import (
	"math"
	"sort"

	"github.com/ebita-intel/metrics-cli/internal/metric"
)

// Reconciler applies a configured source-authority table. Weights are
// static configuration, never derived at runtime.
type Reconciler struct {
	specs map[metric.Source]metric.SourceSpec
}

// New builds a Reconciler over the given provider table; nil falls back to
// the built-in defaults.
func New(specs map[metric.Source]metric.SourceSpec) *Reconciler {
	if specs == nil {
		specs = metric.DefaultSourceSpecs()
	}
	return &Reconciler{specs: specs}
}

func (r *Reconciler) spec(s metric.Source) metric.SourceSpec {
	if sp, ok := r.specs[s]; ok {
		return sp
	}
	return metric.SpecFor(s)
}

// Reconcile produces the consensus record for one metric. Zero points yield
// a null anomalous record with confidence 0; a single point is returned
// verbatim with its own confidence.
func (r *Reconciler) Reconcile(kind metric.Kind, points []metric.Point) metric.ConsensusRecord {
	rec := metric.ConsensusRecord{Metric: kind}

	numeric := make([]metric.Point, 0, len(points))
	for _, p := range points {
		if p.Value != nil {
			numeric = append(numeric, p)
		}
	}

	switch len(numeric) {
	case 0:
		rec.IsAnomaly = true
		return rec
	case 1:
		p := numeric[0]
		v := *p.Value
		rec.Value = &v
		rec.Confidence = p.Confidence
		rec.ContributingSources = []metric.Source{p.Source}
		return rec
	}

	sorted := make([]metric.Point, len(numeric))
	copy(sorted, numeric)
	sort.Slice(sorted, func(i, j int) bool { return *sorted[i].Value < *sorted[j].Value })

	var total float64
	for _, p := range sorted {
		total += float64(r.spec(p.Source).Weight)
	}
	consensus := *sorted[len(sorted)-1].Value
	var cum float64
	for _, p := range sorted {
		cum += float64(r.spec(p.Source).Weight)
		if cum >= total/2 {
			consensus = *p.Value
			break
		}
	}

	threshold := kind.VarianceThreshold()
	highAuthority := false
	for _, p := range numeric {
		sp := r.spec(p.Source)
		if sp.HighAuthority {
			highAuthority = true
		}
		rec.ContributingSources = append(rec.ContributingSources, p.Source)
		if relativeDeviation(*p.Value, consensus) > threshold {
			rec.AnomalySources = append(rec.AnomalySources, p.Source)
		}
	}
	rec.IsAnomaly = len(rec.AnomalySources) > 0

	conf := math.Min(100, float64(len(numeric))*10+bonus(highAuthority))
	if rec.IsAnomaly {
		conf = math.Max(30, conf-20)
	}
	rec.Value = &consensus
	rec.Confidence = conf
	return rec
}

func bonus(highAuthority bool) float64 {
	if highAuthority {
		return 40
	}
	return 0
}

func relativeDeviation(v, consensus float64) float64 {
	if consensus == 0 {
		if v == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return math.Abs(v-consensus) / math.Abs(consensus)
}

// Variation returns the population coefficient of variation across the
// numeric values, as a fraction. Zero-mean sets return 0.
func Variation(points []metric.Point) float64 {
	vals := make([]float64, 0, len(points))
	for _, p := range points {
		if v, ok := p.Val(); ok {
			vals = append(vals, v)
		}
	}
	if len(vals) < 2 {
		return 0
	}
	var mean float64
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))
	if mean == 0 {
		return 0
	}
	var ss float64
	for _, v := range vals {
		ss += (v - mean) * (v - mean)
	}
	return math.Sqrt(ss/float64(len(vals))) / math.Abs(mean)
}
