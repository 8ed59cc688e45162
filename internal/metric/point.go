package metric

import "time"

// Point is a single normalized observation of one metric from one source.
// A Point is immutable once created: reconciliation never nudges an observed
// value to match another source.
type Point struct {
	Metric     Kind       `json:"metric"`
	Value      *float64   `json:"value"`
	Source     Source     `json:"source"`
	ObservedAt time.Time  `json:"observed_at"`
	Confidence float64    `json:"confidence"` // 0-100
	Provenance []string   `json:"provenance,omitempty"`
}

// NewPoint builds an observation with the source's base reliability as its
// confidence.
func NewPoint(kind Kind, value float64, source Source, observedAt time.Time) Point {
	v := value
	return Point{
		Metric:     kind,
		Value:      &v,
		Source:     source,
		ObservedAt: observedAt,
		Confidence: float64(SpecFor(source).Reliability),
	}
}

// Val returns the point's value, or 0 and false when absent.
func (p Point) Val() (float64, bool) {
	if p.Value == nil {
		return 0, false
	}
	return *p.Value, true
}

// ByKind groups points by metric kind, skipping value-less points.
func ByKind(points []Point) map[Kind][]Point {
	out := make(map[Kind][]Point)
	for _, p := range points {
		if p.Value == nil {
			continue
		}
		out[p.Metric] = append(out[p.Metric], p)
	}
	return out
}
