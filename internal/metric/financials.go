package metric

import "time"

// ConsensusRecord is the reconciled view of one metric across sources.
type ConsensusRecord struct {
	Metric               Kind     `json:"metric"`
	Value                *float64 `json:"value"`
	Confidence           float64  `json:"confidence"` // 0-100
	ContributingSources  []Source `json:"contributing_sources,omitempty"`
	IsAnomaly            bool     `json:"is_anomaly"`
	AnomalySources       []Source `json:"anomaly_sources,omitempty"`
}

// EntityFinancials is the full snapshot returned to callers: one consensus
// record per metric plus request-level metadata. It is never mutated after
// being returned; callers may cache it freely.
type EntityFinancials struct {
	EntityID          string                    `json:"entity_id"`
	Region            string                    `json:"region,omitempty"`
	RequestID         string                    `json:"request_id"`
	Metrics           map[Kind]ConsensusRecord  `json:"metrics"`
	OverallConfidence float64                   `json:"overall_confidence"`
	QualityScore      float64                   `json:"quality_score"`
	MissingMetrics    []Kind                    `json:"missing_metrics,omitempty"`
	SourcesUsed       []Source                  `json:"sources_used,omitempty"`
	Warnings          []string                  `json:"warnings"`
	AsOf              time.Time                 `json:"as_of"`
	FromCache         bool                      `json:"from_cache,omitempty"`
}

// Record returns the consensus record for k, if present.
func (f *EntityFinancials) Record(k Kind) (ConsensusRecord, bool) {
	r, ok := f.Metrics[k]
	return r, ok
}

// Value returns the consensus value for k, or 0 and false when the metric is
// missing or null.
func (f *EntityFinancials) Value(k Kind) (float64, bool) {
	r, ok := f.Metrics[k]
	if !ok || r.Value == nil {
		return 0, false
	}
	return *r.Value, true
}

// OverallConfidenceOf computes the criticality-weighted average of per-metric
// confidences. Only kinds with a non-zero criticality weight contribute;
// missing metrics count as zero confidence at their configured weight so an
// absent critical metric drags the overall score down.
func OverallConfidenceOf(records map[Kind]ConsensusRecord) float64 {
	var sum, total float64
	for kind, sp := range kindSpecs {
		if sp.Criticality == 0 {
			continue
		}
		w := float64(sp.Criticality)
		total += w
		if r, ok := records[kind]; ok && r.Value != nil {
			sum += w * r.Confidence
		}
	}
	if total == 0 {
		return 0
	}
	return sum / total
}
