package reconcile

import "github.com/ebita-intel/metrics-cli/internal/metric"

// derivedFloor is the minimum confidence assigned to a computed metric.
const derivedFloor = 60

// Derive fills in metrics computable from already-reconciled values:
// EBITDA margin and profit margin from revenue. A derived record carries
// the synthetic "computed" source and never overrides a directly
// reconciled value of higher confidence. The input map is mutated.
func Derive(records map[metric.Kind]metric.ConsensusRecord) {
	revenue, ok := records[metric.Revenue]
	if !ok || revenue.Value == nil || *revenue.Value <= 0 {
		return
	}

	deriveMargin(records, metric.EBITDAMargin, metric.EBITDA, revenue)
	deriveMargin(records, metric.ProfitMargin, metric.NetIncome, revenue)
}

func deriveMargin(records map[metric.Kind]metric.ConsensusRecord, target, numerator metric.Kind, revenue metric.ConsensusRecord) {
	num, ok := records[numerator]
	if !ok || num.Value == nil {
		return
	}

	conf := num.Confidence
	if revenue.Confidence < conf {
		conf = revenue.Confidence
	}
	if conf < derivedFloor {
		conf = derivedFloor
	}

	if existing, ok := records[target]; ok && existing.Value != nil && existing.Confidence >= conf {
		return
	}

	v := *num.Value / *revenue.Value * 100
	records[target] = metric.ConsensusRecord{
		Metric:              target,
		Value:               &v,
		Confidence:          conf,
		ContributingSources: []metric.Source{metric.SourceComputed},
	}
}
