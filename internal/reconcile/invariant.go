package reconcile

import (
	"fmt"

	"github.com/ebita-intel/metrics-cli/internal/metric"
)

// CheckInvariants verifies that the assembled consensus still satisfies the
// cross-metric constraints (EBITDA and net income cannot exceed revenue).
// A violation is reported, never corrected: the lower-confidence record is
// flagged anomalous in place and a warning returned for the caller. The
// input map is mutated only to set anomaly flags.
func CheckInvariants(records map[metric.Kind]metric.ConsensusRecord) []string {
	var warnings []string

	revenue, ok := records[metric.Revenue]
	if !ok || revenue.Value == nil {
		return nil
	}

	for _, kind := range []metric.Kind{metric.EBITDA, metric.NetIncome} {
		rec, ok := records[kind]
		if !ok || rec.Value == nil {
			continue
		}
		if *rec.Value <= *revenue.Value {
			continue
		}
		warnings = append(warnings, fmt.Sprintf(
			"consensus violation: %s %.0f exceeds revenue %.0f", kind, *rec.Value, *revenue.Value))
		if rec.Confidence <= revenue.Confidence {
			rec.IsAnomaly = true
			records[kind] = rec
		} else {
			revenue.IsAnomaly = true
			records[metric.Revenue] = revenue
		}
	}
	return warnings
}
