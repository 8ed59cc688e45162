// Package validate checks a single source's normalized metrics for internal
// consistency and plausibility, and filters cross-source outliers. Errors
// block a metric from consensus; warnings only lower confidence.
package validate

import (
	"fmt"

	"github.com/ebita-intel/metrics-cli/internal/metric"
)

// Severity is the overall grade of a validation pass.
type Severity string

const (
	SeverityPass    Severity = "pass"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Result is produced per source per request and never persisted.
type Result struct {
	IsValid  bool
	Errors   []string
	Warnings []string
	Severity Severity
	// Blocked lists the metrics whose consistency checks failed; those
	// points are withheld from reconciliation while the source's other
	// metrics still participate.
	Blocked []metric.Kind
}

func (r *Result) errorf(kind metric.Kind, format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	if kind != "" {
		r.Blocked = append(r.Blocked, kind)
	}
}

func (r *Result) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *Result) finalize() {
	switch {
	case len(r.Errors) > 0:
		r.Severity = SeverityError
	case len(r.Warnings) > 0:
		r.Severity = SeverityWarning
		r.IsValid = true
	default:
		r.Severity = SeverityPass
		r.IsValid = true
	}
}

// IsBlocked reports whether kind failed a consistency check in r.
func (r *Result) IsBlocked(kind metric.Kind) bool {
	for _, k := range r.Blocked {
		if k == kind {
			return true
		}
	}
	return false
}
