package validate

// Quality scores a merged record 0-100 from field completeness and the
// accumulated validation findings. It is a record-level grade, distinct
// from per-metric confidence.
//
// The penalties are fixed: 30 per consistency error, 10 per consistency
// warning, 20 per industry error, 5 per industry warning.
func Quality(completeness float64, consistency, industry Result) float64 {
	if completeness < 0 {
		completeness = 0
	}
	if completeness > 1 {
		completeness = 1
	}
	score := completeness * 100
	score -= float64(len(consistency.Errors)) * 30
	score -= float64(len(consistency.Warnings)) * 10
	score -= float64(len(industry.Errors)) * 20
	score -= float64(len(industry.Warnings)) * 5
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
