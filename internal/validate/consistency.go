package validate

import (
	"math"

	"github.com/ebita-intel/metrics-cli/internal/metric"
)

// Consistency cross-checks one source's points against each other.
// Impossible combinations (EBITDA above revenue, negative debt-to-equity)
// are errors and block the offending metric; merely unusual ones are
// warnings.
func Consistency(points []metric.Point) Result {
	var res Result

	vals := make(map[metric.Kind]float64, len(points))
	for _, p := range points {
		if v, ok := p.Val(); ok {
			vals[p.Metric] = v
		}
	}
	has := func(k metric.Kind) (float64, bool) {
		v, ok := vals[k]
		return v, ok
	}

	revenue, hasRevenue := has(metric.Revenue)
	ebitda, hasEBITDA := has(metric.EBITDA)
	netIncome, hasNet := has(metric.NetIncome)

	if hasRevenue && hasEBITDA && ebitda > revenue {
		res.errorf(metric.EBITDA, "ebitda %.0f exceeds revenue %.0f", ebitda, revenue)
	}
	if hasRevenue && hasNet && netIncome > revenue {
		res.errorf(metric.NetIncome, "net income %.0f exceeds revenue %.0f", netIncome, revenue)
	}
	if hasEBITDA && hasNet && netIncome > ebitda {
		res.warnf("net income %.0f exceeds ebitda %.0f", netIncome, ebitda)
	}

	if stated, ok := has(metric.EBITDAMargin); ok && hasRevenue && hasEBITDA && revenue > 0 {
		derived := ebitda / revenue * 100
		diff := math.Abs(stated - derived)
		switch {
		case diff > 10:
			res.errorf(metric.EBITDAMargin, "stated ebitda margin %.1f%% differs from derived %.1f%% by %.1fpp", stated, derived, diff)
		case diff > 5:
			res.warnf("stated ebitda margin %.1f%% differs from derived %.1f%% by %.1fpp", stated, derived, diff)
		}
	}

	if de, ok := has(metric.DebtToEquity); ok && de < 0 {
		res.errorf(metric.DebtToEquity, "negative debt-to-equity %.2f", de)
	}

	res.finalize()
	return res
}
