// Package normalize rescales raw provider values into each metric's
// canonical unit so cross-source comparison is meaningful. Percentages end
// up on a 0-100 scale and large currency figures in absolute units.
package normalize

import (
	"math"
	"time"

	"github.com/ebita-intel/metrics-cli/internal/metric"
)

// millionBanded lists the kinds large enough that providers commonly report
// them in millions. EPS and book value stay out: those are legitimately
// small per-share currency amounts.
var millionBanded = map[metric.Kind]bool{
	metric.MarketCap: true,
	metric.Revenue:   true,
	metric.EBITDA:    true,
	metric.NetIncome: true,
}

// Value rescales raw into the canonical unit for kind. Percentage metrics
// supplied as fractions (|x| <= 1) are multiplied by 100; anything with a
// larger magnitude is assumed to already be a percentage. Large currency
// metrics below the million band are assumed to be reported in millions and
// scaled up. The sign of raw is never changed.
func Value(kind metric.Kind, raw float64) float64 {
	if kind.IsPercentage() {
		if math.Abs(raw) <= 1 {
			return raw * 100
		}
		return raw
	}
	if millionBanded[kind] && raw != 0 && math.Abs(raw) < 1e6 {
		return raw * 1e6
	}
	return raw
}

// aliases maps the metric names providers actually use onto the canonical
// kinds. Lookup is exact; canonical names pass through via metric.Known.
var aliases = map[string]metric.Kind{
	"marketCap":         metric.MarketCap,
	"marketCapitalization": metric.MarketCap,
	"mktCap":            metric.MarketCap,
	"totalRevenue":      metric.Revenue,
	"ebitdaMargin":      metric.EBITDAMargin,
	"peRatio":           metric.PERatio,
	"pe":                metric.PERatio,
	"trailingPE":        metric.PERatio,
	"revenueGrowth":     metric.RevenueGrowth,
	"netIncome":         metric.NetIncome,
	"profitMargin":      metric.ProfitMargin,
	"netProfitMargin":   metric.ProfitMargin,
	"returnOnEquity":    metric.ROE,
	"returnOnAssets":    metric.ROA,
	"debtToEquity":      metric.DebtToEquity,
	"debtEquityRatio":   metric.DebtToEquity,
	"currentRatio":      metric.CurrentRatio,
	"bookValuePerShare": metric.BookValuePerShare,
	"dividendYield":     metric.DividendYield,
	"grossMargin":       metric.GrossMargin,
	"operatingMargin":   metric.OperatingMargin,
	"priceToBook":       metric.PriceToBook,
	"pb":                metric.PriceToBook,
	"priceToSales":      metric.PriceToSales,
	"ps":                metric.PriceToSales,
	"regularMarketPrice": metric.Price,
	"currentPrice":      metric.Price,
}

// KindOf resolves a provider's metric name to a canonical kind.
func KindOf(name string) (metric.Kind, bool) {
	if metric.Known(metric.Kind(name)) {
		return metric.Kind(name), true
	}
	if k, ok := aliases[name]; ok {
		return k, true
	}
	return "", false
}

// Points converts one source's sparse raw payload into normalized metric
// points. Unknown metric names and unparseable values are skipped rather
// than surfaced as errors; a single bad field never blocks the rest of the
// payload. Absent values stay absent.
func Points(source metric.Source, raw map[string]any, provenance []string, observedAt time.Time) []metric.Point {
	out := make([]metric.Point, 0, len(raw))
	for name, rv := range raw {
		kind, ok := KindOf(name)
		if !ok {
			continue
		}
		v, ok := metric.ParseNumber(rv)
		if !ok {
			continue
		}
		p := metric.NewPoint(kind, Value(kind, v), source, observedAt)
		p.Provenance = provenance
		out = append(out, p)
	}
	return out
}
