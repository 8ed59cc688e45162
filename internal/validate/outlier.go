package validate

import (
	"math"
	"sort"

	"github.com/ebita-intel/metrics-cli/internal/metric"
)

// OutlierStrategy selects the cross-source outlier filter.
type OutlierStrategy string

const (
	OutlierZScore OutlierStrategy = "zscore"
	OutlierIQR    OutlierStrategy = "iqr"
)

// minOutlierObservations is the smallest sample either filter will act on.
// Below that there is no reliable outlier signal.
const minOutlierObservations = 4

// FilterOutliers drops points for one metric that the chosen strategy marks
// as outliers across sources. With fewer than four observations the input
// is returned unchanged.
func FilterOutliers(strategy OutlierStrategy, points []metric.Point) []metric.Point {
	if len(points) < minOutlierObservations {
		return points
	}
	switch strategy {
	case OutlierIQR:
		return filterIQR(points)
	default:
		return filterZScore(points)
	}
}

func filterZScore(points []metric.Point) []metric.Point {
	vals := values(points)
	mean, std := meanStd(vals)
	if std == 0 {
		return points
	}
	kept := points[:0:0]
	for _, p := range points {
		v, _ := p.Val()
		if math.Abs(v-mean)/std <= 3 {
			kept = append(kept, p)
		}
	}
	return kept
}

func filterIQR(points []metric.Point) []metric.Point {
	vals := values(points)
	sort.Float64s(vals)
	q1 := quantile(vals, 0.25)
	q3 := quantile(vals, 0.75)
	iqr := q3 - q1
	lo, hi := q1-1.5*iqr, q3+1.5*iqr
	kept := points[:0:0]
	for _, p := range points {
		v, _ := p.Val()
		if v >= lo && v <= hi {
			kept = append(kept, p)
		}
	}
	return kept
}

func values(points []metric.Point) []float64 {
	out := make([]float64, 0, len(points))
	for _, p := range points {
		if v, ok := p.Val(); ok {
			out = append(out, v)
		}
	}
	return out
}

func meanStd(vals []float64) (mean, std float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))
	var ss float64
	for _, v := range vals {
		ss += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(ss / float64(len(vals)))
}

// quantile interpolates linearly over a sorted sample.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
