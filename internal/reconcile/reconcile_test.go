package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebita-intel/metrics-cli/internal/metric"
)

func point(kind metric.Kind, v float64, src metric.Source) metric.Point {
	return metric.NewPoint(kind, v, src, time.Now())
}

func TestReconcileNoPoints(t *testing.T) {
	rec := New(nil).Reconcile(metric.Revenue, nil)
	assert.Nil(t, rec.Value)
	assert.Equal(t, 0.0, rec.Confidence)
	assert.True(t, rec.IsAnomaly)
}

func TestReconcileSinglePoint(t *testing.T) {
	p := point(metric.Revenue, 100, metric.SourceScrape)
	p.Confidence = 55

	rec := New(nil).Reconcile(metric.Revenue, []metric.Point{p})
	require.NotNil(t, rec.Value)
	assert.Equal(t, 100.0, *rec.Value)
	assert.Equal(t, 55.0, rec.Confidence, "single observations keep their own confidence")
	assert.False(t, rec.IsAnomaly)
	assert.Equal(t, []metric.Source{metric.SourceScrape}, rec.ContributingSources)
}

func TestReconcileAgreeingSources(t *testing.T) {
	pts := []metric.Point{
		point(metric.MarketCap, 110e9, metric.SourceFMP),    // weight 120
		point(metric.MarketCap, 108e9, metric.SourceYahoo),  // weight 80
		point(metric.MarketCap, 112e9, metric.SourceScrape), // weight 40
	}
	rec := New(nil).Reconcile(metric.MarketCap, pts)
	require.NotNil(t, rec.Value)
	assert.False(t, rec.IsAnomaly)
	assert.GreaterOrEqual(t, *rec.Value, 108e9)
	assert.LessOrEqual(t, *rec.Value, 110e9)
	assert.Len(t, rec.ContributingSources, 3)
	// 3 observations x 10 + 40 high-authority bonus.
	assert.Equal(t, 70.0, rec.Confidence)
}

func TestReconcileWeightedMedianFavorsAuthority(t *testing.T) {
	// sorted by value the walk reaches half the total weight (120) at the
	// FMP point, so the low-weight outlier cannot pull the consensus.
	pts := []metric.Point{
		point(metric.Revenue, 100, metric.SourceFMP),
		point(metric.Revenue, 102, metric.SourceYahoo),
		point(metric.Revenue, 500, metric.SourceScrape),
	}
	rec := New(nil).Reconcile(metric.Revenue, pts)
	require.NotNil(t, rec.Value)
	assert.Equal(t, 100.0, *rec.Value)
	require.Len(t, rec.AnomalySources, 1)
	assert.Equal(t, metric.SourceScrape, rec.AnomalySources[0])
	assert.True(t, rec.IsAnomaly)
	// 3 x 10 + 40, minus the 20-point anomaly penalty.
	assert.Equal(t, 50.0, rec.Confidence)
}

func TestReconcileConsensusWithinRange(t *testing.T) {
	pts := []metric.Point{
		point(metric.PERatio, 18, metric.SourceNSE),
		point(metric.PERatio, 19, metric.SourceBSE),
		point(metric.PERatio, 21, metric.SourceYahoo),
		point(metric.PERatio, 22, metric.SourceFMP),
	}
	rec := New(nil).Reconcile(metric.PERatio, pts)
	require.NotNil(t, rec.Value)
	assert.GreaterOrEqual(t, *rec.Value, 18.0)
	assert.LessOrEqual(t, *rec.Value, 22.0)
}

func TestReconcileIdenticalValues(t *testing.T) {
	pts := []metric.Point{
		point(metric.Price, 42, metric.SourceNSE),
		point(metric.Price, 42, metric.SourceBSE),
	}
	rec := New(nil).Reconcile(metric.Price, pts)
	assert.False(t, rec.IsAnomaly)
	assert.GreaterOrEqual(t, rec.Confidence, 60.0)
}

func TestReconcileNoHighAuthorityBonus(t *testing.T) {
	pts := []metric.Point{
		point(metric.Beta, 1.1, metric.SourceYahoo),
		point(metric.Beta, 1.2, metric.SourceScrape),
	}
	rec := New(nil).Reconcile(metric.Beta, pts)
	assert.Equal(t, 20.0, rec.Confidence)
}

func TestReconcileConfidenceCap(t *testing.T) {
	var pts []metric.Point
	for _, s := range []metric.Source{metric.SourceFMP, metric.SourceAlphaVantage, metric.SourceYahoo, metric.SourceNSE, metric.SourceBSE, metric.SourceScrape, "extra1", "extra2"} {
		pts = append(pts, point(metric.Revenue, 100, s))
	}
	rec := New(nil).Reconcile(metric.Revenue, pts)
	assert.Equal(t, 100.0, rec.Confidence)
}

func TestVariation(t *testing.T) {
	pts := []metric.Point{
		point(metric.Revenue, 100, metric.SourceFMP),
		point(metric.Revenue, 100, metric.SourceYahoo),
	}
	assert.Equal(t, 0.0, Variation(pts))

	pts = append(pts, point(metric.Revenue, 400, metric.SourceScrape))
	assert.Greater(t, Variation(pts), 0.5)
}

func TestDeriveMargins(t *testing.T) {
	rev, ebitda := 1000.0, 300.0
	records := map[metric.Kind]metric.ConsensusRecord{
		metric.Revenue: {Metric: metric.Revenue, Value: &rev, Confidence: 80},
		metric.EBITDA:  {Metric: metric.EBITDA, Value: &ebitda, Confidence: 70},
	}
	Derive(records)

	margin, ok := records[metric.EBITDAMargin]
	require.True(t, ok)
	require.NotNil(t, margin.Value)
	assert.Equal(t, 30.0, *margin.Value)
	assert.Equal(t, 70.0, margin.Confidence)
	assert.Equal(t, []metric.Source{metric.SourceComputed}, margin.ContributingSources)
}

func TestDeriveConfidenceFloor(t *testing.T) {
	rev, ni := 1000.0, 120.0
	records := map[metric.Kind]metric.ConsensusRecord{
		metric.Revenue:   {Metric: metric.Revenue, Value: &rev, Confidence: 45},
		metric.NetIncome: {Metric: metric.NetIncome, Value: &ni, Confidence: 40},
	}
	Derive(records)
	assert.Equal(t, 60.0, records[metric.ProfitMargin].Confidence)
}

func TestDeriveNeverOverridesHigherConfidence(t *testing.T) {
	rev, ebitda, stated := 1000.0, 300.0, 28.0
	records := map[metric.Kind]metric.ConsensusRecord{
		metric.Revenue:      {Metric: metric.Revenue, Value: &rev, Confidence: 80},
		metric.EBITDA:       {Metric: metric.EBITDA, Value: &ebitda, Confidence: 70},
		metric.EBITDAMargin: {Metric: metric.EBITDAMargin, Value: &stated, Confidence: 90},
	}
	Derive(records)
	assert.Equal(t, 28.0, *records[metric.EBITDAMargin].Value)
	assert.Equal(t, 90.0, records[metric.EBITDAMargin].Confidence)
}

func TestCheckInvariants(t *testing.T) {
	rev, ebitda := 1000.0, 1400.0
	records := map[metric.Kind]metric.ConsensusRecord{
		metric.Revenue: {Metric: metric.Revenue, Value: &rev, Confidence: 80},
		metric.EBITDA:  {Metric: metric.EBITDA, Value: &ebitda, Confidence: 40},
	}
	warnings := CheckInvariants(records)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "exceeds revenue")
	assert.True(t, records[metric.EBITDA].IsAnomaly, "lower-confidence side carries the flag")
	assert.False(t, records[metric.Revenue].IsAnomaly)
	assert.Equal(t, 1400.0, *records[metric.EBITDA].Value, "violations are reported, never corrected")
}
