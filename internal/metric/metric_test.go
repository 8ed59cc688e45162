package metric

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindSpecs(t *testing.T) {
	for _, k := range Kinds() {
		assert.True(t, Known(k), "kind %s should be known", k)
		assert.Positive(t, k.VarianceThreshold(), "kind %s needs a variance threshold", k)
	}

	assert.Equal(t, 0.03, Price.VarianceThreshold())
	assert.Equal(t, 0.05, MarketCap.VarianceThreshold())
	assert.Equal(t, 0.10, Revenue.VarianceThreshold())
	assert.Equal(t, 0.15, EBITDAMargin.VarianceThreshold())

	assert.True(t, EBITDAMargin.IsPercentage())
	assert.False(t, Revenue.IsPercentage())
	assert.Equal(t, UnitCurrency, MarketCap.CanonicalUnit())
	assert.Equal(t, ClassLive, Price.Class())
	assert.Equal(t, ClassFundamental, Revenue.Class())
}

func TestUnknownKindFallbacks(t *testing.T) {
	k := Kind("free_cash_flow_yield")
	assert.False(t, Known(k))
	assert.Equal(t, 0.20, k.VarianceThreshold())
	assert.Equal(t, 0, k.Criticality())
}

func TestSpecFor(t *testing.T) {
	fmp := SpecFor(SourceFMP)
	assert.Equal(t, 120, fmp.Weight)
	assert.True(t, fmp.HighAuthority)

	unknown := SpecFor(Source("bloomberg"))
	assert.Equal(t, 40, unknown.Weight)
	assert.False(t, unknown.HighAuthority)
}

func TestNewPoint(t *testing.T) {
	now := time.Now()
	p := NewPoint(Revenue, 1.2e9, SourceYahoo, now)
	require.NotNil(t, p.Value)
	assert.Equal(t, 1.2e9, *p.Value)
	assert.Equal(t, float64(SpecFor(SourceYahoo).Reliability), p.Confidence)

	v, ok := p.Val()
	assert.True(t, ok)
	assert.Equal(t, 1.2e9, v)
}

func TestByKindSkipsNullValues(t *testing.T) {
	now := time.Now()
	pts := []Point{
		NewPoint(Revenue, 100, SourceFMP, now),
		NewPoint(Revenue, 102, SourceYahoo, now),
		{Metric: Revenue, Source: SourceScrape, ObservedAt: now},
		NewPoint(Price, 12.5, SourceFMP, now),
	}
	grouped := ByKind(pts)
	assert.Len(t, grouped[Revenue], 2)
	assert.Len(t, grouped[Price], 1)
}

func TestParseNumber(t *testing.T) {
	cases := []struct {
		name string
		raw  any
		want float64
		ok   bool
	}{
		{"float", 42.5, 42.5, true},
		{"int", 7, 7, true},
		{"plain string", "123.4", 123.4, true},
		{"thousands separators", "1,234,567", 1234567, true},
		{"percent sign", "12.5%", 12.5, true},
		{"dollar prefix", "$1,200.50", 1200.50, true},
		{"rupee prefix", "₹500", 500, true},
		{"billions suffix", "1.2B", 1.2e9, true},
		{"millions suffix", "45M", 45e6, true},
		{"crore suffix", "450Cr", 450e7, true},
		{"lakh suffix", "2.5lakh", 2.5e5, true},
		{"accounting negative", "(1,500)", -1500, true},
		{"explicit negative", "-42", -42, true},
		{"na sentinel", "N/A", 0, false},
		{"dash sentinel", "-", 0, false},
		{"empty", "", 0, false},
		{"garbage", "soon", 0, false},
		{"nil", nil, 0, false},
		{"bool", true, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseNumber(tc.raw)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.InDelta(t, tc.want, got, 1e-9)
			}
		})
	}
}

func TestOverallConfidenceOf(t *testing.T) {
	v := 10.0
	records := map[Kind]ConsensusRecord{
		Revenue:   {Metric: Revenue, Value: &v, Confidence: 90},
		MarketCap: {Metric: MarketCap, Value: &v, Confidence: 80},
	}
	got := OverallConfidenceOf(records)
	assert.Greater(t, got, 0.0)
	assert.Less(t, got, 90.0, "missing critical metrics must drag the overall score down")

	assert.Equal(t, 0.0, OverallConfidenceOf(nil))

	// null consensus values contribute zero even when the record exists.
	null := map[Kind]ConsensusRecord{Revenue: {Metric: Revenue, Confidence: 50}}
	assert.Equal(t, 0.0, OverallConfidenceOf(null))
}
