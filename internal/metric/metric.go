// Package metric defines the closed metric and source enumerations plus the
// record types that flow through the normalization, validation, and
// reconciliation pipeline.
package metric

// Kind identifies a financial metric in its canonical unit.
type Kind string

const (
	MarketCap         Kind = "market_cap"
	Revenue           Kind = "revenue"
	EBITDA            Kind = "ebitda"
	EBITDAMargin      Kind = "ebitda_margin"
	PERatio           Kind = "pe_ratio"
	RevenueGrowth     Kind = "revenue_growth"
	NetIncome         Kind = "net_income"
	ProfitMargin      Kind = "profit_margin"
	ROE               Kind = "roe"
	ROA               Kind = "roa"
	DebtToEquity      Kind = "debt_to_equity"
	CurrentRatio      Kind = "current_ratio"
	EPS               Kind = "eps"
	BookValuePerShare Kind = "book_value_per_share"
	DividendYield     Kind = "dividend_yield"
	Price             Kind = "price"
	GrossMargin       Kind = "gross_margin"
	OperatingMargin   Kind = "operating_margin"
	PriceToBook       Kind = "price_to_book"
	PriceToSales      Kind = "price_to_sales"
	Beta              Kind = "beta"
)

// DataClass groups metrics by how quickly they go stale. It drives cache TTL
// selection and staleness pruning.
type DataClass string

const (
	ClassLive        DataClass = "live"        // intraday price-like data, ~5m
	ClassFundamental DataClass = "fundamental" // reported financials, ~1h
	ClassStructural  DataClass = "structural"  // slow-moving ratios, ~1d+
)

// Criticality weights used when averaging per-metric confidence into the
// overall record confidence. Metrics with weight zero do not contribute.
const (
	WeightCritical  = 15
	WeightImportant = 7
)

// Unit is the canonical unit a metric is expressed in after normalization.
type Unit string

const (
	UnitCurrency Unit = "currency" // absolute units, no thousands/millions scaling
	UnitPercent  Unit = "percent"  // 0-100 scale
	UnitRatio    Unit = "ratio"    // dimensionless
)

// spec holds the static attributes of a metric kind.
type spec struct {
	Unit        Unit
	Percentage  bool
	Class       DataClass
	Threshold   float64 // relative variance threshold for anomaly flagging
	Criticality int
}

var kindSpecs = map[Kind]spec{
	MarketCap:         {UnitCurrency, false, ClassLive, 0.05, WeightCritical},
	Revenue:           {UnitCurrency, false, ClassFundamental, 0.10, WeightCritical},
	EBITDA:            {UnitCurrency, false, ClassFundamental, 0.10, WeightCritical},
	EBITDAMargin:      {UnitPercent, true, ClassFundamental, 0.15, WeightImportant},
	PERatio:           {UnitRatio, false, ClassLive, 0.20, WeightImportant},
	RevenueGrowth:     {UnitPercent, true, ClassFundamental, 0.20, WeightImportant},
	NetIncome:         {UnitCurrency, false, ClassFundamental, 0.10, WeightCritical},
	ProfitMargin:      {UnitPercent, true, ClassFundamental, 0.15, WeightImportant},
	ROE:               {UnitPercent, true, ClassStructural, 0.15, WeightImportant},
	ROA:               {UnitPercent, true, ClassStructural, 0.15, 0},
	DebtToEquity:      {UnitRatio, false, ClassStructural, 0.20, WeightImportant},
	CurrentRatio:      {UnitRatio, false, ClassStructural, 0.20, 0},
	EPS:               {UnitCurrency, false, ClassFundamental, 0.10, WeightImportant},
	BookValuePerShare: {UnitCurrency, false, ClassStructural, 0.20, 0},
	DividendYield:     {UnitPercent, true, ClassStructural, 0.20, 0},
	Price:             {UnitCurrency, false, ClassLive, 0.03, WeightImportant},
	GrossMargin:       {UnitPercent, true, ClassFundamental, 0.15, 0},
	OperatingMargin:   {UnitPercent, true, ClassFundamental, 0.15, 0},
	PriceToBook:       {UnitRatio, false, ClassLive, 0.20, 0},
	PriceToSales:      {UnitRatio, false, ClassLive, 0.20, 0},
	Beta:              {UnitRatio, false, ClassStructural, 0.20, 0},
}

// Kinds returns every known metric kind. The slice is freshly allocated.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kindSpecs))
	for k := range kindSpecs {
		out = append(out, k)
	}
	return out
}

// Known reports whether k is a member of the closed enumeration.
func Known(k Kind) bool {
	_, ok := kindSpecs[k]
	return ok
}

// IsPercentage reports whether k is expressed on a 0-100 percent scale.
func (k Kind) IsPercentage() bool { return kindSpecs[k].Percentage }

// CanonicalUnit returns the unit a normalized value of k is expressed in.
func (k Kind) CanonicalUnit() Unit { return kindSpecs[k].Unit }

// Class returns the staleness class of k.
func (k Kind) Class() DataClass {
	if s, ok := kindSpecs[k]; ok {
		return s.Class
	}
	return ClassFundamental
}

// VarianceThreshold returns the relative deviation beyond which a source's
// observation of k is flagged anomalous against the consensus.
func (k Kind) VarianceThreshold() float64 {
	if s, ok := kindSpecs[k]; ok {
		return s.Threshold
	}
	return 0.20
}

// Criticality returns the weight of k in the overall confidence average
// (zero for metrics that do not contribute).
func (k Kind) Criticality() int { return kindSpecs[k].Criticality }
