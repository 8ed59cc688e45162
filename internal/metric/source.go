package metric

// Source identifies an upstream data provider.
type Source string

const (
	SourceFMP          Source = "fmp"
	SourceAlphaVantage Source = "alpha_vantage"
	SourceYahoo        Source = "yahoo"
	SourceNSE          Source = "nse"
	SourceBSE          Source = "bse"
	SourceScrape       Source = "scrape"
	SourceComputed     Source = "computed" // synthetic provenance for derived metrics
)

// SourceSpec holds the static per-provider configuration: authority weight,
// base reliability, and quota limits. These are hand-tuned defaults carried
// over from operating the upstream providers, not empirically derived; they
// are overridable from configuration and should be recalibrated against real
// outcomes.
type SourceSpec struct {
	Weight        int  // authority weight used by the weighted median
	Reliability   int  // base confidence (0-100) assigned to this source's points
	HighAuthority bool // licensed/official feeds, distinct from scraped sources
	PerMinute     int  // rate limit; 0 means unthrottled
	PerDay        int  // advisory daily quota; 0 means unlimited
}

var defaultSourceSpecs = map[Source]SourceSpec{
	SourceFMP:          {Weight: 120, Reliability: 80, HighAuthority: true, PerMinute: 100, PerDay: 0},
	SourceAlphaVantage: {Weight: 100, Reliability: 75, HighAuthority: true, PerMinute: 5, PerDay: 25},
	SourceYahoo:        {Weight: 80, Reliability: 78, HighAuthority: false, PerMinute: 60, PerDay: 0},
	SourceNSE:          {Weight: 110, Reliability: 88, HighAuthority: true, PerMinute: 30, PerDay: 0},
	SourceBSE:          {Weight: 95, Reliability: 85, HighAuthority: true, PerMinute: 30, PerDay: 0},
	SourceScrape:       {Weight: 40, Reliability: 60, HighAuthority: false, PerMinute: 20, PerDay: 500},
}

// DefaultSourceSpecs returns a copy of the built-in provider table.
func DefaultSourceSpecs() map[Source]SourceSpec {
	out := make(map[Source]SourceSpec, len(defaultSourceSpecs))
	for s, sp := range defaultSourceSpecs {
		out[s] = sp
	}
	return out
}

// SpecFor returns the spec for s, falling back to a low-trust default for
// sources absent from the table.
func SpecFor(s Source) SourceSpec {
	if sp, ok := defaultSourceSpecs[s]; ok {
		return sp
	}
	return SourceSpec{Weight: 40, Reliability: 50}
}
