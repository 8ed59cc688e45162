package validate

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/ebita-intel/metrics-cli/internal/metric"
)

// Range is an expected [Min, Max] band for a metric within an industry.
type Range struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Profile holds the plausibility bands for one industry. Values outside
// 0.3x the minimum or 3x the maximum draw a warning; only extreme readings
// get a distinct flag.
type Profile struct {
	Name            string  `yaml:"name"`
	PERatio         Range   `yaml:"pe_ratio"`
	EBITDAMargin    Range   `yaml:"ebitda_margin"`
	RevenueGrowth   Range   `yaml:"revenue_growth"`
	PriceToSales    Range   `yaml:"price_to_sales"`
	MaxDebtToEquity float64 `yaml:"max_debt_to_equity"`
}

// extremePERatio marks valuations wild enough to surface distinctly even
// within the tolerance multipliers.
const extremePERatio = 500

var defaultProfiles = map[string]Profile{
	"technology": {
		Name:            "technology",
		PERatio:         Range{15, 45},
		EBITDAMargin:    Range{15, 40},
		RevenueGrowth:   Range{5, 40},
		PriceToSales:    Range{3, 15},
		MaxDebtToEquity: 1.5,
	},
	"banking": {
		Name:            "banking",
		PERatio:         Range{8, 20},
		EBITDAMargin:    Range{30, 60},
		RevenueGrowth:   Range{3, 20},
		PriceToSales:    Range{1, 6},
		MaxDebtToEquity: 10,
	},
	"pharma": {
		Name:            "pharma",
		PERatio:         Range{15, 35},
		EBITDAMargin:    Range{18, 35},
		RevenueGrowth:   Range{5, 25},
		PriceToSales:    Range{2, 8},
		MaxDebtToEquity: 1.0,
	},
	"energy": {
		Name:            "energy",
		PERatio:         Range{6, 18},
		EBITDAMargin:    Range{10, 35},
		RevenueGrowth:   Range{-10, 25},
		PriceToSales:    Range{0.5, 3},
		MaxDebtToEquity: 2.0,
	},
	"fmcg": {
		Name:            "fmcg",
		PERatio:         Range{25, 60},
		EBITDAMargin:    Range{15, 30},
		RevenueGrowth:   Range{5, 20},
		PriceToSales:    Range{2, 10},
		MaxDebtToEquity: 0.8,
	},
	"default": {
		Name:            "default",
		PERatio:         Range{5, 60},
		EBITDAMargin:    Range{5, 50},
		RevenueGrowth:   Range{-20, 60},
		PriceToSales:    Range{0.3, 20},
		MaxDebtToEquity: 3.0,
	},
}

// Profiles resolves industry names to plausibility bands.
type Profiles struct {
	byName map[string]Profile
}

// DefaultProfiles returns the built-in industry table.
func DefaultProfiles() *Profiles {
	return &Profiles{byName: defaultProfiles}
}

// LoadProfiles reads an industry profile table from a YAML file, merging it
// over the built-in defaults.
func LoadProfiles(path string) (*Profiles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "reading industry profiles %s", path)
	}
	var loaded map[string]Profile
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, eris.Wrapf(err, "parsing industry profiles %s", path)
	}
	merged := make(map[string]Profile, len(defaultProfiles)+len(loaded))
	for name, p := range defaultProfiles {
		merged[name] = p
	}
	for name, p := range loaded {
		name = strings.ToLower(name)
		if p.Name == "" {
			p.Name = name
		}
		merged[name] = p
	}
	return &Profiles{byName: merged}, nil
}

// For returns the profile for industry, falling back to the wide default
// when the industry is unknown or empty.
func (ps *Profiles) For(industry string) Profile {
	if p, ok := ps.byName[strings.ToLower(strings.TrimSpace(industry))]; ok {
		return p
	}
	return ps.byName["default"]
}

// Industry checks points against an industry profile. Everything here is a
// warning; implausible is not impossible, so nothing is blocked.
func Industry(points []metric.Point, profile Profile) Result {
	var res Result

	check := func(kind metric.Kind, r Range, label string) {
		for _, p := range points {
			if p.Metric != kind {
				continue
			}
			v, ok := p.Val()
			if !ok {
				continue
			}
			lo, hi := 0.3*r.Min, 3*r.Max
			if v < lo || v > hi {
				res.warnf("%s %.2f outside plausible band [%.2f, %.2f] for %s", label, v, lo, hi, profile.Name)
			}
			if kind == metric.PERatio && v > extremePERatio {
				res.warnf("extreme pe ratio %.0f for %s", v, profile.Name)
			}
		}
	}

	check(metric.PERatio, profile.PERatio, "pe ratio")
	check(metric.EBITDAMargin, profile.EBITDAMargin, "ebitda margin")
	check(metric.RevenueGrowth, profile.RevenueGrowth, "revenue growth")
	check(metric.PriceToSales, profile.PriceToSales, "price-to-sales")

	for _, p := range points {
		if p.Metric != metric.DebtToEquity {
			continue
		}
		if v, ok := p.Val(); ok && v > 3*profile.MaxDebtToEquity {
			res.warnf("debt-to-equity %.2f above plausible maximum %.2f for %s", v, 3*profile.MaxDebtToEquity, profile.Name)
		}
	}

	res.finalize()
	return res
}
