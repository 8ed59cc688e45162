package main

import (
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ebita-intel/metrics-cli/internal/metric"
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured providers and their authority constants",
	RunE: func(cmd *cobra.Command, args []string) error {
		specs := cfg.SourceSpecs()

		names := make([]metric.Source, 0, len(specs))
		for s := range specs {
			names = append(names, s)
		}
		sort.Slice(names, func(i, j int) bool { return specs[names[i]].Weight > specs[names[j]].Weight })

		p := message.NewPrinter(language.English)
		p.Printf("%-15s %8s %12s %11s %10s %8s\n", "source", "weight", "reliability", "authority", "per-min", "per-day")
		for _, s := range names {
			sp := specs[s]
			authority := "scraped"
			if sp.HighAuthority {
				authority = "official"
			}
			perMin, perDay := "-", "-"
			if sp.PerMinute > 0 {
				perMin = p.Sprintf("%d", sp.PerMinute)
			}
			if sp.PerDay > 0 {
				perDay = p.Sprintf("%d", sp.PerDay)
			}
			p.Printf("%-15s %8d %12d %11s %10s %8s\n", s, sp.Weight, sp.Reliability, authority, perMin, perDay)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sourcesCmd)
}
