package main

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ebita-intel/metrics-cli/internal/metric"
	"github.com/ebita-intel/metrics-cli/internal/orchestrator"
)

var (
	fetchRegion   string
	fetchIndustry string
	fetchNoCache  bool
	fetchJSON     bool
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <ticker>",
	Short: "Fetch consensus financials for one entity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := buildEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		record, err := e.Orchestrator.FetchFinancials(ctx, orchestrator.Request{
			EntityID: args[0],
			Region:   fetchRegion,
			Industry: fetchIndustry,
			UseCache: !fetchNoCache,
		})
		if err != nil {
			return err
		}

		if fetchJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(record)
		}

		printFinancials(record)
		return nil
	},
}

func printFinancials(record *metric.EntityFinancials) {
	p := message.NewPrinter(language.English)

	p.Printf("%s", record.EntityID)
	if record.Region != "" {
		p.Printf(" (%s)", record.Region)
	}
	if record.FromCache {
		p.Printf(" [cached]")
	}
	p.Printf("\n  overall confidence %.0f/100, quality %.0f/100\n\n", record.OverallConfidence, record.QualityScore)

	kinds := make([]metric.Kind, 0, len(record.Metrics))
	for kind := range record.Metrics {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	for _, kind := range kinds {
		rec := record.Metrics[kind]
		if rec.Value == nil {
			continue
		}
		flag := ""
		if rec.IsAnomaly {
			flag = "  !"
		}
		switch kind.CanonicalUnit() {
		case metric.UnitPercent:
			p.Printf("  %-22s %10.1f%%   conf %3.0f%s\n", kind, *rec.Value, rec.Confidence, flag)
		case metric.UnitRatio:
			p.Printf("  %-22s %10.2f    conf %3.0f%s\n", kind, *rec.Value, rec.Confidence, flag)
		default:
			p.Printf("  %-22s %12.0f  conf %3.0f%s\n", kind, *rec.Value, rec.Confidence, flag)
		}
	}

	if len(record.Warnings) > 0 {
		p.Printf("\nwarnings:\n")
		for _, w := range record.Warnings {
			p.Printf("  - %s\n", w)
		}
	}
}

func init() {
	fetchCmd.Flags().StringVar(&fetchRegion, "region", "", "region hint (adds regional exchange sources)")
	fetchCmd.Flags().StringVar(&fetchIndustry, "industry", "", "industry profile for plausibility checks")
	fetchCmd.Flags().BoolVar(&fetchNoCache, "no-cache", false, "bypass the cache for this request")
	fetchCmd.Flags().BoolVar(&fetchJSON, "json", false, "emit the raw record as JSON")
	rootCmd.AddCommand(fetchCmd)
}
