package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ebita-intel/metrics-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "metrics-cli",
	Short: "Multi-source financial metrics with consensus scoring",
	Long:  "Fetches the same financial metrics from several independent providers, reconciles them into one confidence-scored consensus value per metric, and serves the result over CLI or HTTP.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
