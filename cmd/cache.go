package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ebita-intel/metrics-cli/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the consensus cache",
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate <substring>",
	Short: "Remove every cache entry whose key contains the substring",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := buildEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		removed, err := e.Cache.Invalidate(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("removed %d entries\n", removed)
		return nil
	},
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Reclaim space held by expired entries (sqlite backend)",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := buildEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		s, ok := e.Cache.(*cache.SQLite)
		if !ok {
			fmt.Println("purge only applies to the sqlite backend; other backends expire entries on their own")
			return nil
		}
		purged, err := s.Purge(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("purged %d expired entries\n", purged)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheInvalidateCmd)
	cacheCmd.AddCommand(cachePurgeCmd)
	rootCmd.AddCommand(cacheCmd)
}
