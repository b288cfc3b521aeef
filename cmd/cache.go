package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tramitex/docflow/internal/model"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and invalidate cached batch data",
}

var cacheInvalidateCmd = &cobra.Command{
	Use:   "invalidate <batch-id>",
	Short: "Remove the cached listing and results for a batch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initApp(cmd.Context(), "worker")
		if err != nil {
			return err
		}
		defer env.Close()

		removed := env.Cache.InvalidateBatch(cmd.Context(), args[0])
		fmt.Printf("removed %d cache keys for batch %s\n", removed, args[0])
		return nil
	},
}

var cacheTTLCmd = &cobra.Command{
	Use:   "ttl <batch-id>",
	Short: "Show the remaining lifetime of a cached listing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initApp(cmd.Context(), "worker")
		if err != nil {
			return err
		}
		defer env.Close()

		ttl := env.Cache.ListingTTL(cmd.Context(), args[0])
		if ttl <= 0 {
			return &model.NotFoundError{Resource: "cached listing for batch " + args[0]}
		}
		fmt.Printf("listing for batch %s expires in %s\n", args[0], ttl.Round(time.Second))
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheInvalidateCmd)
	cacheCmd.AddCommand(cacheTTLCmd)
	rootCmd.AddCommand(cacheCmd)
}
