package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tramitex/docflow/internal/batch"
)

var (
	batchNoCache        bool
	batchForceReprocess bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <batch-id>",
	Short: "Process every document in a batch synchronously",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initApp(cmd.Context(), "worker")
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Orchestrator.ProcessBatch(cmd.Context(), args[0], batch.Options{
			UseCache:       !batchNoCache,
			ForceReprocess: batchForceReprocess,
			OnProgress: func(done, total int) {
				zap.L().Info("batch progress", zap.Int("done", done), zap.Int("total", total))
			},
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	batchCmd.Flags().BoolVar(&batchNoCache, "no-cache", false, "skip cached results and listings")
	batchCmd.Flags().BoolVar(&batchForceReprocess, "force", false, "reprocess even when a cached result exists")
	rootCmd.AddCommand(batchCmd)
}
