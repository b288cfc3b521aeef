package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/tramitex/docflow/internal/model"
)

var jobCmd = &cobra.Command{
	Use:   "job <job-id>",
	Short: "Show the state of an async batch job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initApp(cmd.Context(), "worker")
		if err != nil {
			return err
		}
		defer env.Close()

		job, ok := env.JobStore.Get(cmd.Context(), args[0])
		if !ok {
			return &model.NotFoundError{Resource: "job " + args[0]}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	},
}

func init() {
	rootCmd.AddCommand(jobCmd)
}
