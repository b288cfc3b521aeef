package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/tramitex/docflow/internal/model"
)

var processCmd = &cobra.Command{
	Use:   "process <file.pdf>",
	Short: "Process a single PDF through the pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initApp(cmd.Context(), "process")
		if err != nil {
			return err
		}
		defer env.Close()

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrap(err, "read document")
		}
		if cfg.Batch.MaxDocumentBytes > 0 && int64(len(raw)) > cfg.Batch.MaxDocumentBytes {
			return model.NewValidationError("document exceeds maximum size")
		}

		docID := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		doc, err := env.Pipeline.Process(cmd.Context(), docID, raw)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	},
}

func init() {
	rootCmd.AddCommand(processCmd)
}
