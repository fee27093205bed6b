package main

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var processCmd = &cobra.Command{
	Use:   "process <document-id>",
	Short: "Enrich a single document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		documentID, err := strconv.Atoi(args[0])
		if err != nil {
			return eris.Errorf("invalid document id %q", args[0])
		}

		env, err := buildEnrichment(ctx)
		if err != nil {
			return err
		}

		result, procErr := env.proc.Process(ctx, documentID)
		if procErr != nil {
			zap.L().Error("enrichment failed",
				zap.Int("document_id", documentID),
				zap.Error(procErr),
			)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return eris.Wrap(err, "encode result")
		}
		return procErr
	},
}

func init() {
	rootCmd.AddCommand(processCmd)
}
