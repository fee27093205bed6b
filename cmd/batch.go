package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/doctrove/enrich-cli/internal/model"
)

var batchPriority int

var batchCmd = &cobra.Command{
	Use:   "batch <ids>...",
	Short: "Enrich a batch of documents",
	Long:  "Enriches the given documents with a bounded worker pool. IDs can be listed individually, comma-separated, or as ranges (e.g. 12 40,41 100-110). The run and its per-document results are persisted to the history store.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ids, err := parseIDList(args)
		if err != nil {
			return err
		}

		env, err := buildEnrichment(ctx)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.CreateRun(ctx, ids)
		if err != nil {
			return eris.Wrap(err, "record run")
		}
		if err := st.UpdateRunStatus(ctx, run.ID, model.RunStatusProcessing); err != nil {
			return eris.Wrap(err, "record run")
		}
		zap.L().Info("run recorded", zap.String("run_id", run.ID), zap.Int("documents", len(ids)))

		var completed atomic.Int64
		total := len(ids)
		progress := func(res model.ProcessingResult) {
			n := completed.Add(1)
			fmt.Fprintf(os.Stderr, "[%d/%d] document %d: %s\n", n, total, res.DocumentID, res.Outcome)
		}

		report, runErr := env.orch.Run(ctx, ids, batchPriority, progress)

		// Persist even when the run was cancelled mid-flight.
		saveCtx := context.WithoutCancel(ctx)
		if report != nil {
			if err := st.SaveResults(saveCtx, run.ID, report.Results); err != nil {
				zap.L().Error("persist results failed", zap.Error(err))
			}
			if err := st.SaveDeadLetters(saveCtx, run.ID, report.DeadLetters); err != nil {
				zap.L().Error("persist dead letters failed", zap.Error(err))
			}
		}

		status := model.RunStatusComplete
		var summary *model.BatchSummary
		if report != nil {
			summary = &report.Summary
		}
		switch {
		case errors.Is(runErr, context.Canceled):
			status = model.RunStatusCancelled
		case runErr != nil:
			status = model.RunStatusFailed
		}
		if err := st.CompleteRun(saveCtx, run.ID, status, summary); err != nil {
			zap.L().Error("finalize run failed", zap.Error(err))
		}

		if report != nil {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report.Summary); err != nil {
				return eris.Wrap(err, "encode summary")
			}
		}
		return runErr
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchPriority, "priority", 5, "queue priority 0-9, higher first")
	rootCmd.AddCommand(batchCmd)
}
