package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/doctrove/enrich-cli/internal/model"
)

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect and retry dead-lettered documents",
}

// -- dlq list --

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dead-lettered documents",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		entries, err := st.ListDeadLetters(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "dlq list")
		}

		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "Dead-letter queue is empty.")
			return nil
		}

		formatDeadLetters(os.Stdout, entries)
		return nil
	},
}

// -- dlq retry --

var dlqRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Re-run enrichment for dead-lettered documents",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		entries, err := st.ListDeadLetters(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "dlq retry")
		}
		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "Dead-letter queue is empty.")
			return nil
		}

		seen := make(map[int]struct{}, len(entries))
		var ids []int
		for _, e := range entries {
			if _, ok := seen[e.DocumentID]; ok {
				continue
			}
			seen[e.DocumentID] = struct{}{}
			ids = append(ids, e.DocumentID)
		}

		env, err := buildEnrichment(ctx)
		if err != nil {
			return err
		}

		zap.L().Info("retrying dead-lettered documents", zap.Int("documents", len(ids)))
		report, runErr := env.orch.Run(ctx, ids, 8, func(res model.ProcessingResult) {
			fmt.Fprintf(os.Stderr, "document %d: %s\n", res.DocumentID, res.Outcome)
		})
		if report != nil {
			fmt.Fprintf(os.Stdout, "retried %d documents: %d succeeded, %d failed, %d dead-lettered again\n",
				report.Summary.Total,
				report.Summary.Succeeded+report.Summary.Skipped,
				report.Summary.Failed,
				report.Summary.DeadLettered,
			)
		}
		return runErr
	},
}

func formatDeadLetters(out io.Writer, entries []model.DeadLetterEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "DOCUMENT\tATTEMPTS\tFAILED_AT\tERROR")
	_, _ = fmt.Fprintln(w, "--------\t--------\t---------\t-----")
	for _, e := range entries {
		msg := e.FinalError
		if len(msg) > 60 {
			msg = msg[:57] + "..."
		}
		_, _ = fmt.Fprintf(w, "%d\t%d\t%s\t%s\n",
			e.DocumentID,
			e.Attempts,
			e.FailedAt.Format(time.RFC3339),
			msg,
		)
	}
	_ = w.Flush()
}

func init() {
	dlqListCmd.Flags().Int("limit", 100, "max number of entries to display")
	dlqRetryCmd.Flags().Int("limit", 100, "max number of entries to retry")

	dlqCmd.AddCommand(dlqListCmd)
	dlqCmd.AddCommand(dlqRetryCmd)
	rootCmd.AddCommand(dlqCmd)
}
