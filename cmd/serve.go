package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/doctrove/enrich-cli/internal/model"
	"github.com/doctrove/enrich-cli/internal/queue"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server for enrichment triggers",
	Long:  "Listens for document webhooks (e.g. a Paperless-ngx post-consume hook) and feeds them into a long-lived enrichment session. Results are persisted to the history store as they complete.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := buildEnrichment(ctx)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		saveCtx := context.WithoutCancel(ctx)
		run, err := st.CreateRun(ctx, nil)
		if err != nil {
			return eris.Wrap(err, "record session run")
		}
		if err := st.UpdateRunStatus(ctx, run.ID, model.RunStatusProcessing); err != nil {
			return eris.Wrap(err, "record session run")
		}

		session := env.orch.StartSession(ctx)

		var results []model.ProcessingResult
		consumerDone := make(chan struct{})
		go func() {
			defer close(consumerDone)
			for res := range session.Results() {
				results = append(results, res)
				if err := st.SaveResults(saveCtx, run.ID, []model.ProcessingResult{res}); err != nil {
					zap.L().Error("persist result failed",
						zap.Int("document_id", res.DocumentID),
						zap.Error(err),
					)
				}
			}
		}()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newServeRouter(session.Submit),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(saveCtx, 10*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port), zap.String("run_id", run.ID))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		dead, sessionErr := session.Drain()
		<-consumerDone
		if err := st.SaveDeadLetters(saveCtx, run.ID, dead); err != nil {
			zap.L().Error("persist dead letters failed", zap.Error(err))
		}

		status := model.RunStatusComplete
		if sessionErr != nil {
			status = model.RunStatusFailed
		}
		summary := model.Summarize(results, 0)
		if err := st.CompleteRun(saveCtx, run.ID, status, &summary); err != nil {
			zap.L().Error("finalize session run failed", zap.Error(err))
		}
		return sessionErr
	},
}

// newServeRouter builds the HTTP surface around a submit function so
// handlers can be tested without a live session.
func newServeRouter(submit func(documentID, priority int) error) chi.Router {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/webhook/document", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			DocumentID int  `json:"document_id"`
			Priority   *int `json:"priority"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if body.DocumentID <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document_id is required"})
			return
		}
		priority := 5
		if body.Priority != nil {
			priority = *body.Priority
		}

		if err := submit(body.DocumentID, priority); err != nil {
			if errors.Is(err, queue.ErrClosed) {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "session is shutting down"})
				return
			}
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}

		zap.L().Info("webhook accepted",
			zap.Int("document_id", body.DocumentID),
			zap.Int("priority", priority),
		)
		writeJSON(w, http.StatusAccepted, map[string]any{
			"status":      "accepted",
			"document_id": body.DocumentID,
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
