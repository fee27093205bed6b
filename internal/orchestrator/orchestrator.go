// Package orchestrator drives batch runs: it feeds the work queue,
// fans work out over a bounded worker pool, applies the retry policy,
// and folds per-document results into a run report.
package orchestrator

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/doctrove/enrich-cli/internal/model"
	"github.com/doctrove/enrich-cli/internal/queue"
	"github.com/doctrove/enrich-cli/internal/resilience"
)

// Processor handles a single document end to end.
type Processor interface {
	Process(ctx context.Context, documentID int) (*model.ProcessingResult, error)
}

// Report is the outcome of one batch run. Results holds exactly one
// terminal entry per requested document, ordered by document ID.
type Report struct {
	Results     []model.ProcessingResult `json:"results"`
	Summary     model.BatchSummary       `json:"summary"`
	DeadLetters []model.DeadLetterEntry  `json:"dead_letters,omitempty"`
}

// Orchestrator runs batches. It is stateless between runs and safe to
// reuse.
type Orchestrator struct {
	proc  Processor
	opts  model.ProcessingOptions
	retry resilience.RetryConfig
}

// New creates an Orchestrator around a document processor.
func New(proc Processor, opts model.ProcessingOptions, retry resilience.RetryConfig) *Orchestrator {
	if opts.MaxConcurrency < 1 {
		opts.MaxConcurrency = 1
	}
	return &Orchestrator{proc: proc, opts: opts, retry: retry}
}

// Run processes the given documents at the given queue priority.
// Every requested document ends in exactly one terminal outcome, and
// progress (if non-nil) is invoked once per terminal outcome as it
// happens. Cancelling ctx aborts the run: queued work is discarded,
// in-flight documents get a grace period to finish, and everything
// unfinished is reported as cancelled.
func (o *Orchestrator) Run(ctx context.Context, documentIDs []int, priority int, progress func(model.ProcessingResult)) (*Report, error) {
	start := time.Now()
	ids := dedupe(documentIDs)

	q := queue.NewManager(o.opts.RetryLimit)
	for _, id := range ids {
		if err := q.Enqueue(id, priority); err != nil {
			return nil, err
		}
	}
	q.DrainAndClose()

	zap.L().Info("batch run started",
		zap.Int("documents", len(ids)),
		zap.Int("priority", priority),
		zap.Int("workers", o.opts.MaxConcurrency),
	)

	// Workers run on a context detached from the caller's so that a
	// cancellation drains gracefully instead of killing mid-flight
	// documents outright.
	runCtx, cancelRun := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelRun()
	stop := context.AfterFunc(ctx, func() {
		q.Abort()
		time.AfterFunc(o.opts.GracePeriod, cancelRun)
	})
	defer stop()

	var (
		mu       sync.Mutex
		outcomes = make(map[int]model.ProcessingResult, len(ids))
		spent    = make(map[int]attemptSpend)
	)
	record := func(res model.ProcessingResult) {
		mu.Lock()
		if prior, ok := spent[res.DocumentID]; ok {
			res.TokensUsed += prior.tokens
			res.Cost += prior.cost
		}
		outcomes[res.DocumentID] = res
		mu.Unlock()
		if progress != nil {
			progress(res)
		}
	}

	g, gctx := errgroup.WithContext(runCtx)
	for i := 0; i < o.opts.MaxConcurrency; i++ {
		g.Go(func() error {
			return o.worker(gctx, q, record, func(id int, tokens int, cost float64) {
				mu.Lock()
				s := spent[id]
				s.tokens += tokens
				s.cost += cost
				spent[id] = s
				mu.Unlock()
			})
		})
	}
	runErr := g.Wait()

	// Anything without a terminal outcome was dropped by the abort or
	// never left the queue.
	for _, id := range ids {
		mu.Lock()
		_, done := outcomes[id]
		mu.Unlock()
		if !done {
			record(model.ProcessingResult{
				DocumentID: id,
				Outcome:    model.OutcomeCancelled,
			})
		}
	}

	results := make([]model.ProcessingResult, 0, len(outcomes))
	mu.Lock()
	for _, res := range outcomes {
		results = append(results, res)
	}
	mu.Unlock()
	sort.Slice(results, func(i, j int) bool {
		return results[i].DocumentID < results[j].DocumentID
	})

	elapsed := time.Since(start)
	report := &Report{
		Results:     results,
		Summary:     model.Summarize(results, elapsed),
		DeadLetters: q.DeadLetters(),
	}

	if runErr == nil && ctx.Err() != nil {
		runErr = ctx.Err()
	}
	zap.L().Info("batch run finished",
		zap.Int("total", report.Summary.Total),
		zap.Int("succeeded", report.Summary.Succeeded),
		zap.Int("skipped", report.Summary.Skipped),
		zap.Int("failed", report.Summary.Failed),
		zap.Int("dead_lettered", report.Summary.DeadLettered),
		zap.Int("cancelled", report.Summary.Cancelled),
		zap.Int("tokens_used", report.Summary.TokensUsed),
		zap.Float64("cost_usd", report.Summary.Cost),
		zap.Duration("elapsed", elapsed),
		zap.Error(runErr),
	)
	return report, runErr
}

type attemptSpend struct {
	tokens int
	cost   float64
}

// worker pulls items until the queue drains or the run context ends.
// A run-fatal error is returned to abort the whole group.
func (o *Orchestrator) worker(ctx context.Context, q *queue.Manager, record func(model.ProcessingResult), addSpend func(id, tokens int, cost float64)) error {
	for {
		item, err := q.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return err
		}

		procCtx, cancel := context.WithTimeout(ctx, o.opts.DocumentTimeout)
		res, procErr := o.proc.Process(procCtx, item.DocumentID)
		cancel()
		if res == nil {
			res = &model.ProcessingResult{DocumentID: item.DocumentID, Outcome: model.OutcomeFailed}
		}

		if procErr == nil {
			if res.Outcome == "" {
				res.Outcome = model.OutcomeSucceeded
				res.Success = true
			}
			q.Complete(item.DocumentID)
			record(*res)
			continue
		}

		if ctx.Err() != nil {
			// The run is shutting down; leave the document without a
			// terminal outcome so it is reported as cancelled.
			q.Complete(item.DocumentID)
			continue
		}

		if resilience.IsRunFatal(procErr) {
			res.Outcome = model.OutcomeFailed
			res.Success = false
			q.Complete(item.DocumentID)
			record(*res)
			zap.L().Error("aborting run on fatal error",
				zap.Int("document_id", item.DocumentID),
				zap.Error(procErr),
			)
			return procErr
		}

		if resilience.IsRetryable(procErr) {
			delay := resilience.Backoff(item.Attempts, o.retry)
			if resilience.IsRateLimit(procErr) {
				delay = time.Duration(float64(delay) * o.retry.RateLimitMultiplier)
				if limit := o.retry.MaxBackoff; limit > 0 && delay > limit {
					delay = limit
				}
			}
			if q.Requeue(item, procErr, delay) {
				res.Outcome = model.OutcomeDeadLettered
				res.Success = false
				record(*res)
			} else {
				// Tokens spent on the failed attempt still count
				// toward the document's final bill.
				addSpend(item.DocumentID, res.TokensUsed, res.Cost)
				zap.L().Debug("retrying document",
					zap.Int("document_id", item.DocumentID),
					zap.Int("attempt", item.Attempts+1),
					zap.Duration("delay", delay),
					zap.Error(procErr),
				)
			}
			continue
		}

		res.Outcome = model.OutcomeFailed
		res.Success = false
		q.Complete(item.DocumentID)
		record(*res)
	}
}

// dedupe preserves first-seen order.
func dedupe(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
