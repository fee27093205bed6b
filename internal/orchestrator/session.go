package orchestrator

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/doctrove/enrich-cli/internal/model"
	"github.com/doctrove/enrich-cli/internal/queue"
)

// Session is a long-lived variant of Run for callers that receive work
// over time, like the webhook server. Documents are submitted
// individually and terminal results are delivered on the Results
// channel as they happen.
type Session struct {
	o       *Orchestrator
	q       *queue.Manager
	g       *errgroup.Group
	cancel  context.CancelFunc
	stop    func() bool
	results chan model.ProcessingResult

	mu    sync.Mutex
	spent map[int]attemptSpend
}

// StartSession spins up the worker pool and returns immediately.
// Cancelling ctx aborts the session the same way it aborts Run.
func (o *Orchestrator) StartSession(ctx context.Context) *Session {
	runCtx, cancelRun := context.WithCancel(context.WithoutCancel(ctx))
	q := queue.NewManager(o.opts.RetryLimit)

	s := &Session{
		o:       o,
		q:       q,
		cancel:  cancelRun,
		results: make(chan model.ProcessingResult, 64),
		spent:   make(map[int]attemptSpend),
	}
	s.stop = context.AfterFunc(ctx, func() {
		q.Abort()
		time.AfterFunc(o.opts.GracePeriod, cancelRun)
	})

	record := func(res model.ProcessingResult) {
		s.mu.Lock()
		if prior, ok := s.spent[res.DocumentID]; ok {
			res.TokensUsed += prior.tokens
			res.Cost += prior.cost
			delete(s.spent, res.DocumentID)
		}
		s.mu.Unlock()
		s.results <- res
	}
	addSpend := func(id, tokens int, cost float64) {
		s.mu.Lock()
		sp := s.spent[id]
		sp.tokens += tokens
		sp.cost += cost
		s.spent[id] = sp
		s.mu.Unlock()
	}

	g, gctx := errgroup.WithContext(runCtx)
	for i := 0; i < o.opts.MaxConcurrency; i++ {
		g.Go(func() error {
			return o.worker(gctx, q, record, addSpend)
		})
	}
	s.g = g
	return s
}

// Submit enqueues one document. Duplicate submissions of a document
// that is still pending or in flight are no-ops.
func (s *Session) Submit(documentID, priority int) error {
	return s.q.Enqueue(documentID, priority)
}

// Results delivers terminal outcomes in completion order. The channel
// closes after Drain returns. Callers must keep consuming it; workers
// stall once the buffer fills.
func (s *Session) Results() <-chan model.ProcessingResult {
	return s.results
}

// Drain stops accepting work, waits for in-flight and queued documents
// to finish, and closes the results channel. It returns the dead
// letters accumulated over the session and the run-fatal error, if any.
func (s *Session) Drain() ([]model.DeadLetterEntry, error) {
	s.q.DrainAndClose()
	err := s.g.Wait()
	s.stop()
	s.cancel()
	close(s.results)
	return s.q.DeadLetters(), err
}
