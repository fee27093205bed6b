package model

import "time"

// Terminal states a document can end a run in.
const (
	OutcomeSucceeded    = "succeeded"
	OutcomeSkipped      = "skipped"
	OutcomeFailed       = "failed"
	OutcomeDeadLettered = "dead_lettered"
	OutcomeCancelled    = "cancelled"
)

// ProcessingResult is the immutable outcome of processing one document.
type ProcessingResult struct {
	DocumentID    int            `json:"document_id"`
	Success       bool           `json:"success"`
	Outcome       string         `json:"outcome"`
	Title         string         `json:"title,omitempty"`
	Tags          []string       `json:"tags,omitempty"`
	Correspondent string         `json:"correspondent,omitempty"`
	DocumentType  string         `json:"document_type,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Summary       string         `json:"summary,omitempty"`
	Errors        []string       `json:"errors,omitempty"`
	Elapsed       time.Duration  `json:"elapsed"`
	TokensUsed    int            `json:"tokens_used"`
	Cost          float64        `json:"cost"`
}

// Skipped reports whether the document was short-circuited by a skip policy
// without consuming any LLM calls.
func (r *ProcessingResult) Skipped() bool {
	return r.Outcome == OutcomeSkipped
}

// BatchSummary aggregates the terminal states of a batch run.
type BatchSummary struct {
	Total        int           `json:"total"`
	Succeeded    int           `json:"succeeded"`
	Skipped      int           `json:"skipped"`
	Failed       int           `json:"failed"`
	DeadLettered int           `json:"dead_lettered"`
	Cancelled    int           `json:"cancelled"`
	TokensUsed   int           `json:"tokens_used"`
	Cost         float64       `json:"cost"`
	Elapsed      time.Duration `json:"elapsed"`
}

// Summarize tallies a result set into a BatchSummary.
func Summarize(results []ProcessingResult, elapsed time.Duration) BatchSummary {
	s := BatchSummary{Total: len(results), Elapsed: elapsed}
	for _, r := range results {
		switch r.Outcome {
		case OutcomeSucceeded:
			s.Succeeded++
		case OutcomeSkipped:
			s.Skipped++
		case OutcomeDeadLettered:
			s.DeadLettered++
		case OutcomeCancelled:
			s.Cancelled++
		default:
			s.Failed++
		}
		s.TokensUsed += r.TokensUsed
		s.Cost += r.Cost
	}
	return s
}
