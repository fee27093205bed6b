package model

import "time"

// RunStatus tracks the lifecycle of a recorded batch run.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusProcessing RunStatus = "processing"
	RunStatusComplete   RunStatus = "complete"
	RunStatusFailed     RunStatus = "failed"
	RunStatusCancelled  RunStatus = "cancelled"
)

// Run is a persisted record of one batch invocation.
type Run struct {
	ID          string        `json:"id"`
	DocumentIDs []int         `json:"document_ids"`
	Status      RunStatus     `json:"status"`
	Summary     *BatchSummary `json:"summary,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}
