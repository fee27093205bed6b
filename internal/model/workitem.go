package model

import "time"

// WorkItem is a pending unit of work in the batch queue. At most one item
// per document ID is pending or in flight at any time.
type WorkItem struct {
	DocumentID int       `json:"document_id"`
	Priority   int       `json:"priority"`
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"last_error,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// DeadLetterEntry records a work item that exhausted its retries.
// Entries are append-only and never mutated after creation.
type DeadLetterEntry struct {
	DocumentID int       `json:"document_id"`
	FinalError string    `json:"final_error"`
	Attempts   int       `json:"attempts"`
	FailedAt   time.Time `json:"failed_at"`
}
