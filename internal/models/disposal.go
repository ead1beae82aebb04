package models

import (
	"time"
)

// Disposal record statuses and reasons.
const (
	DisposalStatusCompleted = "completed"
	DisposalStatusFailed    = "failed"

	DisposalReasonAged   = "aged"
	DisposalReasonLost   = "lost"
	DisposalReasonManual = "manual"
)

// ManualDisposeRequest represents a librarian-initiated disposal of one copy.
type ManualDisposeRequest struct {
	Reason      string `json:"reason" binding:"required"`
	Description string `json:"description"`
	LibrarianID int32  `json:"librarian_id" binding:"required,min=1"`
}

// DisposalRecordResponse represents one disposal audit entry.
type DisposalRecordResponse struct {
	ID           int32     `json:"id"`
	CopyID       int32     `json:"copy_id"`
	Reason       string    `json:"reason"`
	Description  string    `json:"description,omitempty"`
	LibrarianID  *int32    `json:"librarian_id,omitempty"`
	DisposedAt   time.Time `json:"disposed_at"`
	FifoPriority int       `json:"fifo_priority,omitempty"`
	BatchID      string    `json:"batch_id,omitempty"`
	Status       string    `json:"status"`
}
