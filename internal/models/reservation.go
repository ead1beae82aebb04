package models

import (
	"time"
)

// Reservation statuses. "expired" is stored only once a sweep (or a removal)
// finalizes it; until then an active reservation whose expiry date has passed
// is displayed as expired wherever it is read.
const (
	ReservationStatusActive    = "active"
	ReservationStatusFulfilled = "fulfilled"
	ReservationStatusExpired   = "expired"
	ReservationStatusCancelled = "cancelled"
)

// ReservationTerminal reports whether status ends the reservation lifecycle.
func ReservationTerminal(status string) bool {
	return status == ReservationStatusFulfilled ||
		status == ReservationStatusExpired ||
		status == ReservationStatusCancelled
}

// ReserveRequest represents a request to join the waiting list for a title.
type ReserveRequest struct {
	BorrowerID int32 `json:"borrower_id" binding:"required,min=1"`
	BookID     int32 `json:"book_id" binding:"required,min=1"`
}

// CancelReservationRequest carries the mandatory cancellation reason.
type CancelReservationRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// FulfillReservationRequest names the concrete copy handed to the requester.
type FulfillReservationRequest struct {
	CopyID      int32 `json:"copy_id" binding:"required,min=1"`
	LibrarianID int32 `json:"librarian_id" binding:"required,min=1"`
}

// ReservationResponse represents a reservation with its derived expiry view.
type ReservationResponse struct {
	ID            int32      `json:"id"`
	BorrowerID    int32      `json:"borrower_id"`
	BookID        int32      `json:"book_id"`
	ReservedAt    time.Time  `json:"reserved_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	QueuePosition int        `json:"queue_position,omitempty"`
	Status        string     `json:"status"`
	Notified      bool       `json:"notified"`
	CancelReason  string     `json:"cancel_reason,omitempty"`
	FulfilledAt   *time.Time `json:"fulfilled_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ReservationQueueResponse represents the waiting list for one title.
type ReservationQueueResponse struct {
	BookID       int32                 `json:"book_id"`
	QueueLength  int                   `json:"queue_length"`
	Reservations []ReservationResponse `json:"reservations"`
}
