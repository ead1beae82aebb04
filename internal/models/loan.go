package models

import (
	"time"
)

// Loan statuses. "overdue" is never stored: a loan stays "borrowed" in
// storage and is displayed as overdue when its due date has passed, so
// renewal and return treat an overdue loan exactly like a borrowed one.
const (
	LoanStatusBorrowed = "borrowed"
	LoanStatusReturned = "returned"
	LoanStatusLost     = "lost"
	LoanStatusDamaged  = "damaged"

	// LoanStatusOverdue is a derived display value only.
	LoanStatusOverdue = "overdue"
)

// LoanTerminal reports whether status ends the loan lifecycle.
func LoanTerminal(status string) bool {
	return status == LoanStatusReturned || status == LoanStatusLost || status == LoanStatusDamaged
}

// CheckoutRequest represents a request to lend a copy to a borrower.
type CheckoutRequest struct {
	BorrowerID  int32  `json:"borrower_id" binding:"required,min=1"`
	CopyID      int32  `json:"copy_id" binding:"required,min=1"`
	LibrarianID int32  `json:"librarian_id" binding:"required,min=1"`
	Notes       string `json:"notes"`
}

// RenewRequest represents a request to extend an open loan.
type RenewRequest struct {
	LibrarianID int32 `json:"librarian_id" binding:"required,min=1"`
}

// MarkLostRequest represents a request to close a loan as lost or damaged.
type MarkLostRequest struct {
	LibrarianID int32  `json:"librarian_id" binding:"required,min=1"`
	Notes       string `json:"notes"`
}

// LoanResponse represents a loan with its derived overdue view.
type LoanResponse struct {
	ID           int32      `json:"id"`
	BorrowerID   int32      `json:"borrower_id"`
	CopyID       int32      `json:"copy_id"`
	BorrowDate   time.Time  `json:"borrow_date"`
	DueDate      time.Time  `json:"due_date"`
	ReturnDate   *time.Time `json:"return_date,omitempty"`
	Status       string     `json:"status"`
	RenewalCount int32      `json:"renewal_count"`
	LibrarianID  *int32     `json:"librarian_id,omitempty"`
	Notes        string     `json:"notes"`
	DaysOverdue  int        `json:"days_overdue"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
