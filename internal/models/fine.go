package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Fine payment statuses.
const (
	FineStatusUnpaid      = "unpaid"
	FineStatusPartialPaid = "partial_paid"
	FineStatusPaidCash    = "paid_cash"
)

// Fine reason tags.
const (
	FineReasonOverdue = "overdue"
	FineReasonLost    = "lost"
)

// RecordPaymentRequest represents a payment against an outstanding fine.
type RecordPaymentRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
}

// FineResponse represents a fine with its running balance. A fine is a
// recomputed projection tied 1:1 to a loan: the amount is replaced on every
// recomputation, never summed with a prior stored value.
type FineResponse struct {
	ID            int32           `json:"id"`
	LoanID        int32           `json:"loan_id"`
	Amount        decimal.Decimal `json:"amount"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	BalanceDue    decimal.Decimal `json:"balance_due"`
	PaymentStatus string          `json:"payment_status"`
	Reason        string          `json:"reason"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
