package queries

import (
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// Copy is one physical catalog unit of a book title.
type Copy struct {
	ID              int32
	Barcode         string
	BookID          int32
	Status          string
	AcquisitionDate pgtype.Date
	CreatedAt       pgtype.Timestamp
	UpdatedAt       pgtype.Timestamp
}

// Borrower is the slice of the borrower directory circulation depends on.
type Borrower struct {
	ID           int32
	FullName     string
	BorrowerType string
	IsActive     pgtype.Bool
	CreatedAt    pgtype.Timestamp
	UpdatedAt    pgtype.Timestamp
}

// Loan is one borrow-to-return lifecycle instance.
type Loan struct {
	ID           int32
	BorrowerID   int32
	CopyID       int32
	BorrowDate   pgtype.Timestamp
	DueDate      pgtype.Timestamp
	ReturnDate   pgtype.Timestamp
	Status       string
	RenewalCount int32
	LibrarianID  pgtype.Int4
	Notes        pgtype.Text
	CreatedAt    pgtype.Timestamp
	UpdatedAt    pgtype.Timestamp
}

// Fine is the single penalty row tied to a loan.
type Fine struct {
	ID            int32
	LoanID        int32
	Amount        pgtype.Numeric
	AmountPaid    pgtype.Numeric
	PaymentStatus string
	Reason        string
	CreatedAt     pgtype.Timestamp
	UpdatedAt     pgtype.Timestamp
}

// Reservation is one entry in a title's waiting list.
type Reservation struct {
	ID            int32
	BorrowerID    int32
	BookID        int32
	ReservedAt    pgtype.Timestamp
	ExpiresAt     pgtype.Timestamp
	QueuePosition pgtype.Int4
	Status        string
	Notified      pgtype.Bool
	CancelReason  pgtype.Text
	FulfilledAt   pgtype.Timestamp
	CreatedAt     pgtype.Timestamp
	UpdatedAt     pgtype.Timestamp
}

// DisposalRecord is one disposal audit entry.
type DisposalRecord struct {
	ID           int32
	CopyID       int32
	Reason       string
	Description  pgtype.Text
	LibrarianID  pgtype.Int4
	DisposedAt   pgtype.Timestamp
	FifoPriority pgtype.Int4
	BatchID      pgtype.UUID
	Status       string
}

// NumericFromDecimal converts a decimal amount to a two-place numeric.
func NumericFromDecimal(d decimal.Decimal) pgtype.Numeric {
	scaled := d.Shift(2)
	return pgtype.Numeric{
		Int:   scaled.BigInt(),
		Exp:   -2,
		Valid: true,
	}
}

// DecimalFromNumeric converts a stored numeric back to a decimal amount.
func DecimalFromNumeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
