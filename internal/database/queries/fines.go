package queries

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const fineColumns = `id, loan_id, amount, amount_paid, payment_status, reason, created_at, updated_at`

func scanFine(row pgx.Row) (Fine, error) {
	var f Fine
	err := row.Scan(
		&f.ID,
		&f.LoanID,
		&f.Amount,
		&f.AmountPaid,
		&f.PaymentStatus,
		&f.Reason,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	return f, err
}

const getFine = `
SELECT ` + fineColumns + `
FROM fines
WHERE id = $1
`

// GetFine fetches one fine.
func (q *Queries) GetFine(ctx context.Context, id int32) (Fine, error) {
	return scanFine(q.db.QueryRow(ctx, getFine, id))
}

const getFineByLoan = `
SELECT ` + fineColumns + `
FROM fines
WHERE loan_id = $1
`

// GetFineByLoan fetches the fine row tied to a loan, if any.
func (q *Queries) GetFineByLoan(ctx context.Context, loanID int32) (Fine, error) {
	return scanFine(q.db.QueryRow(ctx, getFineByLoan, loanID))
}

const upsertFine = `
INSERT INTO fines (loan_id, amount, amount_paid, payment_status, reason)
VALUES ($1, $2, 0, 'unpaid', $3)
ON CONFLICT (loan_id) DO UPDATE
SET amount = EXCLUDED.amount,
	reason = EXCLUDED.reason,
	payment_status = CASE
		WHEN fines.amount_paid >= EXCLUDED.amount THEN 'paid_cash'
		WHEN fines.amount_paid > 0 THEN 'partial_paid'
		ELSE 'unpaid'
	END,
	updated_at = now()
RETURNING ` + fineColumns + `
`

type UpsertFineParams struct {
	LoanID int32
	Amount pgtype.Numeric
	Reason string
}

// UpsertFine writes the recomputed fine amount for a loan. The amount is
// replaced, never added to the stored value; repeated recomputation with the
// same inputs leaves the row unchanged.
func (q *Queries) UpsertFine(ctx context.Context, arg UpsertFineParams) (Fine, error) {
	return scanFine(q.db.QueryRow(ctx, upsertFine, arg.LoanID, arg.Amount, arg.Reason))
}

const recordFinePayment = `
UPDATE fines
SET amount_paid = amount_paid + $2,
	payment_status = CASE
		WHEN amount_paid + $2 >= amount THEN 'paid_cash'
		ELSE 'partial_paid'
	END,
	updated_at = now()
WHERE id = $1 AND amount_paid + $2 <= amount
RETURNING ` + fineColumns + `
`

type RecordFinePaymentParams struct {
	ID     int32
	Amount pgtype.Numeric
}

// RecordFinePayment adds a payment to a fine. The update refuses to push
// amount_paid past the amount owed, so a payment racing a recomputation can
// never overshoot the balance; the loser gets ErrPaymentExceedsBalance.
func (q *Queries) RecordFinePayment(ctx context.Context, arg RecordFinePaymentParams) (Fine, error) {
	f, err := scanFine(q.db.QueryRow(ctx, recordFinePayment, arg.ID, arg.Amount))
	if err == pgx.ErrNoRows {
		return Fine{}, ErrPaymentExceedsBalance
	}
	return f, err
}

const listOutstandingFinesByBorrower = `
SELECT f.id, f.loan_id, f.amount, f.amount_paid, f.payment_status, f.reason, f.created_at, f.updated_at
FROM fines f
JOIN loans l ON l.id = f.loan_id
WHERE l.borrower_id = $1 AND f.payment_status <> 'paid_cash'
ORDER BY f.created_at
`

// ListOutstandingFinesByBorrower lists fines of a borrower that still carry
// a balance.
func (q *Queries) ListOutstandingFinesByBorrower(ctx context.Context, borrowerID int32) ([]Fine, error) {
	rows, err := q.db.Query(ctx, listOutstandingFinesByBorrower, borrowerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var fines []Fine
	for rows.Next() {
		f, err := scanFine(rows)
		if err != nil {
			return nil, err
		}
		fines = append(fines, f)
	}
	return fines, rows.Err()
}
