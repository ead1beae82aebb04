package queries

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/kibetrono/slms/internal/models"
)

const loanColumns = `id, borrower_id, copy_id, borrow_date, due_date, return_date,
	status, renewal_count, librarian_id, notes, created_at, updated_at`

func scanLoan(row pgx.Row) (Loan, error) {
	var l Loan
	err := row.Scan(
		&l.ID,
		&l.BorrowerID,
		&l.CopyID,
		&l.BorrowDate,
		&l.DueDate,
		&l.ReturnDate,
		&l.Status,
		&l.RenewalCount,
		&l.LibrarianID,
		&l.Notes,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	return l, err
}

func collectLoans(rows pgx.Rows) ([]Loan, error) {
	defer rows.Close()
	var loans []Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, err
		}
		loans = append(loans, l)
	}
	return loans, rows.Err()
}

const getLoan = `
SELECT ` + loanColumns + `
FROM loans
WHERE id = $1
`

// GetLoan fetches one loan.
func (q *Queries) GetLoan(ctx context.Context, id int32) (Loan, error) {
	return scanLoan(q.db.QueryRow(ctx, getLoan, id))
}

const createLoanWithCopy = `
WITH claimed AS (
	UPDATE copies
	SET status = 'borrowed', updated_at = now()
	WHERE id = $1 AND status = 'available'
	RETURNING id
)
INSERT INTO loans (borrower_id, copy_id, borrow_date, due_date, status, renewal_count, librarian_id, notes)
SELECT $2, claimed.id, $3, $4, 'borrowed', 0, $5, $6
FROM claimed
RETURNING ` + loanColumns + `
`

type CreateLoanWithCopyParams struct {
	CopyID      int32
	BorrowerID  int32
	BorrowDate  pgtype.Timestamp
	DueDate     pgtype.Timestamp
	LibrarianID pgtype.Int4
	Notes       pgtype.Text
}

// CreateLoanWithCopy claims an available copy and records the loan in one
// statement. When two checkouts race on the same copy exactly one claims
// it; the loser gets ErrCopyNotAvailable.
func (q *Queries) CreateLoanWithCopy(ctx context.Context, arg CreateLoanWithCopyParams) (Loan, error) {
	l, err := scanLoan(q.db.QueryRow(ctx, createLoanWithCopy,
		arg.CopyID,
		arg.BorrowerID,
		arg.BorrowDate,
		arg.DueDate,
		arg.LibrarianID,
		arg.Notes,
	))
	if err == pgx.ErrNoRows {
		return Loan{}, ErrCopyNotAvailable
	}
	return l, err
}

const closeLoan = `
WITH closed AS (
	UPDATE loans
	SET status = $2, return_date = $3, updated_at = now()
	WHERE id = $1 AND status = 'borrowed'
	RETURNING ` + loanColumns + `
), released AS (
	UPDATE copies
	SET status = $4, updated_at = now()
	WHERE id = (SELECT copy_id FROM closed)
)
SELECT ` + loanColumns + `
FROM closed
`

type CloseLoanParams struct {
	ID         int32
	Status     string
	ReturnDate pgtype.Timestamp
	CopyStatus string
}

// CloseLoan terminates an open loan and moves its copy to the given status
// atomically. The copy of an open loan is borrowed, so CopyStatus must be a
// legal target from borrowed. A loan that is already terminal yields
// ErrLoanNotOpen and leaves the copy untouched.
func (q *Queries) CloseLoan(ctx context.Context, arg CloseLoanParams) (Loan, error) {
	if !models.CopyStatusBorrowed.CanTransition(models.CopyStatus(arg.CopyStatus)) {
		return Loan{}, ErrCopyNotTransitionable
	}
	l, err := scanLoan(q.db.QueryRow(ctx, closeLoan,
		arg.ID,
		arg.Status,
		arg.ReturnDate,
		arg.CopyStatus,
	))
	if err == pgx.ErrNoRows {
		return Loan{}, ErrLoanNotOpen
	}
	return l, err
}

const renewLoan = `
UPDATE loans
SET due_date = $2, renewal_count = renewal_count + 1, updated_at = now()
WHERE id = $1 AND status = 'borrowed'
RETURNING ` + loanColumns + `
`

type RenewLoanParams struct {
	ID      int32
	DueDate pgtype.Timestamp
}

// RenewLoan extends the due date of an open loan.
func (q *Queries) RenewLoan(ctx context.Context, arg RenewLoanParams) (Loan, error) {
	l, err := scanLoan(q.db.QueryRow(ctx, renewLoan, arg.ID, arg.DueDate))
	if err == pgx.ErrNoRows {
		return Loan{}, ErrLoanNotOpen
	}
	return l, err
}

const listUnreturnedLoansByBorrower = `
SELECT ` + loanColumns + `
FROM loans
WHERE borrower_id = $1 AND status <> 'returned'
ORDER BY borrow_date
`

// ListUnreturnedLoansByBorrower lists every loan of a borrower that has not
// ended in a return: open loans plus lost/damaged ones. Eligibility and the
// max-loans check both read this set.
func (q *Queries) ListUnreturnedLoansByBorrower(ctx context.Context, borrowerID int32) ([]Loan, error) {
	rows, err := q.db.Query(ctx, listUnreturnedLoansByBorrower, borrowerID)
	if err != nil {
		return nil, err
	}
	return collectLoans(rows)
}

const listOverdueLoans = `
SELECT ` + loanColumns + `
FROM loans
WHERE status = 'borrowed' AND due_date < $1
ORDER BY due_date
`

// ListOverdueLoans lists open loans whose due date lies before asOf. Overdue
// is never stored; this is the query-time view.
func (q *Queries) ListOverdueLoans(ctx context.Context, asOf pgtype.Timestamp) ([]Loan, error) {
	rows, err := q.db.Query(ctx, listOverdueLoans, asOf)
	if err != nil {
		return nil, err
	}
	return collectLoans(rows)
}

const hasOpenLoanForCopy = `
SELECT EXISTS (
	SELECT 1 FROM loans WHERE copy_id = $1 AND status = 'borrowed'
)
`

// HasOpenLoanForCopy reports whether the copy is currently lent out.
func (q *Queries) HasOpenLoanForCopy(ctx context.Context, copyID int32) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx, hasOpenLoanForCopy, copyID).Scan(&exists)
	return exists, err
}
