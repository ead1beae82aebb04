package queries

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/kibetrono/slms/internal/models"
)

const copyColumns = `id, barcode, book_id, status, acquisition_date, created_at, updated_at`

func scanCopy(row pgx.Row) (Copy, error) {
	var c Copy
	err := row.Scan(
		&c.ID,
		&c.Barcode,
		&c.BookID,
		&c.Status,
		&c.AcquisitionDate,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	return c, err
}

const getCopy = `
SELECT ` + copyColumns + `
FROM copies
WHERE id = $1
`

// GetCopy fetches one catalog copy.
func (q *Queries) GetCopy(ctx context.Context, id int32) (Copy, error) {
	return scanCopy(q.db.QueryRow(ctx, getCopy, id))
}

const setCopyStatus = `
UPDATE copies
SET status = $3, updated_at = now()
WHERE id = $1 AND status = $2
RETURNING ` + copyColumns + `
`

type SetCopyStatusParams struct {
	ID         int32
	FromStatus string
	ToStatus   string
}

// SetCopyStatus moves a copy between statuses. The requested pair must be a
// legal transition, and the update is conditional on the expected current
// status so concurrent writers cannot both win; an illegal pair or a copy
// that has moved yields ErrCopyNotTransitionable.
func (q *Queries) SetCopyStatus(ctx context.Context, arg SetCopyStatusParams) (Copy, error) {
	if !models.CopyStatus(arg.FromStatus).CanTransition(models.CopyStatus(arg.ToStatus)) {
		return Copy{}, ErrCopyNotTransitionable
	}
	c, err := scanCopy(q.db.QueryRow(ctx, setCopyStatus, arg.ID, arg.FromStatus, arg.ToStatus))
	if err == pgx.ErrNoRows {
		return Copy{}, ErrCopyNotTransitionable
	}
	return c, err
}

const countAvailableCopiesByBook = `
SELECT count(*)
FROM copies
WHERE book_id = $1 AND status = 'available'
`

// CountAvailableCopiesByBook counts copies of a title that can be lent now.
func (q *Queries) CountAvailableCopiesByBook(ctx context.Context, bookID int32) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countAvailableCopiesByBook, bookID).Scan(&count)
	return count, err
}
