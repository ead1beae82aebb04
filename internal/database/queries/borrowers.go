package queries

import (
	"context"
)

const getBorrower = `
SELECT id, full_name, borrower_type, is_active, created_at, updated_at
FROM borrowers
WHERE id = $1
`

// GetBorrower fetches the circulation view of a borrower.
func (q *Queries) GetBorrower(ctx context.Context, id int32) (Borrower, error) {
	var b Borrower
	err := q.db.QueryRow(ctx, getBorrower, id).Scan(
		&b.ID,
		&b.FullName,
		&b.BorrowerType,
		&b.IsActive,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	return b, err
}
