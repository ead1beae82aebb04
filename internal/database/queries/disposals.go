package queries

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const dialectPostgres = "postgres"

const disposalColumns = `id, copy_id, reason, description, librarian_id, disposed_at, fifo_priority, batch_id, status`

func scanDisposalRecord(row pgx.Row) (DisposalRecord, error) {
	var d DisposalRecord
	err := row.Scan(
		&d.ID,
		&d.CopyID,
		&d.Reason,
		&d.Description,
		&d.LibrarianID,
		&d.DisposedAt,
		&d.FifoPriority,
		&d.BatchID,
		&d.Status,
	)
	return d, err
}

type ListDisposalCandidatesParams struct {
	Cutoff time.Time
	Limit  uint
}

// buildDisposalCandidatesQuery assembles the candidate scan. The ascending
// acquisition-date order is the FIFO guarantee, not an incidental sort.
func buildDisposalCandidatesQuery(arg ListDisposalCandidatesParams) (string, []interface{}, error) {
	stmt := goqu.Dialect(dialectPostgres).
		From("copies").
		Select("id", "barcode", "book_id", "status", "acquisition_date", "created_at", "updated_at").
		Where(
			goqu.C("status").NotIn("disposed", "borrowed"),
			goqu.C("acquisition_date").Lte(arg.Cutoff),
			goqu.L(`NOT EXISTS (SELECT 1 FROM loans WHERE loans.copy_id = copies.id AND loans.status = 'borrowed')`),
		).
		Order(goqu.C("acquisition_date").Asc(), goqu.C("id").Asc())
	if arg.Limit > 0 {
		stmt = stmt.Limit(arg.Limit)
	}
	return stmt.Prepared(true).ToSQL()
}

// ListDisposalCandidates lists copies old enough to retire and not in active
// use, oldest acquisition first.
func (q *Queries) ListDisposalCandidates(ctx context.Context, arg ListDisposalCandidatesParams) ([]Copy, error) {
	sql, args, err := buildDisposalCandidatesQuery(arg)
	if err != nil {
		return nil, err
	}
	rows, err := q.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var copies []Copy
	for rows.Next() {
		c, err := scanCopy(rows)
		if err != nil {
			return nil, err
		}
		copies = append(copies, c)
	}
	return copies, rows.Err()
}

const countDisposalCandidates = `
SELECT count(*)
FROM copies
WHERE status NOT IN ('disposed', 'borrowed')
	AND acquisition_date <= $1
	AND NOT EXISTS (SELECT 1 FROM loans WHERE loans.copy_id = copies.id AND loans.status = 'borrowed')
`

// CountDisposalCandidates counts copies currently eligible for disposal.
func (q *Queries) CountDisposalCandidates(ctx context.Context, cutoff pgtype.Date) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countDisposalCandidates, cutoff).Scan(&count)
	return count, err
}

const disposeCopy = `
WITH claimed AS (
	UPDATE copies
	SET status = 'disposed', updated_at = now()
	WHERE id = $1 AND status NOT IN ('disposed', 'borrowed')
	RETURNING id
)
INSERT INTO disposal_records (copy_id, reason, description, librarian_id, disposed_at, fifo_priority, batch_id, status)
SELECT claimed.id, $2, $3, $4, $5, $6, $7, 'completed'
FROM claimed
RETURNING ` + disposalColumns + `
`

type DisposeCopyParams struct {
	CopyID       int32
	Reason       string
	Description  pgtype.Text
	LibrarianID  pgtype.Int4
	DisposedAt   pgtype.Timestamp
	FifoPriority pgtype.Int4
	BatchID      pgtype.UUID
}

// DisposeCopy retires a copy and writes its audit entry in one statement. A
// copy that is disposed already, or currently borrowed, yields
// ErrCopyNotTransitionable and no record.
func (q *Queries) DisposeCopy(ctx context.Context, arg DisposeCopyParams) (DisposalRecord, error) {
	d, err := scanDisposalRecord(q.db.QueryRow(ctx, disposeCopy,
		arg.CopyID,
		arg.Reason,
		arg.Description,
		arg.LibrarianID,
		arg.DisposedAt,
		arg.FifoPriority,
		arg.BatchID,
	))
	if err == pgx.ErrNoRows {
		return DisposalRecord{}, ErrCopyNotTransitionable
	}
	return d, err
}

const createDisposalRecord = `
INSERT INTO disposal_records (copy_id, reason, description, librarian_id, disposed_at, status)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + disposalColumns + `
`

type CreateDisposalRecordParams struct {
	CopyID      int32
	Reason      string
	Description pgtype.Text
	LibrarianID pgtype.Int4
	DisposedAt  pgtype.Timestamp
	Status      string
}

// CreateDisposalRecord writes a disposal audit entry without touching the
// copy row. Loss handling uses it after the loan closure has already moved
// the copy out of circulation.
func (q *Queries) CreateDisposalRecord(ctx context.Context, arg CreateDisposalRecordParams) (DisposalRecord, error) {
	return scanDisposalRecord(q.db.QueryRow(ctx, createDisposalRecord,
		arg.CopyID,
		arg.Reason,
		arg.Description,
		arg.LibrarianID,
		arg.DisposedAt,
		arg.Status,
	))
}

const listDisposalRecordsByBatch = `
SELECT ` + disposalColumns + `
FROM disposal_records
WHERE batch_id = $1
ORDER BY fifo_priority
`

// ListDisposalRecordsByBatch lists the audit entries of one auto-disposal
// run in processing order.
func (q *Queries) ListDisposalRecordsByBatch(ctx context.Context, batchID pgtype.UUID) ([]DisposalRecord, error) {
	rows, err := q.db.Query(ctx, listDisposalRecordsByBatch, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []DisposalRecord
	for rows.Next() {
		d, err := scanDisposalRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, d)
	}
	return records, rows.Err()
}
