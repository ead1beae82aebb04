package queries

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLStore combines single-statement queries with the multi-statement
// operations that need an explicit transaction.
type SQLStore struct {
	*Queries
	pool *pgxpool.Pool
}

// NewStore creates a SQLStore backed by pool.
func NewStore(pool *pgxpool.Pool) *SQLStore {
	return &SQLStore{
		Queries: New(pool),
		pool:    pool,
	}
}

func (s *SQLStore) execTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && rbErr != pgx.ErrTxClosed {
			return fmt.Errorf("tx error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}
	return tx.Commit(ctx)
}

// lockBookQueue serializes queue mutations per title. Position assignment
// and compaction both run under this lock, so two concurrent reservations on
// one title can never receive the same position.
func lockBookQueue(ctx context.Context, tx pgx.Tx, bookID int32) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(bookID))
	return err
}

type CreateReservationParams struct {
	BorrowerID int32
	BookID     int32
	ReservedAt pgtype.Timestamp
	ExpiresAt  pgtype.Timestamp
}

const insertReservationAtTail = `
INSERT INTO reservations (borrower_id, book_id, reserved_at, expires_at, queue_position, status, notified)
VALUES ($1, $2, $3, $4, $5, 'active', false)
RETURNING ` + reservationColumns + `
`

// CreateReservation appends a reservation to the tail of the title's queue.
func (s *SQLStore) CreateReservation(ctx context.Context, arg CreateReservationParams) (Reservation, error) {
	var reservation Reservation
	err := s.execTx(ctx, func(tx pgx.Tx) error {
		if err := lockBookQueue(ctx, tx, arg.BookID); err != nil {
			return err
		}

		var maxPosition int32
		err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(queue_position), 0) FROM reservations WHERE book_id = $1 AND status = 'active'`,
			arg.BookID,
		).Scan(&maxPosition)
		if err != nil {
			return err
		}

		reservation, err = scanReservation(tx.QueryRow(ctx, insertReservationAtTail,
			arg.BorrowerID,
			arg.BookID,
			arg.ReservedAt,
			arg.ExpiresAt,
			maxPosition+1,
		))
		return err
	})
	return reservation, err
}

type RemoveReservationParams struct {
	ID           int32
	Status       string
	CancelReason pgtype.Text
}

const compactQueuePositions = `
UPDATE reservations
SET queue_position = queue_position - 1, updated_at = now()
WHERE book_id = $1 AND status = 'active' AND queue_position > $2
`

// RemoveReservation moves an active reservation to a terminal status and
// closes the gap it leaves: every active reservation behind it on the same
// title steps forward one position, in the same transaction.
func (s *SQLStore) RemoveReservation(ctx context.Context, arg RemoveReservationParams) (Reservation, error) {
	var reservation Reservation
	err := s.execTx(ctx, func(tx pgx.Tx) error {
		current, err := scanReservation(tx.QueryRow(ctx,
			`SELECT `+reservationColumns+` FROM reservations WHERE id = $1 FOR UPDATE`, arg.ID))
		if err != nil {
			return err
		}
		if err := lockBookQueue(ctx, tx, current.BookID); err != nil {
			return err
		}
		if current.Status != "active" {
			return ErrReservationNotActive
		}

		reservation, err = scanReservation(tx.QueryRow(ctx,
			`UPDATE reservations SET status = $2, cancel_reason = $3, updated_at = now()
			 WHERE id = $1 RETURNING `+reservationColumns,
			arg.ID, arg.Status, arg.CancelReason))
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, compactQueuePositions, current.BookID, current.QueuePosition.Int32)
		return err
	})
	return reservation, err
}

type FulfillReservationParams struct {
	ReservationID int32
	CopyID        int32
	BorrowDate    pgtype.Timestamp
	DueDate       pgtype.Timestamp
	LibrarianID   pgtype.Int4
}

// FulfillReservation converts an active reservation into a loan: the copy is
// claimed, the loan created, the reservation finalized and the queue
// compacted in one transaction. The claimed copy must belong to the reserved
// title and still be available, otherwise nothing is committed.
func (s *SQLStore) FulfillReservation(ctx context.Context, arg FulfillReservationParams) (Loan, error) {
	var loan Loan
	err := s.execTx(ctx, func(tx pgx.Tx) error {
		reservation, err := scanReservation(tx.QueryRow(ctx,
			`SELECT `+reservationColumns+` FROM reservations WHERE id = $1 FOR UPDATE`, arg.ReservationID))
		if err != nil {
			return err
		}
		if err := lockBookQueue(ctx, tx, reservation.BookID); err != nil {
			return err
		}
		if reservation.Status != "active" {
			return ErrReservationNotActive
		}

		var claimedID int32
		err = tx.QueryRow(ctx,
			`UPDATE copies SET status = 'borrowed', updated_at = now()
			 WHERE id = $1 AND book_id = $2 AND status = 'available'
			 RETURNING id`,
			arg.CopyID, reservation.BookID,
		).Scan(&claimedID)
		if err == pgx.ErrNoRows {
			return ErrCopyNotAvailable
		}
		if err != nil {
			return err
		}

		loan, err = scanLoan(tx.QueryRow(ctx,
			`INSERT INTO loans (borrower_id, copy_id, borrow_date, due_date, status, renewal_count, librarian_id)
			 VALUES ($1, $2, $3, $4, 'borrowed', 0, $5)
			 RETURNING `+loanColumns,
			reservation.BorrowerID, claimedID, arg.BorrowDate, arg.DueDate, arg.LibrarianID))
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE reservations SET status = 'fulfilled', fulfilled_at = $2, updated_at = now() WHERE id = $1`,
			arg.ReservationID, arg.BorrowDate)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, compactQueuePositions, reservation.BookID, reservation.QueuePosition.Int32)
		return err
	})
	return loan, err
}
