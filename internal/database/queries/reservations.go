package queries

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const reservationColumns = `id, borrower_id, book_id, reserved_at, expires_at, queue_position,
	status, notified, cancel_reason, fulfilled_at, created_at, updated_at`

func scanReservation(row pgx.Row) (Reservation, error) {
	var r Reservation
	err := row.Scan(
		&r.ID,
		&r.BorrowerID,
		&r.BookID,
		&r.ReservedAt,
		&r.ExpiresAt,
		&r.QueuePosition,
		&r.Status,
		&r.Notified,
		&r.CancelReason,
		&r.FulfilledAt,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	return r, err
}

func collectReservations(rows pgx.Rows) ([]Reservation, error) {
	defer rows.Close()
	var reservations []Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, r)
	}
	return reservations, rows.Err()
}

const getReservation = `
SELECT ` + reservationColumns + `
FROM reservations
WHERE id = $1
`

// GetReservation fetches one reservation.
func (q *Queries) GetReservation(ctx context.Context, id int32) (Reservation, error) {
	return scanReservation(q.db.QueryRow(ctx, getReservation, id))
}

const getActiveReservationForBorrowerAndBook = `
SELECT ` + reservationColumns + `
FROM reservations
WHERE borrower_id = $1 AND book_id = $2 AND status = 'active'
`

type GetActiveReservationForBorrowerAndBookParams struct {
	BorrowerID int32
	BookID     int32
}

// GetActiveReservationForBorrowerAndBook fetches a borrower's live
// reservation on a title, if any. Used as the duplicate-reservation guard.
func (q *Queries) GetActiveReservationForBorrowerAndBook(ctx context.Context, arg GetActiveReservationForBorrowerAndBookParams) (Reservation, error) {
	return scanReservation(q.db.QueryRow(ctx, getActiveReservationForBorrowerAndBook, arg.BorrowerID, arg.BookID))
}

const countActiveReservationsByBorrower = `
SELECT count(*)
FROM reservations
WHERE borrower_id = $1 AND status = 'active'
`

// CountActiveReservationsByBorrower counts a borrower's live reservations.
func (q *Queries) CountActiveReservationsByBorrower(ctx context.Context, borrowerID int32) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countActiveReservationsByBorrower, borrowerID).Scan(&count)
	return count, err
}

const listActiveReservationsByBook = `
SELECT ` + reservationColumns + `
FROM reservations
WHERE book_id = $1 AND status = 'active'
ORDER BY queue_position
`

// ListActiveReservationsByBook lists the waiting list for a title in queue
// order.
func (q *Queries) ListActiveReservationsByBook(ctx context.Context, bookID int32) ([]Reservation, error) {
	rows, err := q.db.Query(ctx, listActiveReservationsByBook, bookID)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

const nextReservationForBook = `
SELECT ` + reservationColumns + `
FROM reservations
WHERE book_id = $1 AND status = 'active'
ORDER BY queue_position
LIMIT 1
`

// NextReservationForBook fetches the head of a title's waiting list.
func (q *Queries) NextReservationForBook(ctx context.Context, bookID int32) (Reservation, error) {
	return scanReservation(q.db.QueryRow(ctx, nextReservationForBook, bookID))
}

const listExpiredActiveReservations = `
SELECT ` + reservationColumns + `
FROM reservations
WHERE status = 'active' AND expires_at < $1
ORDER BY expires_at
`

// ListExpiredActiveReservations lists reservations whose stored status is
// still active but whose hold window has lapsed as of asOf.
func (q *Queries) ListExpiredActiveReservations(ctx context.Context, asOf pgtype.Timestamp) ([]Reservation, error) {
	rows, err := q.db.Query(ctx, listExpiredActiveReservations, asOf)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

const markReservationNotified = `
UPDATE reservations
SET notified = true, updated_at = now()
WHERE id = $1
RETURNING ` + reservationColumns + `
`

// MarkReservationNotified flags that the requester has been told their copy
// is ready. The notification sink itself lives outside circulation.
func (q *Queries) MarkReservationNotified(ctx context.Context, id int32) (Reservation, error) {
	return scanReservation(q.db.QueryRow(ctx, markReservationNotified, id))
}
