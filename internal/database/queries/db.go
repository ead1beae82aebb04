package queries

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the minimal query surface shared by a pool and a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// New creates a Queries bound to db.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// Queries executes single-statement operations against db.
type Queries struct {
	db DBTX
}

// WithTx returns a Queries bound to tx.
func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

// Sentinel errors for conditional updates that found the row in the wrong
// state. The caller decides how to surface the conflict.
var (
	ErrCopyNotAvailable      = errors.New("copy is not available")
	ErrCopyNotTransitionable = errors.New("copy status has moved")
	ErrLoanNotOpen           = errors.New("loan is not open")
	ErrReservationNotActive  = errors.New("reservation is not active")
	ErrPaymentExceedsBalance = errors.New("payment exceeds fine balance")
)
