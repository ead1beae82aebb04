package queries

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStore connects to the database named by DATABASE_URL and applies
// the circulation schema. Integration tests skip when no database is
// configured.
func setupTestStore(t *testing.T) *SQLStore {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set, skipping database integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, os.Getenv("DATABASE_URL"))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile("../migrations/001_circulation.sql")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(schema))
	require.NoError(t, err)

	cleanupQueueTestData(t, pool)
	t.Cleanup(func() { cleanupQueueTestData(t, pool) })

	return NewStore(pool)
}

func cleanupQueueTestData(t *testing.T, pool *pgxpool.Pool) {
	ctx := context.Background()

	// Clean test data in reverse dependency order
	_, _ = pool.Exec(ctx, "DELETE FROM reservations WHERE borrower_id IN (SELECT id FROM borrowers WHERE full_name LIKE 'QTEST %')")
	_, _ = pool.Exec(ctx, "DELETE FROM loans WHERE borrower_id IN (SELECT id FROM borrowers WHERE full_name LIKE 'QTEST %')")
	_, _ = pool.Exec(ctx, "DELETE FROM copies WHERE barcode LIKE 'QTEST-%'")
	_, _ = pool.Exec(ctx, "DELETE FROM books WHERE title LIKE 'QTEST %'")
	_, _ = pool.Exec(ctx, "DELETE FROM borrowers WHERE full_name LIKE 'QTEST %'")
}

func createQueueTestBorrower(t *testing.T, store *SQLStore, name string) int32 {
	var id int32
	err := store.pool.QueryRow(context.Background(),
		`INSERT INTO borrowers (full_name, borrower_type, is_active) VALUES ($1, 'student', true) RETURNING id`,
		"QTEST "+name,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func createQueueTestBook(t *testing.T, store *SQLStore, title string) int32 {
	var id int32
	err := store.pool.QueryRow(context.Background(),
		`INSERT INTO books (title, author) VALUES ($1, 'QTEST Author') RETURNING id`,
		"QTEST "+title,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func createQueueTestCopy(t *testing.T, store *SQLStore, bookID int32, barcode, status string) int32 {
	var id int32
	err := store.pool.QueryRow(context.Background(),
		`INSERT INTO copies (barcode, book_id, status, acquisition_date) VALUES ($1, $2, $3, '2015-01-01') RETURNING id`,
		"QTEST-"+barcode, bookID, status,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func activePositions(t *testing.T, store *SQLStore, bookID int32) []int32 {
	reservations, err := store.ListActiveReservationsByBook(context.Background(), bookID)
	require.NoError(t, err)
	positions := make([]int32, 0, len(reservations))
	for _, r := range reservations {
		positions = append(positions, r.QueuePosition.Int32)
	}
	return positions
}

// Positions of the active reservations on one title must stay {1..N} with no
// gaps through any sequence of reserve, cancel and fulfill, because position
// assignment and removal compaction run in the same transaction.
func TestReservationQueue_PositionsStayContiguous(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	book := createQueueTestBook(t, store, "Contiguity")
	// The only copy is out, so the title is reservable.
	createQueueTestCopy(t, store, book, "C1", "borrowed")

	borrowers := []int32{
		createQueueTestBorrower(t, store, "Amina"),
		createQueueTestBorrower(t, store, "Brian"),
		createQueueTestBorrower(t, store, "Chebet"),
		createQueueTestBorrower(t, store, "Daudi"),
	}

	reservations := make([]Reservation, 0, len(borrowers))
	for _, borrowerID := range borrowers {
		r, err := store.CreateReservation(ctx, CreateReservationParams{
			BorrowerID: borrowerID,
			BookID:     book,
			ReservedAt: pgtype.Timestamp{Time: now, Valid: true},
			ExpiresAt:  pgtype.Timestamp{Time: now.AddDate(0, 0, 7), Valid: true},
		})
		require.NoError(t, err)
		reservations = append(reservations, r)
	}
	assert.Equal(t, []int32{1, 2, 3, 4}, activePositions(t, store, book))

	// Cancel the second in line; everyone behind steps forward.
	_, err := store.RemoveReservation(ctx, RemoveReservationParams{
		ID:           reservations[1].ID,
		Status:       "cancelled",
		CancelReason: pgtype.Text{String: "changed their mind", Valid: true},
	})
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2, 3}, activePositions(t, store, book))

	remaining, err := store.ListActiveReservationsByBook(ctx, book)
	require.NoError(t, err)
	require.Len(t, remaining, 3)
	assert.Equal(t, borrowers[0], remaining[0].BorrowerID)
	assert.Equal(t, borrowers[2], remaining[1].BorrowerID)
	assert.Equal(t, borrowers[3], remaining[2].BorrowerID)

	// Fulfill the head of the queue onto a returned copy.
	copyID := createQueueTestCopy(t, store, book, "C2", "available")
	loan, err := store.FulfillReservation(ctx, FulfillReservationParams{
		ReservationID: remaining[0].ID,
		CopyID:        copyID,
		BorrowDate:    pgtype.Timestamp{Time: now, Valid: true},
		DueDate:       pgtype.Timestamp{Time: now.AddDate(0, 0, 14), Valid: true},
	})
	require.NoError(t, err)
	assert.Equal(t, borrowers[0], loan.BorrowerID)
	assert.Equal(t, copyID, loan.CopyID)
	assert.Equal(t, []int32{1, 2}, activePositions(t, store, book))

	claimed, err := store.GetCopy(ctx, copyID)
	require.NoError(t, err)
	assert.Equal(t, "borrowed", claimed.Status)

	// A terminal reservation cannot be removed again.
	_, err = store.RemoveReservation(ctx, RemoveReservationParams{
		ID:     reservations[1].ID,
		Status: "expired",
	})
	assert.ErrorIs(t, err, ErrReservationNotActive)
	assert.Equal(t, []int32{1, 2}, activePositions(t, store, book))
}
