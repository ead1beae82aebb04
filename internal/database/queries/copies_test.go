package queries

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kibetrono/slms/internal/models"
)

func TestSetCopyStatus_RejectsIllegalTransition(t *testing.T) {
	// The guard fires before any statement is issued, so no db is needed.
	q := New(nil)
	ctx := context.Background()

	tests := []struct {
		name string
		from string
		to   string
	}{
		{"disposed is terminal", string(models.CopyStatusDisposed), string(models.CopyStatusAvailable)},
		{"maintenance cannot be borrowed", string(models.CopyStatusMaintenance), string(models.CopyStatusBorrowed)},
		{"no self transition", string(models.CopyStatusAvailable), string(models.CopyStatusAvailable)},
		{"unknown status", "lost", string(models.CopyStatusAvailable)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := q.SetCopyStatus(ctx, SetCopyStatusParams{
				ID:         1,
				FromStatus: tt.from,
				ToStatus:   tt.to,
			})
			assert.ErrorIs(t, err, ErrCopyNotTransitionable)
		})
	}
}

func TestCloseLoan_RejectsIllegalCopyTarget(t *testing.T) {
	q := New(nil)
	ctx := context.Background()

	// An open loan's copy is borrowed; reserved is not a legal target.
	_, err := q.CloseLoan(ctx, CloseLoanParams{
		ID:         1,
		Status:     models.LoanStatusReturned,
		CopyStatus: string(models.CopyStatusReserved),
	})
	assert.ErrorIs(t, err, ErrCopyNotTransitionable)
}
