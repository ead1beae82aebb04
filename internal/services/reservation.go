package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/kibetrono/slms/internal/database/queries"
	"github.com/kibetrono/slms/internal/models"
)

// ReservationQuerier defines the database operations the reservation queue
// needs. Position assignment, removal compaction and fulfillment are
// transactional composites serialized per title in the store.
type ReservationQuerier interface {
	GetReservation(ctx context.Context, id int32) (queries.Reservation, error)
	GetBorrower(ctx context.Context, id int32) (queries.Borrower, error)
	GetCopy(ctx context.Context, id int32) (queries.Copy, error)
	CountAvailableCopiesByBook(ctx context.Context, bookID int32) (int64, error)
	CountActiveReservationsByBorrower(ctx context.Context, borrowerID int32) (int64, error)
	GetActiveReservationForBorrowerAndBook(ctx context.Context, arg queries.GetActiveReservationForBorrowerAndBookParams) (queries.Reservation, error)
	ListActiveReservationsByBook(ctx context.Context, bookID int32) ([]queries.Reservation, error)
	NextReservationForBook(ctx context.Context, bookID int32) (queries.Reservation, error)
	ListExpiredActiveReservations(ctx context.Context, asOf pgtype.Timestamp) ([]queries.Reservation, error)
	MarkReservationNotified(ctx context.Context, id int32) (queries.Reservation, error)
	CreateReservation(ctx context.Context, arg queries.CreateReservationParams) (queries.Reservation, error)
	RemoveReservation(ctx context.Context, arg queries.RemoveReservationParams) (queries.Reservation, error)
	FulfillReservation(ctx context.Context, arg queries.FulfillReservationParams) (queries.Loan, error)
}

// EligibilityChecker is the borrow ledger's global per-borrower check,
// consumed here so fulfillment applies the same rules as a plain checkout.
type EligibilityChecker interface {
	CheckEligibility(ctx context.Context, borrowerID int32, asOf time.Time) error
}

// ReservationService maintains the per-title waiting lists. Active
// positions on one title are always a contiguous ascending sequence
// starting at 1; every removal compacts the remainder in the same
// transaction.
type ReservationService struct {
	queries     ReservationQuerier
	eligibility EligibilityChecker
	policy      CirculationPolicy
}

// NewReservationService creates a reservation service with the given policy.
func NewReservationService(queries ReservationQuerier, eligibility EligibilityChecker, policy CirculationPolicy) *ReservationService {
	return &ReservationService{
		queries:     queries,
		eligibility: eligibility,
		policy:      policy,
	}
}

// Reserve appends a borrower to the waiting list for a title. The new
// reservation takes position max+1; the hold window runs from asOf.
func (s *ReservationService) Reserve(ctx context.Context, borrowerID, bookID int32, asOf time.Time) (*models.ReservationResponse, error) {
	borrower, err := s.queries.GetBorrower(ctx, borrowerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &models.NotFoundError{Entity: "borrower", ID: borrowerID}
		}
		return nil, fmt.Errorf("failed to get borrower: %w", err)
	}
	if !borrower.IsActive.Bool {
		return nil, &models.ValidationError{Field: "borrower_id", Message: "borrower account is not active"}
	}

	available, err := s.queries.CountAvailableCopiesByBook(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to count available copies: %w", err)
	}
	if available > 0 {
		return nil, &models.ValidationError{
			Field:   "book_id",
			Message: "title has an available copy, borrow it instead of reserving",
		}
	}

	count, err := s.queries.CountActiveReservationsByBorrower(ctx, borrowerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count reservations: %w", err)
	}
	if count >= int64(s.policy.MaxReservations) {
		return nil, &models.ValidationError{
			Field:   "borrower_id",
			Message: fmt.Sprintf("borrower has reached the maximum number of reservations (%d)", s.policy.MaxReservations),
		}
	}

	_, err = s.queries.GetActiveReservationForBorrowerAndBook(ctx, queries.GetActiveReservationForBorrowerAndBookParams{
		BorrowerID: borrowerID,
		BookID:     bookID,
	})
	if err == nil {
		return nil, &models.ValidationError{Field: "book_id", Message: "borrower already has this title reserved"}
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to check existing reservation: %w", err)
	}

	reservation, err := s.queries.CreateReservation(ctx, queries.CreateReservationParams{
		BorrowerID: borrowerID,
		BookID:     bookID,
		ReservedAt: pgtype.Timestamp{Time: asOf, Valid: true},
		ExpiresAt:  pgtype.Timestamp{Time: asOf.AddDate(0, 0, s.policy.ReservationHoldDays), Valid: true},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create reservation: %w", err)
	}

	return reservationResponse(reservation, asOf), nil
}

// Fulfill converts an active reservation into a loan on the given copy. A
// reservation whose hold window has lapsed is rejected even though its
// stored status is still active, and the requester must pass the same
// eligibility check as a plain checkout.
func (s *ReservationService) Fulfill(ctx context.Context, reservationID, copyID, librarianID int32, asOf time.Time) (*models.LoanResponse, error) {
	reservation, err := s.getActiveReservation(ctx, reservationID, asOf)
	if err != nil {
		return nil, err
	}

	if err := s.eligibility.CheckEligibility(ctx, reservation.BorrowerID, asOf); err != nil {
		return nil, err
	}

	cp, err := s.queries.GetCopy(ctx, copyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &models.NotFoundError{Entity: "copy", ID: copyID}
		}
		return nil, fmt.Errorf("failed to get copy: %w", err)
	}
	if cp.Status != string(models.CopyStatusAvailable) {
		return nil, &models.StateConflictError{
			Entity:   "copy",
			ID:       copyID,
			Current:  cp.Status,
			Expected: string(models.CopyStatusAvailable),
		}
	}
	if cp.BookID != reservation.BookID {
		return nil, &models.ValidationError{
			Field:   "copy_id",
			Message: fmt.Sprintf("copy %d does not belong to reserved title %d", copyID, reservation.BookID),
		}
	}

	borrower, err := s.queries.GetBorrower(ctx, reservation.BorrowerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get borrower: %w", err)
	}
	terms, err := s.policy.ForBorrowerType(borrower.BorrowerType)
	if err != nil {
		return nil, err
	}

	loan, err := s.queries.FulfillReservation(ctx, queries.FulfillReservationParams{
		ReservationID: reservationID,
		CopyID:        copyID,
		BorrowDate:    pgtype.Timestamp{Time: asOf, Valid: true},
		DueDate:       pgtype.Timestamp{Time: asOf.AddDate(0, 0, terms.LoanPeriodDays), Valid: true},
		LibrarianID:   pgtype.Int4{Int32: librarianID, Valid: true},
	})
	if err != nil {
		switch {
		case errors.Is(err, queries.ErrReservationNotActive):
			return nil, s.reservationConflict(ctx, reservationID)
		case errors.Is(err, queries.ErrCopyNotAvailable):
			return nil, &models.StateConflictError{
				Entity:   "copy",
				ID:       copyID,
				Current:  "claimed by another transaction",
				Expected: string(models.CopyStatusAvailable),
			}
		case errors.Is(err, pgx.ErrNoRows):
			return nil, &models.NotFoundError{Entity: "reservation", ID: reservationID}
		}
		return nil, fmt.Errorf("failed to fulfill reservation: %w", err)
	}

	return loanResponse(loan, asOf), nil
}

// Cancel removes a reservation from the queue. A reason is mandatory; the
// positions behind the cancelled entry close up in the same transaction.
func (s *ReservationService) Cancel(ctx context.Context, reservationID int32, reason string, asOf time.Time) (*models.ReservationResponse, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, &models.ValidationError{Field: "reason", Message: "cancellation reason is required"}
	}

	removed, err := s.queries.RemoveReservation(ctx, queries.RemoveReservationParams{
		ID:           reservationID,
		Status:       models.ReservationStatusCancelled,
		CancelReason: pgtype.Text{String: reason, Valid: true},
	})
	if err != nil {
		if errors.Is(err, queries.ErrReservationNotActive) {
			return nil, s.reservationConflict(ctx, reservationID)
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &models.NotFoundError{Entity: "reservation", ID: reservationID}
		}
		return nil, fmt.Errorf("failed to cancel reservation: %w", err)
	}

	return reservationResponse(removed, asOf), nil
}

// ExpireReservations finalizes every active reservation whose hold window
// has lapsed, compacting each queue as it goes. The derived-expired display
// does not depend on this sweep; it only settles the stored rows.
func (s *ReservationService) ExpireReservations(ctx context.Context, asOf time.Time) (int, error) {
	expired, err := s.queries.ListExpiredActiveReservations(ctx, pgtype.Timestamp{Time: asOf, Valid: true})
	if err != nil {
		return 0, fmt.Errorf("failed to list expired reservations: %w", err)
	}

	count := 0
	for _, reservation := range expired {
		_, err := s.queries.RemoveReservation(ctx, queries.RemoveReservationParams{
			ID:     reservation.ID,
			Status: models.ReservationStatusExpired,
		})
		if err != nil {
			if errors.Is(err, queries.ErrReservationNotActive) {
				// Raced with a fulfillment or cancellation; nothing to settle.
				continue
			}
			return count, fmt.Errorf("failed to expire reservation %d: %w", reservation.ID, err)
		}
		count++
	}
	return count, nil
}

// GetReservation returns one reservation with its derived expiry view.
func (s *ReservationService) GetReservation(ctx context.Context, reservationID int32, asOf time.Time) (*models.ReservationResponse, error) {
	reservation, err := s.queries.GetReservation(ctx, reservationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &models.NotFoundError{Entity: "reservation", ID: reservationID}
		}
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return reservationResponse(reservation, asOf), nil
}

// Queue returns the waiting list for a title in position order.
func (s *ReservationService) Queue(ctx context.Context, bookID int32, asOf time.Time) (*models.ReservationQueueResponse, error) {
	reservations, err := s.queries.ListActiveReservationsByBook(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}

	responses := make([]models.ReservationResponse, 0, len(reservations))
	for _, reservation := range reservations {
		responses = append(responses, *reservationResponse(reservation, asOf))
	}
	return &models.ReservationQueueResponse{
		BookID:       bookID,
		QueueLength:  len(responses),
		Reservations: responses,
	}, nil
}

// NextInQueue returns the head of a title's waiting list, or nil when the
// list is empty.
func (s *ReservationService) NextInQueue(ctx context.Context, bookID int32, asOf time.Time) (*models.ReservationResponse, error) {
	reservation, err := s.queries.NextReservationForBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get next reservation: %w", err)
	}
	return reservationResponse(reservation, asOf), nil
}

// MarkNotified flags the reservation's requester as notified that a copy is
// waiting for them.
func (s *ReservationService) MarkNotified(ctx context.Context, reservationID int32, asOf time.Time) (*models.ReservationResponse, error) {
	reservation, err := s.queries.MarkReservationNotified(ctx, reservationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &models.NotFoundError{Entity: "reservation", ID: reservationID}
		}
		return nil, fmt.Errorf("failed to mark reservation notified: %w", err)
	}
	return reservationResponse(reservation, asOf), nil
}

// getActiveReservation loads a reservation and rejects it unless it is
// stored active and inside its hold window as of asOf.
func (s *ReservationService) getActiveReservation(ctx context.Context, reservationID int32, asOf time.Time) (queries.Reservation, error) {
	reservation, err := s.queries.GetReservation(ctx, reservationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return queries.Reservation{}, &models.NotFoundError{Entity: "reservation", ID: reservationID}
		}
		return queries.Reservation{}, fmt.Errorf("failed to get reservation: %w", err)
	}
	if reservation.Status != models.ReservationStatusActive {
		return queries.Reservation{}, &models.StateConflictError{
			Entity:   "reservation",
			ID:       reservationID,
			Current:  reservation.Status,
			Expected: models.ReservationStatusActive,
		}
	}
	if reservation.ExpiresAt.Time.Before(asOf) {
		return queries.Reservation{}, &models.StateConflictError{
			Entity:   "reservation",
			ID:       reservationID,
			Current:  models.ReservationStatusExpired,
			Expected: models.ReservationStatusActive,
		}
	}
	return reservation, nil
}

func (s *ReservationService) reservationConflict(ctx context.Context, reservationID int32) error {
	current := "unknown"
	if reservation, err := s.queries.GetReservation(ctx, reservationID); err == nil {
		current = reservation.Status
	}
	return &models.StateConflictError{
		Entity:   "reservation",
		ID:       reservationID,
		Current:  current,
		Expected: models.ReservationStatusActive,
	}
}

// reservationResponse converts a reservation row to its response. A stored
// active reservation past its expiry date is displayed as expired,
// mirroring the loan derived-overdue view.
func reservationResponse(reservation queries.Reservation, asOf time.Time) *models.ReservationResponse {
	response := &models.ReservationResponse{
		ID:           reservation.ID,
		BorrowerID:   reservation.BorrowerID,
		BookID:       reservation.BookID,
		ReservedAt:   reservation.ReservedAt.Time,
		ExpiresAt:    reservation.ExpiresAt.Time,
		Status:       reservation.Status,
		Notified:     reservation.Notified.Bool,
		CancelReason: reservation.CancelReason.String,
		CreatedAt:    reservation.CreatedAt.Time,
		UpdatedAt:    reservation.UpdatedAt.Time,
	}

	if reservation.QueuePosition.Valid {
		response.QueuePosition = int(reservation.QueuePosition.Int32)
	}
	if reservation.Status == models.ReservationStatusActive && reservation.ExpiresAt.Time.Before(asOf) {
		response.Status = models.ReservationStatusExpired
	}
	if reservation.FulfilledAt.Valid {
		response.FulfilledAt = &reservation.FulfilledAt.Time
	}
	return response
}
