package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/kibetrono/slms/internal/database/queries"
	"github.com/kibetrono/slms/internal/models"
)

// FineQuerier defines the database operations the fine engine needs.
type FineQuerier interface {
	GetFine(ctx context.Context, id int32) (queries.Fine, error)
	GetFineByLoan(ctx context.Context, loanID int32) (queries.Fine, error)
	GetLoan(ctx context.Context, id int32) (queries.Loan, error)
	GetBorrower(ctx context.Context, id int32) (queries.Borrower, error)
	UpsertFine(ctx context.Context, arg queries.UpsertFineParams) (queries.Fine, error)
	RecordFinePayment(ctx context.Context, arg queries.RecordFinePaymentParams) (queries.Fine, error)
	ListOutstandingFinesByBorrower(ctx context.Context, borrowerID int32) ([]queries.Fine, error)
}

// FineService computes and reconciles overdue penalties. A fine is a
// projection of (loan, rate, asOf): accrual is a pure function of the
// current time, and the stored amount is replaced on every recomputation.
type FineService struct {
	queries FineQuerier
	policy  CirculationPolicy
}

// NewFineService creates a fine service with the given policy.
func NewFineService(queries FineQuerier, policy CirculationPolicy) *FineService {
	return &FineService{
		queries: queries,
		policy:  policy,
	}
}

// Accrue computes the penalty owed on a loan as of asOf. Re-running it with
// the same asOf always yields the same amount; running it later on a still
// open loan yields a strictly larger one.
func Accrue(loan queries.Loan, dailyRate decimal.Decimal, asOf time.Time) decimal.Decimal {
	days := ComputeOverdueDays(loan, asOf)
	if days <= 0 {
		return decimal.Zero
	}
	return dailyRate.Mul(decimal.NewFromInt(int64(days)))
}

// RefreshForLoan upserts the fine row for an open overdue loan to the newly
// computed amount. For a loan that is not accruing (terminal, or within its
// period) the stored fine, if any, is returned untouched so a frozen amount
// survives loan closure.
func (s *FineService) RefreshForLoan(ctx context.Context, loan queries.Loan, asOf time.Time) (*models.FineResponse, error) {
	days := ComputeOverdueDays(loan, asOf)
	if days <= 0 {
		fine, err := s.queries.GetFineByLoan(ctx, loan.ID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, nil
			}
			return nil, fmt.Errorf("failed to get fine: %w", err)
		}
		return fineResponse(fine), nil
	}

	borrower, err := s.queries.GetBorrower(ctx, loan.BorrowerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get borrower: %w", err)
	}
	terms, err := s.policy.ForBorrowerType(borrower.BorrowerType)
	if err != nil {
		return nil, err
	}

	amount := Accrue(loan, terms.DailyFineRate, asOf)
	fine, err := s.queries.UpsertFine(ctx, queries.UpsertFineParams{
		LoanID: loan.ID,
		Amount: queries.NumericFromDecimal(amount),
		Reason: models.FineReasonOverdue,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert fine: %w", err)
	}
	return fineResponse(fine), nil
}

// RefreshFine recomputes the fine for a loan by id.
func (s *FineService) RefreshFine(ctx context.Context, loanID int32, asOf time.Time) (*models.FineResponse, error) {
	loan, err := s.queries.GetLoan(ctx, loanID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &models.NotFoundError{Entity: "loan", ID: loanID}
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return s.RefreshForLoan(ctx, loan, asOf)
}

// GetForLoan returns the fine tied to a loan, recomputing it first when the
// loan is still open and overdue so the caller never sees a stale amount.
func (s *FineService) GetForLoan(ctx context.Context, loanID int32, asOf time.Time) (*models.FineResponse, error) {
	loan, err := s.queries.GetLoan(ctx, loanID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &models.NotFoundError{Entity: "loan", ID: loanID}
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}

	if ComputeOverdueDays(loan, asOf) > 0 {
		return s.RefreshForLoan(ctx, loan, asOf)
	}

	fine, err := s.queries.GetFineByLoan(ctx, loanID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &models.NotFoundError{Entity: "fine for loan", ID: loanID}
		}
		return nil, fmt.Errorf("failed to get fine: %w", err)
	}
	return fineResponse(fine), nil
}

// RecordPayment applies a payment against a fine. A payment that exceeds
// the balance due is rejected outright, not clamped: silently clamping
// would hide operator mistakes.
func (s *FineService) RecordPayment(ctx context.Context, fineID int32, amount decimal.Decimal) (*models.FineResponse, error) {
	if !amount.IsPositive() {
		return nil, &models.ValidationError{Field: "amount", Message: "payment amount must be positive"}
	}

	fine, err := s.queries.GetFine(ctx, fineID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &models.NotFoundError{Entity: "fine", ID: fineID}
		}
		return nil, fmt.Errorf("failed to get fine: %w", err)
	}

	balance := queries.DecimalFromNumeric(fine.Amount).Sub(queries.DecimalFromNumeric(fine.AmountPaid))
	if amount.GreaterThan(balance) {
		return nil, &models.ValidationError{
			Field:   "amount",
			Message: fmt.Sprintf("payment %s exceeds balance due %s", amount.StringFixed(2), balance.StringFixed(2)),
		}
	}

	paid, err := s.queries.RecordFinePayment(ctx, queries.RecordFinePaymentParams{
		ID:     fineID,
		Amount: queries.NumericFromDecimal(amount),
	})
	if err != nil {
		if errors.Is(err, queries.ErrPaymentExceedsBalance) {
			// The balance moved under us between read and write.
			return nil, &models.ValidationError{Field: "amount", Message: "payment exceeds balance due"}
		}
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}
	return fineResponse(paid), nil
}

// ListOutstandingByBorrower lists a borrower's fines that still carry a
// balance.
func (s *FineService) ListOutstandingByBorrower(ctx context.Context, borrowerID int32) ([]models.FineResponse, error) {
	fines, err := s.queries.ListOutstandingFinesByBorrower(ctx, borrowerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list outstanding fines: %w", err)
	}

	responses := make([]models.FineResponse, 0, len(fines))
	for _, fine := range fines {
		responses = append(responses, *fineResponse(fine))
	}
	return responses, nil
}

func fineResponse(fine queries.Fine) *models.FineResponse {
	amount := queries.DecimalFromNumeric(fine.Amount)
	paid := queries.DecimalFromNumeric(fine.AmountPaid)
	return &models.FineResponse{
		ID:            fine.ID,
		LoanID:        fine.LoanID,
		Amount:        amount,
		AmountPaid:    paid,
		BalanceDue:    amount.Sub(paid),
		PaymentStatus: fine.PaymentStatus,
		Reason:        fine.Reason,
		CreatedAt:     fine.CreatedAt.Time,
		UpdatedAt:     fine.UpdatedAt.Time,
	}
}
