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

// BorrowQuerier defines the database operations the borrow ledger needs.
type BorrowQuerier interface {
	GetCopy(ctx context.Context, id int32) (queries.Copy, error)
	GetBorrower(ctx context.Context, id int32) (queries.Borrower, error)
	GetLoan(ctx context.Context, id int32) (queries.Loan, error)
	ListUnreturnedLoansByBorrower(ctx context.Context, borrowerID int32) ([]queries.Loan, error)
	ListOverdueLoans(ctx context.Context, asOf pgtype.Timestamp) ([]queries.Loan, error)
	CreateLoanWithCopy(ctx context.Context, arg queries.CreateLoanWithCopyParams) (queries.Loan, error)
	CloseLoan(ctx context.Context, arg queries.CloseLoanParams) (queries.Loan, error)
	RenewLoan(ctx context.Context, arg queries.RenewLoanParams) (queries.Loan, error)
	CreateDisposalRecord(ctx context.Context, arg queries.CreateDisposalRecordParams) (queries.DisposalRecord, error)
	HasOpenLoanForCopy(ctx context.Context, copyID int32) (bool, error)
	SetCopyStatus(ctx context.Context, arg queries.SetCopyStatusParams) (queries.Copy, error)
}

// FineRefresher recomputes the stored fine for a loan as of a point in time.
// The borrow ledger calls it to freeze the fine before a loan terminates.
type FineRefresher interface {
	RefreshForLoan(ctx context.Context, loan queries.Loan, asOf time.Time) (*models.FineResponse, error)
}

// BorrowService owns the loan lifecycle: checkout, renewal, return and
// loss/damage closure. Every operation takes an explicit asOf so callers
// (and tests) control the clock.
type BorrowService struct {
	queries BorrowQuerier
	fines   FineRefresher
	policy  CirculationPolicy
}

// NewBorrowService creates a borrow service with the given policy.
func NewBorrowService(queries BorrowQuerier, fines FineRefresher, policy CirculationPolicy) *BorrowService {
	return &BorrowService{
		queries: queries,
		fines:   fines,
		policy:  policy,
	}
}

// ComputeOverdueDays reports how many whole days the loan is past due as of
// asOf. It is zero for terminal loans and for open loans within their
// period. Everything that needs an overdue-day count (eligibility, fines,
// display) goes through this one function.
func ComputeOverdueDays(loan queries.Loan, asOf time.Time) int {
	if loan.Status != models.LoanStatusBorrowed {
		return 0
	}
	days := daysBetween(loan.DueDate.Time, asOf)
	if days < 0 {
		return 0
	}
	return days
}

// daysBetween counts calendar days from from to to, truncating both to
// midnight so intra-day times do not shift the count.
func daysBetween(from, to time.Time) int {
	fromMidnight := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	toMidnight := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(toMidnight.Sub(fromMidnight).Hours() / 24)
}

// Checkout lends an available copy to an eligible borrower. The copy claim
// and the loan row are written atomically; a race between two checkouts on
// the same copy yields exactly one success.
func (s *BorrowService) Checkout(ctx context.Context, borrowerID, copyID, librarianID int32, notes string, asOf time.Time) (*models.LoanResponse, error) {
	cp, err := s.queries.GetCopy(ctx, copyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &models.NotFoundError{Entity: "copy", ID: copyID}
		}
		return nil, fmt.Errorf("failed to get copy: %w", err)
	}

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

	if cp.Status != string(models.CopyStatusAvailable) {
		return nil, &models.StateConflictError{
			Entity:   "copy",
			ID:       copyID,
			Current:  cp.Status,
			Expected: string(models.CopyStatusAvailable),
		}
	}

	if err := s.checkBorrowerLimits(ctx, borrowerID, copyID, asOf); err != nil {
		return nil, err
	}

	terms, err := s.policy.ForBorrowerType(borrower.BorrowerType)
	if err != nil {
		return nil, err
	}
	dueDate := asOf.AddDate(0, 0, terms.LoanPeriodDays)

	loan, err := s.queries.CreateLoanWithCopy(ctx, queries.CreateLoanWithCopyParams{
		CopyID:      copyID,
		BorrowerID:  borrowerID,
		BorrowDate:  pgtype.Timestamp{Time: asOf, Valid: true},
		DueDate:     pgtype.Timestamp{Time: dueDate, Valid: true},
		LibrarianID: pgtype.Int4{Int32: librarianID, Valid: true},
		Notes:       pgtype.Text{String: notes, Valid: notes != ""},
	})
	if err != nil {
		if errors.Is(err, queries.ErrCopyNotAvailable) {
			// Lost the race for the copy; surface whatever state won.
			return nil, s.copyConflict(ctx, copyID)
		}
		return nil, fmt.Errorf("failed to create loan: %w", err)
	}

	return loanResponse(loan, asOf), nil
}

// Return closes an open loan and puts the copy back in circulation. An
// outstanding fine is deliberately left in place: a returned book does not
// erase debt.
func (s *BorrowService) Return(ctx context.Context, loanID int32, asOf time.Time) (*models.LoanResponse, error) {
	loan, err := s.getOpenLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	// Freeze the fine at its return-time amount before the loan closes.
	if ComputeOverdueDays(loan, asOf) > 0 {
		if _, err := s.fines.RefreshForLoan(ctx, loan, asOf); err != nil {
			return nil, fmt.Errorf("failed to refresh fine: %w", err)
		}
	}

	closed, err := s.queries.CloseLoan(ctx, queries.CloseLoanParams{
		ID:         loanID,
		Status:     models.LoanStatusReturned,
		ReturnDate: pgtype.Timestamp{Time: asOf, Valid: true},
		CopyStatus: string(models.CopyStatusAvailable),
	})
	if err != nil {
		if errors.Is(err, queries.ErrLoanNotOpen) {
			return nil, s.loanConflict(ctx, loanID)
		}
		return nil, fmt.Errorf("failed to return loan: %w", err)
	}

	return loanResponse(closed, asOf), nil
}

// MarkLost closes a loan as lost. The copy leaves circulation for good and
// the loss is recorded in the disposal audit trail; the fine, if any, is
// frozen at its loss-time amount and stops accruing.
func (s *BorrowService) MarkLost(ctx context.Context, loanID, librarianID int32, notes string, asOf time.Time) (*models.LoanResponse, error) {
	loan, err := s.getOpenLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	if ComputeOverdueDays(loan, asOf) > 0 {
		if _, err := s.fines.RefreshForLoan(ctx, loan, asOf); err != nil {
			return nil, fmt.Errorf("failed to refresh fine: %w", err)
		}
	}

	closed, err := s.queries.CloseLoan(ctx, queries.CloseLoanParams{
		ID:         loanID,
		Status:     models.LoanStatusLost,
		CopyStatus: string(models.CopyStatusDisposed),
	})
	if err != nil {
		if errors.Is(err, queries.ErrLoanNotOpen) {
			return nil, s.loanConflict(ctx, loanID)
		}
		return nil, fmt.Errorf("failed to mark loan lost: %w", err)
	}

	_, err = s.queries.CreateDisposalRecord(ctx, queries.CreateDisposalRecordParams{
		CopyID:      closed.CopyID,
		Reason:      models.DisposalReasonLost,
		Description: pgtype.Text{String: notes, Valid: notes != ""},
		LibrarianID: pgtype.Int4{Int32: librarianID, Valid: librarianID > 0},
		DisposedAt:  pgtype.Timestamp{Time: asOf, Valid: true},
		Status:      models.DisposalStatusCompleted,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record loss disposal: %w", err)
	}

	return loanResponse(closed, asOf), nil
}

// MarkDamaged closes a loan as damaged. Unlike a lost copy the damaged one
// goes to maintenance, from where it can re-enter circulation after repair.
func (s *BorrowService) MarkDamaged(ctx context.Context, loanID, librarianID int32, notes string, asOf time.Time) (*models.LoanResponse, error) {
	loan, err := s.getOpenLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	if ComputeOverdueDays(loan, asOf) > 0 {
		if _, err := s.fines.RefreshForLoan(ctx, loan, asOf); err != nil {
			return nil, fmt.Errorf("failed to refresh fine: %w", err)
		}
	}

	closed, err := s.queries.CloseLoan(ctx, queries.CloseLoanParams{
		ID:         loanID,
		Status:     models.LoanStatusDamaged,
		CopyStatus: string(models.CopyStatusMaintenance),
	})
	if err != nil {
		if errors.Is(err, queries.ErrLoanNotOpen) {
			return nil, s.loanConflict(ctx, loanID)
		}
		return nil, fmt.Errorf("failed to mark loan damaged: %w", err)
	}

	return loanResponse(closed, asOf), nil
}

// ReleaseFromMaintenance puts a repaired copy back into circulation. The copy
// must be in maintenance and must not be referenced by an open loan row.
func (s *BorrowService) ReleaseFromMaintenance(ctx context.Context, copyID int32, asOf time.Time) (*models.CopyResponse, error) {
	cp, err := s.queries.GetCopy(ctx, copyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &models.NotFoundError{Entity: "copy", ID: copyID}
		}
		return nil, fmt.Errorf("failed to get copy: %w", err)
	}
	if cp.Status != string(models.CopyStatusMaintenance) {
		return nil, &models.StateConflictError{
			Entity:   "copy",
			ID:       copyID,
			Current:  cp.Status,
			Expected: string(models.CopyStatusMaintenance),
		}
	}

	open, err := s.queries.HasOpenLoanForCopy(ctx, copyID)
	if err != nil {
		return nil, fmt.Errorf("failed to check open loans: %w", err)
	}
	if open {
		return nil, &models.StateConflictError{
			Entity:   "copy",
			ID:       copyID,
			Current:  "referenced by an open loan",
			Expected: "no open loans",
		}
	}

	released, err := s.queries.SetCopyStatus(ctx, queries.SetCopyStatusParams{
		ID:         copyID,
		FromStatus: string(models.CopyStatusMaintenance),
		ToStatus:   string(models.CopyStatusAvailable),
	})
	if err != nil {
		if errors.Is(err, queries.ErrCopyNotTransitionable) {
			current := "unknown"
			if cp, err := s.queries.GetCopy(ctx, copyID); err == nil {
				current = cp.Status
			}
			return nil, &models.StateConflictError{
				Entity:   "copy",
				ID:       copyID,
				Current:  current,
				Expected: string(models.CopyStatusMaintenance),
			}
		}
		return nil, fmt.Errorf("failed to release copy: %w", err)
	}

	return copyResponse(released), nil
}

// Renew extends an open loan by the borrower's loan period, counted from
// asOf. Overdue loans cannot be renewed; the borrower settles first.
func (s *BorrowService) Renew(ctx context.Context, loanID, librarianID int32, asOf time.Time) (*models.LoanResponse, error) {
	loan, err := s.getOpenLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}

	if ComputeOverdueDays(loan, asOf) > 0 {
		return nil, &models.StateConflictError{
			Entity:   "loan",
			ID:       loanID,
			Current:  models.LoanStatusOverdue,
			Expected: models.LoanStatusBorrowed,
		}
	}

	if int(loan.RenewalCount) >= s.policy.MaxRenewals {
		return nil, &models.ValidationError{
			Field:   "loan_id",
			Message: fmt.Sprintf("loan has reached the maximum number of renewals (%d)", s.policy.MaxRenewals),
		}
	}

	borrower, err := s.queries.GetBorrower(ctx, loan.BorrowerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get borrower: %w", err)
	}
	terms, err := s.policy.ForBorrowerType(borrower.BorrowerType)
	if err != nil {
		return nil, err
	}

	renewed, err := s.queries.RenewLoan(ctx, queries.RenewLoanParams{
		ID:      loanID,
		DueDate: pgtype.Timestamp{Time: asOf.AddDate(0, 0, terms.LoanPeriodDays), Valid: true},
	})
	if err != nil {
		if errors.Is(err, queries.ErrLoanNotOpen) {
			return nil, s.loanConflict(ctx, loanID)
		}
		return nil, fmt.Errorf("failed to renew loan: %w", err)
	}

	return loanResponse(renewed, asOf), nil
}

// CheckEligibility reports whether the borrower may take out new loans or
// have reservations fulfilled. Any overdue loan, or any loan closed as lost
// or damaged, blocks the borrower globally, regardless of which copy.
func (s *BorrowService) CheckEligibility(ctx context.Context, borrowerID int32, asOf time.Time) error {
	loans, err := s.queries.ListUnreturnedLoansByBorrower(ctx, borrowerID)
	if err != nil {
		return fmt.Errorf("failed to list loans: %w", err)
	}

	for _, loan := range loans {
		if loan.Status == models.LoanStatusLost || loan.Status == models.LoanStatusDamaged {
			return &models.StateConflictError{
				Entity:   "borrower",
				ID:       borrowerID,
				Current:  fmt.Sprintf("loan %d is %s", loan.ID, loan.Status),
				Expected: "no lost or damaged loans",
			}
		}
		if days := ComputeOverdueDays(loan, asOf); days > 0 {
			return &models.StateConflictError{
				Entity:   "borrower",
				ID:       borrowerID,
				Current:  fmt.Sprintf("loan %d is %d days overdue", loan.ID, days),
				Expected: "no overdue loans",
			}
		}
	}
	return nil
}

// GetLoan returns the loan with its derived overdue view. An open overdue
// loan gets its fine recomputed on the way out, so the stored amount is
// never stale at read time.
func (s *BorrowService) GetLoan(ctx context.Context, loanID int32, asOf time.Time) (*models.LoanResponse, error) {
	loan, err := s.queries.GetLoan(ctx, loanID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &models.NotFoundError{Entity: "loan", ID: loanID}
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}

	if ComputeOverdueDays(loan, asOf) > 0 {
		if _, err := s.fines.RefreshForLoan(ctx, loan, asOf); err != nil {
			return nil, fmt.Errorf("failed to refresh fine: %w", err)
		}
	}

	return loanResponse(loan, asOf), nil
}

// ListOverdue lists every open loan past its due date as of asOf, refreshing
// each loan's fine to the current accrual.
func (s *BorrowService) ListOverdue(ctx context.Context, asOf time.Time) ([]models.LoanResponse, error) {
	loans, err := s.queries.ListOverdueLoans(ctx, pgtype.Timestamp{Time: asOf, Valid: true})
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue loans: %w", err)
	}

	responses := make([]models.LoanResponse, 0, len(loans))
	for _, loan := range loans {
		if _, err := s.fines.RefreshForLoan(ctx, loan, asOf); err != nil {
			return nil, fmt.Errorf("failed to refresh fine for loan %d: %w", loan.ID, err)
		}
		responses = append(responses, *loanResponse(loan, asOf))
	}
	return responses, nil
}

// checkBorrowerLimits enforces eligibility, the loan ceiling and the
// one-loan-per-copy rule.
func (s *BorrowService) checkBorrowerLimits(ctx context.Context, borrowerID, copyID int32, asOf time.Time) error {
	if err := s.CheckEligibility(ctx, borrowerID, asOf); err != nil {
		return err
	}

	loans, err := s.queries.ListUnreturnedLoansByBorrower(ctx, borrowerID)
	if err != nil {
		return fmt.Errorf("failed to list loans: %w", err)
	}

	open := 0
	for _, loan := range loans {
		if loan.Status != models.LoanStatusBorrowed {
			continue
		}
		open++
		if loan.CopyID == copyID {
			return &models.ValidationError{
				Field:   "copy_id",
				Message: "borrower already has this copy on loan",
			}
		}
	}
	if open >= s.policy.MaxActiveLoans {
		return &models.ValidationError{
			Field:   "borrower_id",
			Message: fmt.Sprintf("borrower has reached the maximum number of loans (%d)", s.policy.MaxActiveLoans),
		}
	}
	return nil
}

func (s *BorrowService) getOpenLoan(ctx context.Context, loanID int32) (queries.Loan, error) {
	loan, err := s.queries.GetLoan(ctx, loanID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return queries.Loan{}, &models.NotFoundError{Entity: "loan", ID: loanID}
		}
		return queries.Loan{}, fmt.Errorf("failed to get loan: %w", err)
	}
	if models.LoanTerminal(loan.Status) {
		return queries.Loan{}, &models.StateConflictError{
			Entity:   "loan",
			ID:       loanID,
			Current:  loan.Status,
			Expected: models.LoanStatusBorrowed,
		}
	}
	return loan, nil
}

// copyConflict builds a state-conflict error carrying the copy's state as
// observed after a lost race.
func (s *BorrowService) copyConflict(ctx context.Context, copyID int32) error {
	current := "unknown"
	if cp, err := s.queries.GetCopy(ctx, copyID); err == nil {
		current = cp.Status
	}
	return &models.StateConflictError{
		Entity:   "copy",
		ID:       copyID,
		Current:  current,
		Expected: string(models.CopyStatusAvailable),
	}
}

func (s *BorrowService) loanConflict(ctx context.Context, loanID int32) error {
	current := "unknown"
	if loan, err := s.queries.GetLoan(ctx, loanID); err == nil {
		current = loan.Status
	}
	return &models.StateConflictError{
		Entity:   "loan",
		ID:       loanID,
		Current:  current,
		Expected: models.LoanStatusBorrowed,
	}
}

// loanResponse converts a loan row to its response, computing the derived
// overdue view from asOf.
func loanResponse(loan queries.Loan, asOf time.Time) *models.LoanResponse {
	response := &models.LoanResponse{
		ID:           loan.ID,
		BorrowerID:   loan.BorrowerID,
		CopyID:       loan.CopyID,
		BorrowDate:   loan.BorrowDate.Time,
		DueDate:      loan.DueDate.Time,
		Status:       loan.Status,
		RenewalCount: loan.RenewalCount,
		Notes:        strings.TrimSpace(loan.Notes.String),
		CreatedAt:    loan.CreatedAt.Time,
		UpdatedAt:    loan.UpdatedAt.Time,
	}

	if days := ComputeOverdueDays(loan, asOf); days > 0 {
		response.Status = models.LoanStatusOverdue
		response.DaysOverdue = days
	}
	if loan.ReturnDate.Valid {
		response.ReturnDate = &loan.ReturnDate.Time
	}
	if loan.LibrarianID.Valid {
		response.LibrarianID = &loan.LibrarianID.Int32
	}
	return response
}
