package services

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/kibetrono/slms/internal/database/queries"
	"github.com/kibetrono/slms/internal/models"
)

// MockBorrowQuerier is a mock implementation of BorrowQuerier
type MockBorrowQuerier struct {
	mock.Mock
}

func (m *MockBorrowQuerier) GetCopy(ctx context.Context, id int32) (queries.Copy, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(queries.Copy), args.Error(1)
}

func (m *MockBorrowQuerier) GetBorrower(ctx context.Context, id int32) (queries.Borrower, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(queries.Borrower), args.Error(1)
}

func (m *MockBorrowQuerier) GetLoan(ctx context.Context, id int32) (queries.Loan, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(queries.Loan), args.Error(1)
}

func (m *MockBorrowQuerier) ListUnreturnedLoansByBorrower(ctx context.Context, borrowerID int32) ([]queries.Loan, error) {
	args := m.Called(ctx, borrowerID)
	return args.Get(0).([]queries.Loan), args.Error(1)
}

func (m *MockBorrowQuerier) ListOverdueLoans(ctx context.Context, asOf pgtype.Timestamp) ([]queries.Loan, error) {
	args := m.Called(ctx, asOf)
	return args.Get(0).([]queries.Loan), args.Error(1)
}

func (m *MockBorrowQuerier) CreateLoanWithCopy(ctx context.Context, arg queries.CreateLoanWithCopyParams) (queries.Loan, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(queries.Loan), args.Error(1)
}

func (m *MockBorrowQuerier) CloseLoan(ctx context.Context, arg queries.CloseLoanParams) (queries.Loan, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(queries.Loan), args.Error(1)
}

func (m *MockBorrowQuerier) RenewLoan(ctx context.Context, arg queries.RenewLoanParams) (queries.Loan, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(queries.Loan), args.Error(1)
}

func (m *MockBorrowQuerier) CreateDisposalRecord(ctx context.Context, arg queries.CreateDisposalRecordParams) (queries.DisposalRecord, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(queries.DisposalRecord), args.Error(1)
}

func (m *MockBorrowQuerier) HasOpenLoanForCopy(ctx context.Context, copyID int32) (bool, error) {
	args := m.Called(ctx, copyID)
	return args.Get(0).(bool), args.Error(1)
}

func (m *MockBorrowQuerier) SetCopyStatus(ctx context.Context, arg queries.SetCopyStatusParams) (queries.Copy, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(queries.Copy), args.Error(1)
}

// MockFineRefresher is a mock implementation of FineRefresher
type MockFineRefresher struct {
	mock.Mock
}

func (m *MockFineRefresher) RefreshForLoan(ctx context.Context, loan queries.Loan, asOf time.Time) (*models.FineResponse, error) {
	args := m.Called(ctx, loan, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FineResponse), args.Error(1)
}

var testClock = time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

func activeStudent(id int32) queries.Borrower {
	return queries.Borrower{
		ID:           id,
		FullName:     "Amina Yusuf",
		BorrowerType: models.BorrowerTypeStudent,
		IsActive:     pgtype.Bool{Bool: true, Valid: true},
	}
}

func availableCopy(id int32) queries.Copy {
	return queries.Copy{
		ID:      id,
		Barcode: "BC-001",
		BookID:  10,
		Status:  string(models.CopyStatusAvailable),
	}
}

func openLoan(id int32, due time.Time) queries.Loan {
	return queries.Loan{
		ID:         id,
		BorrowerID: 1,
		CopyID:     2,
		BorrowDate: pgtype.Timestamp{Time: due.AddDate(0, 0, -14), Valid: true},
		DueDate:    pgtype.Timestamp{Time: due, Valid: true},
		Status:     models.LoanStatusBorrowed,
	}
}

func TestComputeOverdueDays(t *testing.T) {
	tests := []struct {
		name string
		loan queries.Loan
		asOf time.Time
		want int
	}{
		{
			name: "due date in the future",
			loan: openLoan(1, testClock.AddDate(0, 0, 5)),
			asOf: testClock,
			want: 0,
		},
		{
			name: "due today",
			loan: openLoan(1, testClock),
			asOf: testClock,
			want: 0,
		},
		{
			name: "fourteen day loan queried on day twenty",
			loan: openLoan(1, testClock.AddDate(0, 0, -6)),
			asOf: testClock,
			want: 6,
		},
		{
			name: "intra day times do not shift the count",
			loan: openLoan(1, time.Date(2026, 3, 4, 23, 59, 0, 0, time.UTC)),
			asOf: time.Date(2026, 3, 10, 0, 1, 0, 0, time.UTC),
			want: 6,
		},
		{
			name: "returned loan never accrues",
			loan: queries.Loan{
				ID:      1,
				DueDate: pgtype.Timestamp{Time: testClock.AddDate(0, 0, -6), Valid: true},
				Status:  models.LoanStatusReturned,
			},
			asOf: testClock,
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeOverdueDays(tt.loan, tt.asOf))
		})
	}
}

func TestBorrowService_Checkout_Success(t *testing.T) {
	mockQuerier := &MockBorrowQuerier{}
	mockFines := &MockFineRefresher{}
	service := NewBorrowService(mockQuerier, mockFines, DefaultPolicy())

	ctx := context.Background()
	created := openLoan(1, testClock.AddDate(0, 0, 14))

	mockQuerier.On("GetCopy", ctx, int32(2)).Return(availableCopy(2), nil)
	mockQuerier.On("GetBorrower", ctx, int32(1)).Return(activeStudent(1), nil)
	mockQuerier.On("ListUnreturnedLoansByBorrower", ctx, int32(1)).Return([]queries.Loan{}, nil)
	mockQuerier.On("CreateLoanWithCopy", ctx, mock.MatchedBy(func(arg queries.CreateLoanWithCopyParams) bool {
		return arg.CopyID == 2 &&
			arg.BorrowerID == 1 &&
			arg.DueDate.Time.Equal(testClock.AddDate(0, 0, 14))
	})).Return(created, nil)

	result, err := service.Checkout(ctx, 1, 2, 3, "", testClock)

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, models.LoanStatusBorrowed, result.Status)
	assert.Equal(t, testClock.AddDate(0, 0, 14), result.DueDate)
	mockQuerier.AssertExpectations(t)
}

func TestBorrowService_Checkout_StaffLoanPeriod(t *testing.T) {
	mockQuerier := &MockBorrowQuerier{}
	mockFines := &MockFineRefresher{}
	service := NewBorrowService(mockQuerier, mockFines, DefaultPolicy())

	ctx := context.Background()
	staff := activeStudent(1)
	staff.BorrowerType = models.BorrowerTypeStaff

	mockQuerier.On("GetCopy", ctx, int32(2)).Return(availableCopy(2), nil)
	mockQuerier.On("GetBorrower", ctx, int32(1)).Return(staff, nil)
	mockQuerier.On("ListUnreturnedLoansByBorrower", ctx, int32(1)).Return([]queries.Loan{}, nil)
	mockQuerier.On("CreateLoanWithCopy", ctx, mock.MatchedBy(func(arg queries.CreateLoanWithCopyParams) bool {
		return arg.DueDate.Time.Equal(testClock.AddDate(0, 0, 30))
	})).Return(openLoan(1, testClock.AddDate(0, 0, 30)), nil)

	result, err := service.Checkout(ctx, 1, 2, 3, "", testClock)

	assert.NoError(t, err)
	assert.NotNil(t, result)
	mockQuerier.AssertExpectations(t)
}

func TestBorrowService_Checkout_CopyNotFound(t *testing.T) {
	mockQuerier := &MockBorrowQuerier{}
	mockFines := &MockFineRefresher{}
	service := NewBorrowService(mockQuerier, mockFines, DefaultPolicy())

	ctx := context.Background()
	mockQuerier.On("GetCopy", ctx, int32(2)).Return(queries.Copy{}, pgx.ErrNoRows)

	result, err := service.Checkout(ctx, 1, 2, 3, "", testClock)

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, models.IsNotFound(err))
	mockQuerier.AssertExpectations(t)
}

func TestBorrowService_Checkout_CopyNotAvailable(t *testing.T) {
	mockQuerier := &MockBorrowQuerier{}
	mockFines := &MockFineRefresher{}
	service := NewBorrowService(mockQuerier, mockFines, DefaultPolicy())

	ctx := context.Background()
	cp := availableCopy(2)
	cp.Status = string(models.CopyStatusBorrowed)

	mockQuerier.On("GetCopy", ctx, int32(2)).Return(cp, nil)
	mockQuerier.On("GetBorrower", ctx, int32(1)).Return(activeStudent(1), nil)

	result, err := service.Checkout(ctx, 1, 2, 3, "", testClock)

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, models.IsStateConflict(err))
	assert.Contains(t, err.Error(), "borrowed")
	mockQuerier.AssertExpectations(t)
}

func TestBorrowService_Checkout_InactiveBorrower(t *testing.T) {
	mockQuerier := &MockBorrowQuerier{}
	mockFines := &MockFineRefresher{}
	service := NewBorrowService(mockQuerier, mockFines, DefaultPolicy())

	ctx := context.Background()
	borrower := activeStudent(1)
	borrower.IsActive = pgtype.Bool{Bool: false, Valid: true}

	mockQuerier.On("GetCopy", ctx, int32(2)).Return(availableCopy(2), nil)
	mockQuerier.On("GetBorrower", ctx, int32(1)).Return(borrower, nil)

	result, err := service.Checkout(ctx, 1, 2, 3, "", testClock)

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, models.IsValidation(err))
	mockQuerier.AssertExpectations(t)
}

func TestBorrowService_Checkout_MaxLoansReached(t *testing.T) {
	mockQuerier := &MockBorrowQuerier{}
	mockFines := &MockFineRefresher{}
	service := NewBorrowService(mockQuerier, mockFines, DefaultPolicy())

	ctx := context.Background()
	loans := make([]queries.Loan, 5)
	for i := range loans {
		loans[i] = openLoan(int32(i+10), testClock.AddDate(0, 0, 7))
		loans[i].CopyID = int32(i + 100)
	}

	mockQuerier.On("GetCopy", ctx, int32(2)).Return(availableCopy(2), nil)
	mockQuerier.On("GetBorrower", ctx, int32(1)).Return(activeStudent(1), nil)
	mockQuerier.On("ListUnreturnedLoansByBorrower", ctx, int32(1)).Return(loans, nil)

	result, err := service.Checkout(ctx, 1, 2, 3, "", testClock)

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, models.IsValidation(err))
	assert.Contains(t, err.Error(), "maximum number of loans")
	mockQuerier.AssertExpectations(t)
}

func TestBorrowService_Checkout_BorrowerHasOverdueLoan(t *testing.T) {
	mockQuerier := &MockBorrowQuerier{}
	mockFines := &MockFineRefresher{}
	service := NewBorrowService(mockQuerier, mockFines, DefaultPolicy())

	ctx := context.Background()
	overdue := openLoan(9, testClock.AddDate(0, 0, -3))
	overdue.CopyID = 99

	mockQuerier.On("GetCopy", ctx, int32(2)).Return(availableCopy(2), nil)
	mockQuerier.On("GetBorrower", ctx, int32(1)).Return(activeStudent(1), nil)
	mockQuerier.On("ListUnreturnedLoansByBorrower", ctx, int32(1)).Return([]queries.Loan{overdue}, nil)

	result, err := service.Checkout(ctx, 1, 2, 3, "", testClock)

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, models.IsStateConflict(err))
	assert.Contains(t, err.Error(), "overdue")
	mockQuerier.AssertExpectations(t)
}

func TestBorrowService_Checkout_LostRace(t *testing.T) {
	mockQuerier := &MockBorrowQuerier{}
	mockFines := &MockFineRefresher{}
	service := NewBorrowService(mockQuerier, mockFines, DefaultPolicy())

	ctx := context.Background()
	claimed := availableCopy(2)
	claimed.Status = string(models.CopyStatusBorrowed)

	mockQuerier.On("GetCopy", ctx, int32(2)).Return(availableCopy(2), nil).Once()
	mockQuerier.On("GetBorrower", ctx, int32(1)).Return(activeStudent(1), nil)
	mockQuerier.On("ListUnreturnedLoansByBorrower", ctx, int32(1)).Return([]queries.Loan{}, nil)
	mockQuerier.On("CreateLoanWithCopy", ctx, mock.AnythingOfType("queries.CreateLoanWithCopyParams")).
		Return(queries.Loan{}, queries.ErrCopyNotAvailable)
	mockQuerier.On("GetCopy", ctx, int32(2)).Return(claimed, nil).Once()

	result, err := service.Checkout(ctx, 1, 2, 3, "", testClock)

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, models.IsStateConflict(err))
	mockQuerier.AssertExpectations(t)
}

func TestBorrowService_Return_Success(t *testing.T) {
	mockQuerier := &MockBorrowQuerier{}
	mockFines := &MockFineRefresher{}
	service := NewBorrowService(mockQuerier, mockFines, DefaultPolicy())

	ctx := context.Background()
	loan := openLoan(1, testClock.AddDate(0, 0, 4))
	returned := loan
	returned.Status = models.LoanStatusReturned
	returned.ReturnDate = pgtype.Timestamp{Time: testClock, Valid: true}

	mockQuerier.On("GetLoan", ctx, int32(1)).Return(loan, nil)
	mockQuerier.On("CloseLoan", ctx, queries.CloseLoanParams{
		ID:         1,
		Status:     models.LoanStatusReturned,
		ReturnDate: pgtype.Timestamp{Time: testClock, Valid: true},
		CopyStatus: string(models.CopyStatusAvailable),
	}).Return(returned, nil)

	result, err := service.Return(ctx, 1, testClock)

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, models.LoanStatusReturned, result.Status)
	assert.NotNil(t, result.ReturnDate)
	mockFines.AssertNotCalled(t, "RefreshForLoan")
	mockQuerier.AssertExpectations(t)
}

func TestBorrowService_Return_OverdueFreezesFine(t *testing.T) {
	mockQuerier := &MockBorrowQuerier{}
	mockFines := &MockFineRefresher{}
	service := NewBorrowService(mockQuerier, mockFines, DefaultPolicy())

	ctx := context.Background()
	loan := openLoan(1, testClock.AddDate(0, 0, -6))
	returned := loan
	returned.Status = models.LoanStatusReturned
	returned.ReturnDate = pgtype.Timestamp{Time: testClock, Valid: true}

	mockQuerier.On("GetLoan", ctx, int32(1)).Return(loan, nil)
	mockFines.On("RefreshForLoan", ctx, loan, testClock).Return(&models.FineResponse{}, nil)
	mockQuerier.On("CloseLoan", ctx, mock.AnythingOfType("queries.CloseLoanParams")).Return(returned, nil)

	result, err := service.Return(ctx, 1, testClock)

	assert.NoError(t, err)
	assert.NotNil(t, result)
	mockFines.AssertExpectations(t)
	mockQuerier.AssertExpectations(t)
}

func TestBorrowService_Return_AlreadyReturned(t *testing.T) {
	mockQuerier := &MockBorrowQuerier{}
	mockFines := &MockFineRefresher{}
	service := NewBorrowService(mockQuerier, mockFines, DefaultPolicy())

	ctx := context.Background()
	loan := openLoan(1, testClock.AddDate(0, 0, 4))
	loan.Status = models.LoanStatusReturned

	mockQuerier.On("GetLoan", ctx, int32(1)).Return(loan, nil)

	result, err := service.Return(ctx, 1, testClock)

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, models.IsStateConflict(err))
	assert.Contains(t, err.Error(), models.LoanStatusReturned)
	mockQuerier.AssertExpectations(t)
}

func TestBorrowService_MarkLost_RetiresCopyAndRecordsDisposal(t *testing.T) {
	mockQuerier := &MockBorrowQuerier{}
	mockFines := &MockFineRefresher{}
	service := NewBorrowService(mockQuerier, mockFines, DefaultPolicy())

	ctx := context.Background()
	loan := openLoan(1, testClock.AddDate(0, 0, -6))
	lost := loan
	lost.Status = models.LoanStatusLost

	mockQuerier.On("GetLoan", ctx, int32(1)).Return(loan, nil)
	mockFines.On("RefreshForLoan", ctx, loan, testClock).Return(&models.FineResponse{}, nil)
	mockQuerier.On("CloseLoan", ctx, queries.CloseLoanParams{
		ID:         1,
		Status:     models.LoanStatusLost,
		CopyStatus: string(models.CopyStatusDisposed),
	}).Return(lost, nil)
	mockQuerier.On("CreateDisposalRecord", ctx, mock.MatchedBy(func(arg queries.CreateDisposalRecordParams) bool {
		return arg.CopyID == loan.CopyID &&
			arg.Reason == models.DisposalReasonLost &&
			arg.Status == models.DisposalStatusCompleted
	})).Return(queries.DisposalRecord{ID: 1}, nil)

	result, err := service.MarkLost(ctx, 1, 3, "misplaced in transit", testClock)

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, models.LoanStatusLost, result.Status)
	mockFines.AssertExpectations(t)
	mockQuerier.AssertExpectations(t)
}

func TestBorrowService_MarkDamaged_SendsCopyToMaintenance(t *testing.T) {
	mockQuerier := &MockBorrowQuerier{}
	mockFines := &MockFineRefresher{}
	service := NewBorrowService(mockQuerier, mockFines, DefaultPolicy())

	ctx := context.Background()
	loan := openLoan(1, testClock.AddDate(0, 0, 4))
	damaged := loan
	damaged.Status = models.LoanStatusDamaged

	mockQuerier.On("GetLoan", ctx, int32(1)).Return(loan, nil)
	mockQuerier.On("CloseLoan", ctx, queries.CloseLoanParams{
		ID:         1,
		Status:     models.LoanStatusDamaged,
		CopyStatus: string(models.CopyStatusMaintenance),
	}).Return(damaged, nil)

	result, err := service.MarkDamaged(ctx, 1, 3, "", testClock)

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, models.LoanStatusDamaged, result.Status)
	mockQuerier.AssertNotCalled(t, "CreateDisposalRecord")
	mockQuerier.AssertExpectations(t)
}

func TestBorrowService_Renew_Success(t *testing.T) {
	mockQuerier := &MockBorrowQuerier{}
	mockFines := &MockFineRefresher{}
	service := NewBorrowService(mockQuerier, mockFines, DefaultPolicy())

	ctx := context.Background()
	loan := openLoan(1, testClock.AddDate(0, 0, 4))
	renewed := loan
	renewed.DueDate = pgtype.Timestamp{Time: testClock.AddDate(0, 0, 14), Valid: true}
	renewed.RenewalCount = 1

	mockQuerier.On("GetLoan", ctx, int32(1)).Return(loan, nil)
	mockQuerier.On("GetBorrower", ctx, int32(1)).Return(activeStudent(1), nil)
	mockQuerier.On("RenewLoan", ctx, queries.RenewLoanParams{
		ID:      1,
		DueDate: pgtype.Timestamp{Time: testClock.AddDate(0, 0, 14), Valid: true},
	}).Return(renewed, nil)

	result, err := service.Renew(ctx, 1, 3, testClock)

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, int32(1), result.RenewalCount)
	assert.Equal(t, testClock.AddDate(0, 0, 14), result.DueDate)
	mockQuerier.AssertExpectations(t)
}

func TestBorrowService_Renew_OverdueRejected(t *testing.T) {
	mockQuerier := &MockBorrowQuerier{}
	mockFines := &MockFineRefresher{}
	service := NewBorrowService(mockQuerier, mockFines, DefaultPolicy())

	ctx := context.Background()
	loan := openLoan(1, testClock.AddDate(0, 0, -2))

	mockQuerier.On("GetLoan", ctx, int32(1)).Return(loan, nil)

	result, err := service.Renew(ctx, 1, 3, testClock)

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, models.IsStateConflict(err))
	assert.Contains(t, err.Error(), models.LoanStatusOverdue)
	mockQuerier.AssertNotCalled(t, "RenewLoan")
	mockQuerier.AssertExpectations(t)
}

func TestBorrowService_Renew_MaxRenewalsReached(t *testing.T) {
	mockQuerier := &MockBorrowQuerier{}
	mockFines := &MockFineRefresher{}
	service := NewBorrowService(mockQuerier, mockFines, DefaultPolicy())

	ctx := context.Background()
	loan := openLoan(1, testClock.AddDate(0, 0, 4))
	loan.RenewalCount = 2

	mockQuerier.On("GetLoan", ctx, int32(1)).Return(loan, nil)

	result, err := service.Renew(ctx, 1, 3, testClock)

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, models.IsValidation(err))
	assert.Contains(t, err.Error(), "maximum number of renewals")
	mockQuerier.AssertExpectations(t)
}

func TestBorrowService_CheckEligibility(t *testing.T) {
	ctx := context.Background()

	t.Run("clean borrower is eligible", func(t *testing.T) {
		mockQuerier := &MockBorrowQuerier{}
		service := NewBorrowService(mockQuerier, &MockFineRefresher{}, DefaultPolicy())

		mockQuerier.On("ListUnreturnedLoansByBorrower", ctx, int32(1)).
			Return([]queries.Loan{openLoan(1, testClock.AddDate(0, 0, 4))}, nil)

		assert.NoError(t, service.CheckEligibility(ctx, 1, testClock))
	})

	t.Run("overdue loan blocks the borrower", func(t *testing.T) {
		mockQuerier := &MockBorrowQuerier{}
		service := NewBorrowService(mockQuerier, &MockFineRefresher{}, DefaultPolicy())

		mockQuerier.On("ListUnreturnedLoansByBorrower", ctx, int32(1)).
			Return([]queries.Loan{openLoan(1, testClock.AddDate(0, 0, -1))}, nil)

		err := service.CheckEligibility(ctx, 1, testClock)
		assert.True(t, models.IsStateConflict(err))
	})

	t.Run("lost loan blocks the borrower", func(t *testing.T) {
		mockQuerier := &MockBorrowQuerier{}
		service := NewBorrowService(mockQuerier, &MockFineRefresher{}, DefaultPolicy())

		lost := openLoan(1, testClock.AddDate(0, 0, -20))
		lost.Status = models.LoanStatusLost
		mockQuerier.On("ListUnreturnedLoansByBorrower", ctx, int32(1)).
			Return([]queries.Loan{lost}, nil)

		err := service.CheckEligibility(ctx, 1, testClock)
		assert.True(t, models.IsStateConflict(err))
		assert.Contains(t, err.Error(), models.LoanStatusLost)
	})
}

func TestBorrowService_GetLoan_DerivedOverdueView(t *testing.T) {
	mockQuerier := &MockBorrowQuerier{}
	mockFines := &MockFineRefresher{}
	service := NewBorrowService(mockQuerier, mockFines, DefaultPolicy())

	ctx := context.Background()
	loan := openLoan(1, testClock.AddDate(0, 0, -6))

	mockQuerier.On("GetLoan", ctx, int32(1)).Return(loan, nil)
	mockFines.On("RefreshForLoan", ctx, loan, testClock).Return(&models.FineResponse{}, nil)

	result, err := service.GetLoan(ctx, 1, testClock)

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, models.LoanStatusOverdue, result.Status)
	assert.Equal(t, 6, result.DaysOverdue)
	mockFines.AssertExpectations(t)
	mockQuerier.AssertExpectations(t)
}

func TestBorrowService_GetLoan_NotFound(t *testing.T) {
	mockQuerier := &MockBorrowQuerier{}
	service := NewBorrowService(mockQuerier, &MockFineRefresher{}, DefaultPolicy())

	ctx := context.Background()
	mockQuerier.On("GetLoan", ctx, int32(1)).Return(queries.Loan{}, pgx.ErrNoRows)

	result, err := service.GetLoan(ctx, 1, testClock)

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, models.IsNotFound(err))
	mockQuerier.AssertExpectations(t)
}

func TestBorrowService_ListOverdue_RefreshesFines(t *testing.T) {
	mockQuerier := &MockBorrowQuerier{}
	mockFines := &MockFineRefresher{}
	service := NewBorrowService(mockQuerier, mockFines, DefaultPolicy())

	ctx := context.Background()
	first := openLoan(1, testClock.AddDate(0, 0, -3))
	second := openLoan(2, testClock.AddDate(0, 0, -1))
	second.BorrowerID = 4

	mockQuerier.On("ListOverdueLoans", ctx, pgtype.Timestamp{Time: testClock, Valid: true}).
		Return([]queries.Loan{first, second}, nil)
	mockFines.On("RefreshForLoan", ctx, first, testClock).Return(&models.FineResponse{}, nil)
	mockFines.On("RefreshForLoan", ctx, second, testClock).Return(&models.FineResponse{}, nil)

	result, err := service.ListOverdue(ctx, testClock)

	assert.NoError(t, err)
	assert.Len(t, result, 2)
	assert.Equal(t, models.LoanStatusOverdue, result[0].Status)
	assert.Equal(t, 3, result[0].DaysOverdue)
	mockFines.AssertExpectations(t)
	mockQuerier.AssertExpectations(t)
}

func TestBorrowService_ReleaseFromMaintenance_Success(t *testing.T) {
	mockQuerier := &MockBorrowQuerier{}
	mockFines := &MockFineRefresher{}
	service := NewBorrowService(mockQuerier, mockFines, DefaultPolicy())

	ctx := context.Background()
	cp := availableCopy(2)
	cp.Status = string(models.CopyStatusMaintenance)
	released := availableCopy(2)

	mockQuerier.On("GetCopy", ctx, int32(2)).Return(cp, nil)
	mockQuerier.On("HasOpenLoanForCopy", ctx, int32(2)).Return(false, nil)
	mockQuerier.On("SetCopyStatus", ctx, queries.SetCopyStatusParams{
		ID:         2,
		FromStatus: string(models.CopyStatusMaintenance),
		ToStatus:   string(models.CopyStatusAvailable),
	}).Return(released, nil)

	result, err := service.ReleaseFromMaintenance(ctx, 2, testClock)

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, models.CopyStatusAvailable, result.Status)
	mockQuerier.AssertExpectations(t)
}

func TestBorrowService_ReleaseFromMaintenance_NotInMaintenance(t *testing.T) {
	mockQuerier := &MockBorrowQuerier{}
	mockFines := &MockFineRefresher{}
	service := NewBorrowService(mockQuerier, mockFines, DefaultPolicy())

	ctx := context.Background()
	mockQuerier.On("GetCopy", ctx, int32(2)).Return(availableCopy(2), nil)

	result, err := service.ReleaseFromMaintenance(ctx, 2, testClock)

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, models.IsStateConflict(err))
	mockQuerier.AssertNotCalled(t, "SetCopyStatus")
	mockQuerier.AssertExpectations(t)
}

func TestBorrowService_ReleaseFromMaintenance_OpenLoanBlocks(t *testing.T) {
	mockQuerier := &MockBorrowQuerier{}
	mockFines := &MockFineRefresher{}
	service := NewBorrowService(mockQuerier, mockFines, DefaultPolicy())

	ctx := context.Background()
	cp := availableCopy(2)
	cp.Status = string(models.CopyStatusMaintenance)

	mockQuerier.On("GetCopy", ctx, int32(2)).Return(cp, nil)
	mockQuerier.On("HasOpenLoanForCopy", ctx, int32(2)).Return(true, nil)

	result, err := service.ReleaseFromMaintenance(ctx, 2, testClock)

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, models.IsStateConflict(err))
	assert.Contains(t, err.Error(), "open loan")
	mockQuerier.AssertNotCalled(t, "SetCopyStatus")
	mockQuerier.AssertExpectations(t)
}
