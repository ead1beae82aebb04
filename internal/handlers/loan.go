package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kibetrono/slms/internal/models"
)

// LoanServiceInterface defines the interface for borrow ledger operations
type LoanServiceInterface interface {
	Checkout(ctx context.Context, borrowerID, copyID, librarianID int32, notes string, asOf time.Time) (*models.LoanResponse, error)
	Return(ctx context.Context, loanID int32, asOf time.Time) (*models.LoanResponse, error)
	Renew(ctx context.Context, loanID, librarianID int32, asOf time.Time) (*models.LoanResponse, error)
	MarkLost(ctx context.Context, loanID, librarianID int32, notes string, asOf time.Time) (*models.LoanResponse, error)
	MarkDamaged(ctx context.Context, loanID, librarianID int32, notes string, asOf time.Time) (*models.LoanResponse, error)
	ReleaseFromMaintenance(ctx context.Context, copyID int32, asOf time.Time) (*models.CopyResponse, error)
	CheckEligibility(ctx context.Context, borrowerID int32, asOf time.Time) error
	GetLoan(ctx context.Context, loanID int32, asOf time.Time) (*models.LoanResponse, error)
	ListOverdue(ctx context.Context, asOf time.Time) ([]models.LoanResponse, error)
}

// LoanHandler handles borrow ledger HTTP requests
type LoanHandler struct {
	loanService LoanServiceInterface
}

// NewLoanHandler creates a new loan handler
func NewLoanHandler(loanService LoanServiceInterface) *LoanHandler {
	return &LoanHandler{
		loanService: loanService,
	}
}

// Checkout handles lending a copy to a borrower
// @Summary Check out a copy
// @Description Lend an available copy to an eligible borrower
// @Tags loans
// @Accept json
// @Produce json
// @Param request body models.CheckoutRequest true "Checkout request"
// @Success 201 {object} SuccessResponse{data=models.LoanResponse}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/loans [post]
func (h *LoanHandler) Checkout(c *gin.Context) {
	var req models.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	loan, err := h.loanService.Checkout(
		c.Request.Context(),
		req.BorrowerID,
		req.CopyID,
		req.LibrarianID,
		req.Notes,
		time.Now().UTC(),
	)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{
		Success: true,
		Data:    loan,
		Message: "Copy checked out successfully",
	})
}

// Return handles closing an open loan
// @Summary Return a loan
// @Description Close an open loan and put the copy back in circulation
// @Tags loans
// @Produce json
// @Param id path int true "Loan ID"
// @Success 200 {object} SuccessResponse{data=models.LoanResponse}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/loans/{id}/return [post]
func (h *LoanHandler) Return(c *gin.Context) {
	loanID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	loan, err := h.loanService.Return(c.Request.Context(), loanID, time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    loan,
		Message: "Loan returned successfully",
	})
}

// Renew handles extending an open loan
// @Summary Renew a loan
// @Description Extend an open loan's due date within the renewal limit
// @Tags loans
// @Accept json
// @Produce json
// @Param id path int true "Loan ID"
// @Param request body models.RenewRequest true "Renew request"
// @Success 200 {object} SuccessResponse{data=models.LoanResponse}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/loans/{id}/renew [post]
func (h *LoanHandler) Renew(c *gin.Context) {
	loanID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req models.RenewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	loan, err := h.loanService.Renew(c.Request.Context(), loanID, req.LibrarianID, time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    loan,
		Message: "Loan renewed successfully",
	})
}

// MarkLost handles closing a loan as lost
// @Summary Mark a loan lost
// @Description Close a loan as lost, freeze its fine and retire the copy
// @Tags loans
// @Accept json
// @Produce json
// @Param id path int true "Loan ID"
// @Param request body models.MarkLostRequest true "Mark lost request"
// @Success 200 {object} SuccessResponse{data=models.LoanResponse}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/loans/{id}/lost [post]
func (h *LoanHandler) MarkLost(c *gin.Context) {
	loanID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req models.MarkLostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	loan, err := h.loanService.MarkLost(c.Request.Context(), loanID, req.LibrarianID, req.Notes, time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    loan,
		Message: "Loan marked as lost",
	})
}

// MarkDamaged handles closing a loan as damaged
// @Summary Mark a loan damaged
// @Description Close a loan as damaged and send the copy to maintenance
// @Tags loans
// @Accept json
// @Produce json
// @Param id path int true "Loan ID"
// @Param request body models.MarkLostRequest true "Mark damaged request"
// @Success 200 {object} SuccessResponse{data=models.LoanResponse}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/loans/{id}/damaged [post]
func (h *LoanHandler) MarkDamaged(c *gin.Context) {
	loanID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req models.MarkLostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	loan, err := h.loanService.MarkDamaged(c.Request.Context(), loanID, req.LibrarianID, req.Notes, time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    loan,
		Message: "Loan marked as damaged",
	})
}

// ReleaseCopy handles returning a repaired copy to circulation
// @Summary Release a copy from maintenance
// @Description Put a repaired copy back into circulation
// @Tags copies
// @Produce json
// @Param id path int true "Copy ID"
// @Success 200 {object} SuccessResponse{data=models.CopyResponse}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/copies/{id}/release [post]
func (h *LoanHandler) ReleaseCopy(c *gin.Context) {
	copyID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	cp, err := h.loanService.ReleaseFromMaintenance(c.Request.Context(), copyID, time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    cp,
		Message: "Copy released from maintenance",
	})
}

// GetLoan handles getting a specific loan
// @Summary Get a loan
// @Description Get a loan with its derived overdue state
// @Tags loans
// @Produce json
// @Param id path int true "Loan ID"
// @Success 200 {object} SuccessResponse{data=models.LoanResponse}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/loans/{id} [get]
func (h *LoanHandler) GetLoan(c *gin.Context) {
	loanID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	loan, err := h.loanService.GetLoan(c.Request.Context(), loanID, time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    loan,
	})
}

// ListOverdue handles listing all overdue loans
// @Summary List overdue loans
// @Description List open loans past their due date
// @Tags loans
// @Produce json
// @Success 200 {object} ListResponse{data=[]models.LoanResponse}
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/loans/overdue [get]
func (h *LoanHandler) ListOverdue(c *gin.Context) {
	loans, err := h.loanService.ListOverdue(c.Request.Context(), time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListResponse{
		Success: true,
		Data:    loans,
		Meta:    &ListMeta{Total: len(loans)},
	})
}

// CheckEligibility handles checking whether a borrower may borrow
// @Summary Check borrower eligibility
// @Description Check whether a borrower is currently allowed to borrow
// @Tags loans
// @Produce json
// @Param id path int true "Borrower ID"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/borrowers/{id}/eligibility [get]
func (h *LoanHandler) CheckEligibility(c *gin.Context) {
	borrowerID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.loanService.CheckEligibility(c.Request.Context(), borrowerID, time.Now().UTC()); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Borrower is eligible to borrow",
	})
}
