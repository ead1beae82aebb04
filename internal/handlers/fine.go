package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/kibetrono/slms/internal/models"
)

// FineServiceInterface defines the interface for fine engine operations
type FineServiceInterface interface {
	GetForLoan(ctx context.Context, loanID int32, asOf time.Time) (*models.FineResponse, error)
	RefreshFine(ctx context.Context, loanID int32, asOf time.Time) (*models.FineResponse, error)
	RecordPayment(ctx context.Context, fineID int32, amount decimal.Decimal) (*models.FineResponse, error)
	ListOutstandingByBorrower(ctx context.Context, borrowerID int32) ([]models.FineResponse, error)
}

// FineHandler handles fine engine HTTP requests
type FineHandler struct {
	fineService FineServiceInterface
}

// NewFineHandler creates a new fine handler
func NewFineHandler(fineService FineServiceInterface) *FineHandler {
	return &FineHandler{
		fineService: fineService,
	}
}

// GetForLoan handles getting the fine attached to a loan
// @Summary Get a loan's fine
// @Description Get the fine for a loan, recomputed while the loan is open and overdue
// @Tags fines
// @Produce json
// @Param id path int true "Loan ID"
// @Success 200 {object} SuccessResponse{data=models.FineResponse}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/loans/{id}/fine [get]
func (h *FineHandler) GetForLoan(c *gin.Context) {
	loanID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	fine, err := h.fineService.GetForLoan(c.Request.Context(), loanID, time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    fine,
	})
}

// RefreshFine handles recomputing and persisting a loan's fine
// @Summary Refresh a loan's fine
// @Description Recompute the fine from the loan's current overdue days and persist it
// @Tags fines
// @Produce json
// @Param id path int true "Loan ID"
// @Success 200 {object} SuccessResponse{data=models.FineResponse}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/loans/{id}/fine/refresh [post]
func (h *FineHandler) RefreshFine(c *gin.Context) {
	loanID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	fine, err := h.fineService.RefreshFine(c.Request.Context(), loanID, time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    fine,
		Message: "Fine refreshed successfully",
	})
}

// RecordPayment handles recording a cash payment against a fine
// @Summary Record a fine payment
// @Description Record a cash payment; payments above the balance due are rejected
// @Tags fines
// @Accept json
// @Produce json
// @Param id path int true "Fine ID"
// @Param request body models.RecordPaymentRequest true "Payment request"
// @Success 200 {object} SuccessResponse{data=models.FineResponse}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/fines/{id}/payments [post]
func (h *FineHandler) RecordPayment(c *gin.Context) {
	fineID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req models.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	fine, err := h.fineService.RecordPayment(c.Request.Context(), fineID, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    fine,
		Message: "Payment recorded successfully",
	})
}

// ListOutstanding handles listing a borrower's unpaid fines
// @Summary List outstanding fines
// @Description List a borrower's fines with a positive balance due
// @Tags fines
// @Produce json
// @Param id path int true "Borrower ID"
// @Success 200 {object} ListResponse{data=[]models.FineResponse}
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/borrowers/{id}/fines [get]
func (h *FineHandler) ListOutstanding(c *gin.Context) {
	borrowerID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	fines, err := h.fineService.ListOutstandingByBorrower(c.Request.Context(), borrowerID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListResponse{
		Success: true,
		Data:    fines,
		Meta:    &ListMeta{Total: len(fines)},
	})
}
