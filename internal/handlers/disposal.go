package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kibetrono/slms/internal/models"
	"github.com/kibetrono/slms/internal/services"
)

// DisposalServiceInterface defines the interface for disposal scheduler operations
type DisposalServiceInterface interface {
	FindCandidates(ctx context.Context, limit int, asOf time.Time) ([]models.CopyResponse, error)
	EligibleCount(ctx context.Context, asOf time.Time) (int64, error)
	ManualDispose(ctx context.Context, copyID int32, req models.ManualDisposeRequest, asOf time.Time) (*models.DisposalRecordResponse, error)
	AutoDisposeBatch(ctx context.Context, asOf time.Time) (*services.DisposalBatchResult, error)
	BatchRecords(ctx context.Context, batchID string) ([]models.DisposalRecordResponse, error)
}

// DisposalHandler handles disposal scheduler HTTP requests
type DisposalHandler struct {
	disposalService DisposalServiceInterface
}

// NewDisposalHandler creates a new disposal handler
func NewDisposalHandler(disposalService DisposalServiceInterface) *DisposalHandler {
	return &DisposalHandler{
		disposalService: disposalService,
	}
}

// Candidates handles listing disposal-eligible copies
// @Summary List disposal candidates
// @Description List copies past the age threshold and not in active use, oldest first
// @Tags disposals
// @Produce json
// @Param limit query int false "Maximum candidates to return"
// @Success 200 {object} ListResponse{data=[]models.CopyResponse}
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/disposals/candidates [get]
func (h *DisposalHandler) Candidates(c *gin.Context) {
	limit := 0
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Success: false,
				Error: ErrorDetail{
					Code:    ErrorCodeValidation,
					Message: "Invalid limit",
					Details: "limit must be a non-negative integer",
				},
			})
			return
		}
		limit = parsed
	}

	candidates, err := h.disposalService.FindCandidates(c.Request.Context(), limit, time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListResponse{
		Success: true,
		Data:    candidates,
		Meta:    &ListMeta{Total: len(candidates)},
	})
}

// EligibleCount handles reporting the disposal-eligible copy count
// @Summary Count disposal candidates
// @Description Report how many copies are currently eligible for disposal
// @Tags disposals
// @Produce json
// @Success 200 {object} SuccessResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/disposals/eligible-count [get]
func (h *DisposalHandler) EligibleCount(c *gin.Context) {
	count, err := h.disposalService.EligibleCount(c.Request.Context(), time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    gin.H{"eligible_count": count},
	})
}

// ManualDispose handles retiring a single copy on request
// @Summary Dispose a copy
// @Description Retire one aged copy and write its disposal audit entry
// @Tags disposals
// @Accept json
// @Produce json
// @Param id path int true "Copy ID"
// @Param request body models.ManualDisposeRequest true "Dispose request"
// @Success 201 {object} SuccessResponse{data=models.DisposalRecordResponse}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/copies/{id}/dispose [post]
func (h *DisposalHandler) ManualDispose(c *gin.Context) {
	copyID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req models.ManualDisposeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	record, err := h.disposalService.ManualDispose(c.Request.Context(), copyID, req, time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{
		Success: true,
		Data:    record,
		Message: "Copy disposed successfully",
	})
}

// AutoDisposeBatch handles running a best-effort disposal batch
// @Summary Run a disposal batch
// @Description Dispose every eligible copy in acquisition-date order; item failures are reported, not fatal
// @Tags disposals
// @Produce json
// @Success 200 {object} SuccessResponse{data=services.DisposalBatchResult}
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/disposals/batch [post]
func (h *DisposalHandler) AutoDisposeBatch(c *gin.Context) {
	result, err := h.disposalService.AutoDisposeBatch(c.Request.Context(), time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    result,
		Message: "Disposal batch completed",
	})
}

// BatchRecords handles listing one batch run's audit entries
// @Summary Get a batch's disposal records
// @Description List the audit entries of one disposal batch run in processing order
// @Tags disposals
// @Produce json
// @Param batch_id path string true "Batch ID"
// @Success 200 {object} ListResponse{data=[]models.DisposalRecordResponse}
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/disposals/batches/{batch_id} [get]
func (h *DisposalHandler) BatchRecords(c *gin.Context) {
	records, err := h.disposalService.BatchRecords(c.Request.Context(), c.Param("batch_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListResponse{
		Success: true,
		Data:    records,
		Meta:    &ListMeta{Total: len(records)},
	})
}
