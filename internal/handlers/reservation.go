package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kibetrono/slms/internal/models"
)

// ReservationServiceInterface defines the interface for reservation queue operations
type ReservationServiceInterface interface {
	Reserve(ctx context.Context, borrowerID, bookID int32, asOf time.Time) (*models.ReservationResponse, error)
	GetReservation(ctx context.Context, reservationID int32, asOf time.Time) (*models.ReservationResponse, error)
	Cancel(ctx context.Context, reservationID int32, reason string, asOf time.Time) (*models.ReservationResponse, error)
	Fulfill(ctx context.Context, reservationID, copyID, librarianID int32, asOf time.Time) (*models.LoanResponse, error)
	Queue(ctx context.Context, bookID int32, asOf time.Time) (*models.ReservationQueueResponse, error)
	NextInQueue(ctx context.Context, bookID int32, asOf time.Time) (*models.ReservationResponse, error)
	MarkNotified(ctx context.Context, reservationID int32, asOf time.Time) (*models.ReservationResponse, error)
	ExpireReservations(ctx context.Context, asOf time.Time) (int, error)
}

// ReservationHandler handles reservation queue HTTP requests
type ReservationHandler struct {
	reservationService ReservationServiceInterface
}

// NewReservationHandler creates a new reservation handler
func NewReservationHandler(reservationService ReservationServiceInterface) *ReservationHandler {
	return &ReservationHandler{
		reservationService: reservationService,
	}
}

// Reserve handles placing a borrower on a title's waiting list
// @Summary Reserve a title
// @Description Place a borrower at the tail of a title's waiting list
// @Tags reservations
// @Accept json
// @Produce json
// @Param request body models.ReserveRequest true "Reserve request"
// @Success 201 {object} SuccessResponse{data=models.ReservationResponse}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/reservations [post]
func (h *ReservationHandler) Reserve(c *gin.Context) {
	var req models.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	reservation, err := h.reservationService.Reserve(
		c.Request.Context(),
		req.BorrowerID,
		req.BookID,
		time.Now().UTC(),
	)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{
		Success: true,
		Data:    reservation,
		Message: "Reservation created successfully",
	})
}

// GetReservation handles getting a specific reservation
// @Summary Get a reservation
// @Description Get a reservation with its derived expiry state
// @Tags reservations
// @Produce json
// @Param id path int true "Reservation ID"
// @Success 200 {object} SuccessResponse{data=models.ReservationResponse}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/reservations/{id} [get]
func (h *ReservationHandler) GetReservation(c *gin.Context) {
	reservationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	reservation, err := h.reservationService.GetReservation(c.Request.Context(), reservationID, time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    reservation,
	})
}

// Cancel handles cancelling an active reservation
// @Summary Cancel a reservation
// @Description Cancel an active reservation with a mandatory reason and compact the queue
// @Tags reservations
// @Accept json
// @Produce json
// @Param id path int true "Reservation ID"
// @Param request body models.CancelReservationRequest true "Cancel request"
// @Success 200 {object} SuccessResponse{data=models.ReservationResponse}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/reservations/{id}/cancel [post]
func (h *ReservationHandler) Cancel(c *gin.Context) {
	reservationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req models.CancelReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	reservation, err := h.reservationService.Cancel(c.Request.Context(), reservationID, req.Reason, time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    reservation,
		Message: "Reservation cancelled successfully",
	})
}

// Fulfill handles converting a reservation into a loan
// @Summary Fulfill a reservation
// @Description Hand an available copy to the reservation holder and open a loan
// @Tags reservations
// @Accept json
// @Produce json
// @Param id path int true "Reservation ID"
// @Param request body models.FulfillReservationRequest true "Fulfill request"
// @Success 201 {object} SuccessResponse{data=models.LoanResponse}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/reservations/{id}/fulfill [post]
func (h *ReservationHandler) Fulfill(c *gin.Context) {
	reservationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req models.FulfillReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	loan, err := h.reservationService.Fulfill(c.Request.Context(), reservationID, req.CopyID, req.LibrarianID, time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{
		Success: true,
		Data:    loan,
		Message: "Reservation fulfilled successfully",
	})
}

// Queue handles listing a title's active waiting list
// @Summary Get a title's reservation queue
// @Description List active reservations for a title in queue order
// @Tags reservations
// @Produce json
// @Param id path int true "Book ID"
// @Success 200 {object} SuccessResponse{data=models.ReservationQueueResponse}
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/books/{id}/reservations [get]
func (h *ReservationHandler) Queue(c *gin.Context) {
	bookID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	queue, err := h.reservationService.Queue(c.Request.Context(), bookID, time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    queue,
	})
}

// NextInQueue handles getting the head of a title's queue
// @Summary Get the next reservation
// @Description Get the reservation at the head of a title's queue, if any
// @Tags reservations
// @Produce json
// @Param id path int true "Book ID"
// @Success 200 {object} SuccessResponse{data=models.ReservationResponse}
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/books/{id}/reservations/next [get]
func (h *ReservationHandler) NextInQueue(c *gin.Context) {
	bookID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	reservation, err := h.reservationService.NextInQueue(c.Request.Context(), bookID, time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}

	if reservation == nil {
		c.JSON(http.StatusOK, SuccessResponse{
			Success: true,
			Message: "No active reservations for this title",
		})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    reservation,
	})
}

// MarkNotified handles flagging a reservation holder as notified
// @Summary Mark a reservation notified
// @Description Record that the reservation holder has been told a copy is ready
// @Tags reservations
// @Produce json
// @Param id path int true "Reservation ID"
// @Success 200 {object} SuccessResponse{data=models.ReservationResponse}
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/reservations/{id}/notify [post]
func (h *ReservationHandler) MarkNotified(c *gin.Context) {
	reservationID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	reservation, err := h.reservationService.MarkNotified(c.Request.Context(), reservationID, time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    reservation,
		Message: "Reservation marked as notified",
	})
}

// ExpireReservations handles finalizing expired reservations
// @Summary Expire stale reservations
// @Description Finalize active reservations past their expiry and compact queues
// @Tags reservations
// @Produce json
// @Success 200 {object} SuccessResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/reservations/expire [post]
func (h *ReservationHandler) ExpireReservations(c *gin.Context) {
	expired, err := h.reservationService.ExpireReservations(c.Request.Context(), time.Now().UTC())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    gin.H{"expired": expired},
		Message: "Expired reservations processed",
	})
}
