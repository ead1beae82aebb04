package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kibetrono/slms/internal/models"
)

// Error codes surfaced in error envelopes.
const (
	ErrorCodeValidation    = "VALIDATION_ERROR"
	ErrorCodeStateConflict = "STATE_CONFLICT"
	ErrorCodeNotFound      = "NOT_FOUND"
	ErrorCodeInternal      = "INTERNAL_ERROR"
)

// errorStatus maps the service error taxonomy to an HTTP status and error
// code. Anything outside the taxonomy is an internal error.
func errorStatus(err error) (int, string) {
	switch {
	case models.IsValidation(err):
		return http.StatusBadRequest, ErrorCodeValidation
	case models.IsStateConflict(err):
		return http.StatusConflict, ErrorCodeStateConflict
	case models.IsNotFound(err):
		return http.StatusNotFound, ErrorCodeNotFound
	default:
		return http.StatusInternalServerError, ErrorCodeInternal
	}
}

func respondError(c *gin.Context, err error) {
	statusCode, errorCode := errorStatus(err)
	message := err.Error()
	if statusCode == http.StatusInternalServerError {
		// Storage details stay out of client responses.
		message = "An unexpected error occurred"
	}
	c.JSON(statusCode, ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Code:    errorCode,
			Message: message,
		},
	})
}

func respondBindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Code:    ErrorCodeValidation,
			Message: "Invalid request data",
			Details: err.Error(),
		},
	})
}

// parseIDParam reads a positive int32 path parameter. A second return of
// false means the error response has already been written.
func parseIDParam(c *gin.Context, name string) (int32, bool) {
	value, err := strconv.ParseInt(c.Param(name), 10, 32)
	if err != nil || value < 1 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Success: false,
			Error: ErrorDetail{
				Code:    ErrorCodeValidation,
				Message: "Invalid " + name,
				Details: name + " must be a positive integer",
			},
		})
		return 0, false
	}
	return int32(value), true
}
