package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/phoneprice/models"
)

// respondError maps an error to the correct HTTP status code and writes
// a structured JSON error response.
func respondError(c *gin.Context, err error) {
	e := models.AsError(err)
	c.JSON(mapErrorToStatus(e), models.ErrorResponse{Error: e.ToDetail()})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.Error) int {
	switch e.Code {
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeNotFound:
		return http.StatusNotFound // 404
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeFetchFailed:
		return http.StatusBadGateway // 502
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	default:
		return http.StatusInternalServerError // 500
	}
}
