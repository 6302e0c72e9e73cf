package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/phoneprice/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// HealthInfo describes the running configuration.
type HealthInfo struct {
	StoreDriver string
	FetchEngine string
	Market      string
}

// Health returns a handler for GET /api/v1/health.
func Health(info HealthInfo, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.HealthResponse{
			Status:      "healthy",
			Uptime:      time.Since(startTime).Round(time.Second).String(),
			StoreDriver: info.StoreDriver,
			FetchEngine: info.FetchEngine,
			Market:      info.Market,
			Version:     Version,
		})
	}
}
