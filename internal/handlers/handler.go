package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"sensor-bench/internal/models"
)

// Health is a simple liveness endpoint.
func Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func respondErr(c *gin.Context, start time.Time, status int, err error) {
	c.JSON(status, models.ErrorResponse{
		Error:   err.Error(),
		TotalMs: time.Since(start).Milliseconds(),
	})
}

func uptime(since time.Time) float64 {
	return time.Since(since).Seconds()
}
