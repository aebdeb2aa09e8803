package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tss-groundstation/stationd/internal/health"
)

// HealthHandler exposes the liveness/readiness/health endpoints consumed
// by the operator console and orchestration probes.
type HealthHandler struct {
	checker *health.Checker
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(checker *health.Checker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Health handles the general health check endpoint.
func (h *HealthHandler) Health(c *gin.Context) {
	report := h.checker.CheckHealth()

	statusCode := http.StatusOK
	if report.Status == health.StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, report)
}

// Ready handles the readiness probe endpoint.
func (h *HealthHandler) Ready(c *gin.Context) {
	report := h.checker.CheckReadiness()

	statusCode := http.StatusOK
	if report.Status != health.StatusHealthy {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, report)
}

// Live handles the liveness probe endpoint.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, h.checker.CheckLiveness())
}
