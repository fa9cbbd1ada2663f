package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/steadfast-labs/coverdocs/internal/health"
	"github.com/steadfast-labs/coverdocs/internal/models"
)

type HealthHandler struct {
	checker *health.Checker
}

func NewHealthHandler(checker *health.Checker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// HandleHealth serves GET /api/health, reflecting the upstream cluster
// status.
func (h *HealthHandler) HandleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	overall := h.checker.Overall(ctx)

	services := make(map[string]string, len(overall.Services))
	for _, svc := range overall.Services {
		services[svc.Name] = svc.Status
	}

	response := models.HealthResponse{
		Status:    overall.Status,
		Service:   "coverdocs-backend",
		Timestamp: time.Now().Format(time.RFC3339),
		Cluster:   overall.Cluster,
		Services:  services,
	}

	code := http.StatusOK
	if overall.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, response)
}
