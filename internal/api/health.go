package api

import (
	"time"

	"github.com/meterwise/costops/internal/services/pipeline"
	"github.com/meterwise/costops/internal/services/storage"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler reports service health: database connectivity plus the
// pipeline's running counters.
type HealthHandler struct {
	db       *storage.DB
	pipeline *pipeline.Pipeline
}

func NewHealthHandler(db *storage.DB, p *pipeline.Pipeline) *HealthHandler {
	return &HealthHandler{db: db, pipeline: p}
}

func (h *HealthHandler) RegisterRoutes(app *fiber.App) {
	app.Get("/health", h.HealthCheck)
}

func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	dbStatus := "healthy"
	overallStatus := "healthy"
	statusCode := fiber.StatusOK

	if err := h.db.Ping(); err != nil {
		dbStatus = "unhealthy"
		overallStatus = "degraded"
		statusCode = fiber.StatusServiceUnavailable
	}

	return c.Status(statusCode).JSON(fiber.Map{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks": fiber.Map{
			"database": dbStatus,
		},
		"pipeline": h.pipeline.Stats(),
	})
}
