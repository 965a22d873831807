package api

import (
	"github.com/meterwise/costops/internal/models"
	"github.com/meterwise/costops/internal/services/analytics"

	"github.com/gofiber/fiber/v2"
)

// AnalyticsHandler serves the statistical chain: forecasts, anomaly
// reports and trend analyses over stored cost series.
type AnalyticsHandler struct {
	service *analytics.Service
}

func NewAnalyticsHandler(service *analytics.Service) *AnalyticsHandler {
	return &AnalyticsHandler{service: service}
}

func (h *AnalyticsHandler) RegisterRoutes(app *fiber.App, basePath string) {
	group := app.Group(basePath)
	group.Post("/forecast", h.Forecast)
	group.Post("/anomalies", h.Anomalies)
	group.Post("/trends", h.Trends)
}

func (h *AnalyticsHandler) Forecast(c *fiber.Ctx) error {
	var req models.ForecastRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	result, err := h.service.Forecast(c.Context(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}

func (h *AnalyticsHandler) Anomalies(c *fiber.Ctx) error {
	var req models.AnomalyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	report, err := h.service.DetectAnomalies(c.Context(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(report)
}

func (h *AnalyticsHandler) Trends(c *fiber.Ctx) error {
	var req models.ForecastRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	analysis, err := h.service.AnalyzeTrend(c.Context(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(analysis)
}
