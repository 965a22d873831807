package api

import (
	"github.com/meterwise/costops/internal/models"
	"github.com/meterwise/costops/internal/services/analytics"

	"github.com/gofiber/fiber/v2"
)

// BudgetsHandler serves end-of-period spend projections.
type BudgetsHandler struct {
	service *analytics.Service
}

func NewBudgetsHandler(service *analytics.Service) *BudgetsHandler {
	return &BudgetsHandler{service: service}
}

func (h *BudgetsHandler) RegisterRoutes(app *fiber.App, basePath string) {
	group := app.Group(basePath)
	group.Post("/projection", h.Projection)
}

func (h *BudgetsHandler) Projection(c *fiber.Ctx) error {
	var req models.BudgetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	projection, err := h.service.ProjectBudget(c.Context(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(projection)
}
