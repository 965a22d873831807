package api

import (
	"github.com/meterwise/costops/internal/models"
	"github.com/meterwise/costops/internal/services/pricing"

	"github.com/gofiber/fiber/v2"
)

// PricingHandler publishes pricing rows. Rows are append-only; corrections
// arrive as new rows with later effective dates.
type PricingHandler struct {
	store *pricing.GormStore
}

func NewPricingHandler(store *pricing.GormStore) *PricingHandler {
	return &PricingHandler{store: store}
}

func (h *PricingHandler) RegisterRoutes(app *fiber.App, basePath string) {
	group := app.Group(basePath)
	group.Post("/", h.Publish)
}

func (h *PricingHandler) Publish(c *fiber.Ctx) error {
	var table models.PricingTable
	if err := c.BodyParser(&table); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if table.Provider == "" || table.ModelID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "provider and model_id are required",
		})
	}
	if table.InputPricePerMillion.IsNegative() || table.OutputPricePerMillion.IsNegative() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "prices cannot be negative",
		})
	}

	if err := h.store.Publish(c.Context(), &table); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to publish pricing table",
		})
	}
	return c.Status(fiber.StatusCreated).JSON(table)
}
