package api

import (
	"github.com/meterwise/costops/internal/models"
	"github.com/meterwise/costops/internal/services/aggregation"
	"github.com/meterwise/costops/internal/services/storage"

	"github.com/gofiber/fiber/v2"
)

// CostsHandler serves multi-dimensional aggregation over stored records.
type CostsHandler struct {
	store      *storage.CostStore
	aggregator *aggregation.Aggregator
}

func NewCostsHandler(store *storage.CostStore, agg *aggregation.Aggregator) *CostsHandler {
	return &CostsHandler{
		store:      store,
		aggregator: agg,
	}
}

func (h *CostsHandler) RegisterRoutes(app *fiber.App, basePath string) {
	group := app.Group(basePath)
	group.Post("/aggregate", h.Aggregate)
}

func (h *CostsHandler) Aggregate(c *fiber.Ctx) error {
	var req models.AggregationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	records, err := h.store.Query(c.Context(), storage.QueryFilter{
		Start:      req.Start,
		End:        req.End,
		Provider:   req.Filters["provider"],
		ModelID:    req.Filters["model"],
		ProjectID:  req.Filters["project"],
		CostCenter: req.Filters["cost_center"],
		TeamID:     req.Filters["team"],
		Region:     req.Filters["region"],
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to query cost records",
		})
	}

	result, err := h.aggregator.Aggregate(records, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}
