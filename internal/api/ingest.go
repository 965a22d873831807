package api

import (
	"strconv"
	"time"

	"github.com/meterwise/costops/internal/models"
	"github.com/meterwise/costops/internal/services/pipeline"
	"github.com/meterwise/costops/internal/services/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const maxBatchSize = 1000

// IngestHandler accepts raw usage events and feeds them to the pipeline.
// Single events are processed synchronously so the caller sees the outcome;
// batches are fanned out to the worker pool.
type IngestHandler struct {
	pipeline *pipeline.Pipeline
	worker   *pipeline.Worker
	store    *storage.CostStore
}

func NewIngestHandler(p *pipeline.Pipeline, w *pipeline.Worker, store *storage.CostStore) *IngestHandler {
	return &IngestHandler{
		pipeline: p,
		worker:   w,
		store:    store,
	}
}

func (h *IngestHandler) RegisterRoutes(app *fiber.App, basePath string) {
	group := app.Group(basePath)
	group.Post("/", h.Ingest)
	group.Post("/batch", h.IngestBatch)
	group.Get("/dead-letters", h.DeadLetters)
}

func (h *IngestHandler) Ingest(c *fiber.Ctx) error {
	var event models.IngestEvent
	if err := c.BodyParser(&event); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	stampEvent(&event)

	result, err := h.pipeline.Process(c.Context(), event)
	if err != nil {
		return respondError(c, err)
	}

	status := fiber.StatusCreated
	if result.Outcome != pipeline.OutcomeStored {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(result)
}

func (h *IngestHandler) IngestBatch(c *fiber.Ctx) error {
	var events []models.IngestEvent
	if err := c.BodyParser(&events); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if len(events) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Batch is empty",
		})
	}
	if len(events) > maxBatchSize {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Batch exceeds maximum size of " + strconv.Itoa(maxBatchSize),
		})
	}

	accepted := 0
	for i := range events {
		stampEvent(&events[i])
		if h.worker.Submit(events[i]) {
			accepted++
		}
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"accepted": accepted,
		"dropped":  len(events) - accepted,
	})
}

// DeadLetters lists recent dead-lettered events for inspection and replay.
func (h *IngestHandler) DeadLetters(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "100"))

	letters, err := h.store.DeadLetters(c.Context(), limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list dead-lettered events",
		})
	}
	return c.JSON(fiber.Map{
		"dead_letters": letters,
		"count":        len(letters),
	})
}

func stampEvent(event *models.IngestEvent) {
	if event.RequestID == "" {
		event.RequestID = uuid.NewString()
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now().UTC()
	}
}
