package api

import (
	"errors"

	"github.com/meterwise/costops/internal/models"

	"github.com/gofiber/fiber/v2"
)

// respondError maps an error onto the JSON error envelope, honoring the
// status code carried by structured application errors.
func respondError(c *fiber.Ctx, err error) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return c.Status(appErr.StatusCode).JSON(fiber.Map{
			"error":     appErr.Message,
			"type":      appErr.Type,
			"retryable": appErr.Retryable,
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal server error",
	})
}
