package cli

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/seuros/leadtrack/internal/models"
)

const maxBodyBytes = 1 << 20

// createFiberConfig returns Fiber configuration. Errors that escape the
// handlers are rendered in the same JSON envelope the handlers use.
func createFiberConfig(appName string) fiber.Config {
	return fiber.Config{
		AppName:      appName,
		BodyLimit:    maxBodyBytes,
		IdleTimeout:  60 * time.Second,
		ErrorHandler: jsonErrorHandler,
	}
}

func jsonErrorHandler(c fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	message := "Internal server error"

	var fe *fiber.Error
	if errors.As(err, &fe) {
		status = fe.Code
		message = fe.Message
	}

	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
		"code":    codeForStatus(status),
	})
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest, fiber.StatusRequestEntityTooLarge, fiber.StatusUnprocessableEntity:
		return models.CodeValidation
	case fiber.StatusUnauthorized:
		return models.CodeUnauthenticated
	case fiber.StatusForbidden:
		return models.CodePermissionDenied
	case fiber.StatusNotFound, fiber.StatusMethodNotAllowed:
		return models.CodeNotFound
	default:
		return models.CodeInternal
	}
}
