package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seuros/leadtrack/internal/logging"
	"github.com/seuros/leadtrack/internal/models"
)

var statusByCode = map[string]int{
	models.CodeInvalidKey:            fiber.StatusUnauthorized,
	models.CodeKeyWebsiteMismatch:    fiber.StatusForbidden,
	models.CodePermissionDenied:      fiber.StatusForbidden,
	models.CodeUnauthenticated:       fiber.StatusUnauthorized,
	models.CodeValidation:            fiber.StatusBadRequest,
	models.CodePersistence:           fiber.StatusInternalServerError,
	models.CodeAccountNotInitialized: fiber.StatusConflict,
	models.CodeNotFound:              fiber.StatusNotFound,
	models.CodeInternal:              fiber.StatusInternalServerError,
}

// StatusFor returns the HTTP status for an error code.
func StatusFor(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return fiber.StatusInternalServerError
}

// respondError writes {success:false, error, code}. Store failures are
// logged and their details withheld from the client.
func respondError(c fiber.Ctx, err error) error {
	code := models.ErrorKind(err)
	status := StatusFor(code)

	message := err.Error()
	if status >= fiber.StatusInternalServerError {
		logging.L().Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.String("code", code),
			zap.Error(err))
		message = "Internal server error"
		var persistence *models.PersistenceError
		if errors.As(err, &persistence) {
			message = "Failed to " + persistence.Op
		}
	}

	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
		"code":    code,
	})
}

func ok(c fiber.Ctx, status int, key string, value any) error {
	return c.Status(status).JSON(fiber.Map{
		"success": true,
		key:       value,
	})
}

func uuidParam(c fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, models.NewValidationError(name, "must be a valid UUID")
	}
	return id, nil
}

func intQuery(c fiber.Ctx, name string) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return 0
	}
	return n
}

// bindBody decodes the request body, reporting malformed input as a
// validation error.
func bindBody(c fiber.Ctx, out any) error {
	if err := c.Bind().Body(out); err != nil {
		return models.NewValidationError("", "Invalid JSON payload")
	}
	return nil
}
