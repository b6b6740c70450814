package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/seuros/leadtrack/internal/models"
)

const apiKeyLocal = "api_key"

// APIKeyAuth requires an ingestion key in the request headers. It only checks
// presence and shape; whether the key is enabled and bound to the target
// website is decided during ingestion, where the website id is known.
func APIKeyAuth(c fiber.Ctx) error {
	key := extractAPIKey(c)
	if key == "" {
		return deny(c, fiber.StatusUnauthorized, models.CodeInvalidKey, "Missing API key")
	}
	if !models.LooksLikeAPIKey(key) {
		return deny(c, fiber.StatusUnauthorized, models.CodeInvalidKey, "Invalid API key format")
	}

	c.Locals(apiKeyLocal, key)
	return c.Next()
}

// extractAPIKey reads "Authorization: Bearer <key>" or "X-API-Key: <key>".
func extractAPIKey(c fiber.Ctx) string {
	if token := bearerToken(c); token != "" {
		return token
	}
	return strings.TrimSpace(c.Get("X-API-Key"))
}

func bearerToken(c fiber.Ctx) string {
	auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// GetAPIKey returns the raw key stored by APIKeyAuth.
func GetAPIKey(c fiber.Ctx) string {
	key, _ := c.Locals(apiKeyLocal).(string)
	return key
}

func deny(c fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   message,
		"code":    code,
	})
}
