package handlers

import (
	"context"

	"github.com/gofiber/fiber/v3"

	"github.com/seuros/leadtrack/internal/ingest"
	"github.com/seuros/leadtrack/internal/middleware"
)

// Ingester is the part of ingest.Service the HTTP layer needs.
type Ingester interface {
	Ingest(ctx context.Context, rawKey string, req ingest.Request, meta ingest.Meta) (*ingest.Result, error)
	Reject(ctx context.Context, rawKey, websiteID string, cause error) error
}

// IngestHandler serves POST /api/v1/events.
type IngestHandler struct {
	svc       Ingester
	proxyMode string
}

func NewIngestHandler(svc Ingester, proxyMode string) *IngestHandler {
	return &IngestHandler{svc: svc, proxyMode: proxyMode}
}

// Handle expects APIKeyAuth to have run.
func (h *IngestHandler) Handle(c fiber.Ctx) error {
	var req ingest.Request
	if err := bindBody(c, &req); err != nil {
		return respondError(c, h.svc.Reject(c.Context(), middleware.GetAPIKey(c), websiteHint(c), err))
	}

	meta := ingest.Meta{
		IP:        middleware.ClientIP(c, h.proxyMode),
		UserAgent: c.Get(fiber.HeaderUserAgent),
	}
	res, err := h.svc.Ingest(c.Context(), middleware.GetAPIKey(c), req, meta)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusOK, "lead", res.Lead)
}

// websiteHint pulls website_id out of a body that failed to bind, so a key
// for another website still reports the mismatch.
func websiteHint(c fiber.Ctx) string {
	var hint struct {
		WebsiteID string `json:"website_id"`
	}
	if err := c.App().Config().JSONDecoder(c.Body(), &hint); err != nil {
		return ""
	}
	return hint.WebsiteID
}
