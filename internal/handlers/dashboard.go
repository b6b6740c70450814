package handlers

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seuros/leadtrack/internal/logging"
	"github.com/seuros/leadtrack/internal/metrics"
	"github.com/seuros/leadtrack/internal/middleware"
	"github.com/seuros/leadtrack/internal/models"
	"github.com/seuros/leadtrack/internal/realtime"
)

// Dashboard serves the authenticated /api/dashboard routes. Every route
// that names a website runs the ownership check before touching its data.
type Dashboard struct {
	store   *models.Store
	hub     *realtime.Hub
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewDashboard(store *models.Store, hub *realtime.Hub, m *metrics.Metrics) *Dashboard {
	return &Dashboard{
		store:   store,
		hub:     hub,
		metrics: m,
		log:     logging.Named("dashboard"),
	}
}

// Register mounts the dashboard routes on r. Authentication is the
// caller's concern.
func (d *Dashboard) Register(r fiber.Router) {
	r.Get("/websites", d.ListWebsites)
	r.Post("/websites", d.CreateWebsite)
	r.Put("/websites/:id", d.UpdateWebsite)
	r.Delete("/websites/:id", d.DeleteWebsite)

	r.Get("/websites/:id/api-keys", d.ListAPIKeys)
	r.Post("/websites/:id/api-keys", d.CreateAPIKey)
	r.Patch("/websites/:id/api-keys/:key_id", d.SetAPIKeyEnabled)
	r.Delete("/websites/:id/api-keys/:key_id", d.DeleteAPIKey)

	r.Post("/conversions", d.CreateConversion)
	r.Get("/websites/:id/conversions", d.ListConversions)
	r.Put("/websites/:id/conversions/:conversion_id", d.UpdateConversion)
	r.Delete("/websites/:id/conversions/:conversion_id", d.DeleteConversion)

	r.Get("/websites/:id/leads", d.ListLeads)
	r.Get("/websites/:id/leads/:lead_id/events", d.ListLeadEvents)

	r.Get("/websites/:id/live", d.LiveUpgrade, d.LiveFeed())
}

// ownedWebsite resolves the :id param to a website the caller owns.
func (d *Dashboard) ownedWebsite(c fiber.Ctx) (*models.Website, error) {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return nil, err
	}
	websiteID, err := uuidParam(c, "id")
	if err != nil {
		return nil, err
	}
	return d.store.VerifyWebsiteOwnership(c.Context(), websiteID, userID)
}

func (d *Dashboard) ListWebsites(c fiber.Ctx) error {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return respondError(c, err)
	}
	websites, err := d.store.ListWebsites(c.Context(), userID)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusOK, "websites", websites)
}

func (d *Dashboard) CreateWebsite(c fiber.Ctx) error {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return respondError(c, err)
	}
	var in models.WebsiteInput
	if err := bindBody(c, &in); err != nil {
		return respondError(c, err)
	}
	website, err := d.store.CreateWebsite(c.Context(), userID, in)
	if err != nil {
		return respondError(c, err)
	}
	d.log.Info("website created", zap.Stringer("website_id", website.ID), zap.Stringer("user_id", userID))
	return ok(c, fiber.StatusCreated, "website", website)
}

func (d *Dashboard) UpdateWebsite(c fiber.Ctx) error {
	owned, err := d.ownedWebsite(c)
	if err != nil {
		return respondError(c, err)
	}
	var in models.WebsiteInput
	if err := bindBody(c, &in); err != nil {
		return respondError(c, err)
	}
	website, err := d.store.UpdateWebsite(c.Context(), owned.ID, owned.UserID, in)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusOK, "website", website)
}

func (d *Dashboard) DeleteWebsite(c fiber.Ctx) error {
	website, err := d.ownedWebsite(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := d.store.DeleteWebsite(c.Context(), website.ID, website.UserID); err != nil {
		return respondError(c, err)
	}
	d.log.Info("website deleted", zap.Stringer("website_id", website.ID), zap.Stringer("user_id", website.UserID))
	return ok(c, fiber.StatusOK, "deleted", website.ID)
}

func (d *Dashboard) ListAPIKeys(c fiber.Ctx) error {
	website, err := d.ownedWebsite(c)
	if err != nil {
		return respondError(c, err)
	}
	keys, err := d.store.ListAPIKeys(c.Context(), website.ID)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusOK, "api_keys", keys)
}

// CreateAPIKey returns the full key. It is not stored and cannot be shown again.
func (d *Dashboard) CreateAPIKey(c fiber.Ctx) error {
	website, err := d.ownedWebsite(c)
	if err != nil {
		return respondError(c, err)
	}
	var body struct {
		Name string `json:"name"`
	}
	if len(c.Body()) > 0 {
		if err := bindBody(c, &body); err != nil {
			return respondError(c, err)
		}
	}
	created, err := d.store.CreateAPIKey(c.Context(), website.ID, body.Name)
	if err != nil {
		return respondError(c, err)
	}
	d.log.Info("api key created", zap.Stringer("website_id", website.ID), zap.Stringer("key_id", created.APIKey.ID))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"key":     created.FullKey,
		"api_key": created.APIKey,
	})
}

func (d *Dashboard) SetAPIKeyEnabled(c fiber.Ctx) error {
	website, err := d.ownedWebsite(c)
	if err != nil {
		return respondError(c, err)
	}
	keyID, err := uuidParam(c, "key_id")
	if err != nil {
		return respondError(c, err)
	}
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := bindBody(c, &body); err != nil {
		return respondError(c, err)
	}
	if body.Enabled == nil {
		return respondError(c, models.NewValidationError("enabled", "is required"))
	}
	key, err := d.store.SetAPIKeyEnabled(c.Context(), keyID, website.ID, *body.Enabled)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusOK, "api_key", key)
}

func (d *Dashboard) DeleteAPIKey(c fiber.Ctx) error {
	website, err := d.ownedWebsite(c)
	if err != nil {
		return respondError(c, err)
	}
	keyID, err := uuidParam(c, "key_id")
	if err != nil {
		return respondError(c, err)
	}
	if err := d.store.DeleteAPIKey(c.Context(), keyID, website.ID); err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusOK, "deleted", keyID)
}

// CreateConversion takes website_id from the body. A missing website_id is
// rejected before any lookup.
func (d *Dashboard) CreateConversion(c fiber.Ctx) error {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return respondError(c, err)
	}
	var in models.ConversionInput
	if err := bindBody(c, &in); err != nil {
		return respondError(c, err)
	}
	in, err = in.Normalize()
	if in.WebsiteID == "" {
		return respondError(c, models.NewValidationError("website_id", "is required"))
	}
	if err != nil {
		return respondError(c, err)
	}
	websiteID, err := uuid.Parse(in.WebsiteID)
	if err != nil {
		return respondError(c, models.NewValidationError("website_id", "must be a valid UUID"))
	}

	website, err := d.store.VerifyWebsiteOwnership(c.Context(), websiteID, userID)
	if err != nil {
		return respondError(c, err)
	}
	conversion, err := d.store.CreateConversion(c.Context(), website.ID, in)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusCreated, "conversion", conversion)
}

func (d *Dashboard) ListConversions(c fiber.Ctx) error {
	website, err := d.ownedWebsite(c)
	if err != nil {
		return respondError(c, err)
	}
	conversions, err := d.store.ListConversions(c.Context(), website.ID)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusOK, "conversions", conversions)
}

func (d *Dashboard) UpdateConversion(c fiber.Ctx) error {
	website, err := d.ownedWebsite(c)
	if err != nil {
		return respondError(c, err)
	}
	conversionID, err := uuidParam(c, "conversion_id")
	if err != nil {
		return respondError(c, err)
	}
	var in models.ConversionInput
	if err := bindBody(c, &in); err != nil {
		return respondError(c, err)
	}
	conversion, err := d.store.UpdateConversion(c.Context(), conversionID, website.ID, in)
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusOK, "conversion", conversion)
}

func (d *Dashboard) DeleteConversion(c fiber.Ctx) error {
	website, err := d.ownedWebsite(c)
	if err != nil {
		return respondError(c, err)
	}
	conversionID, err := uuidParam(c, "conversion_id")
	if err != nil {
		return respondError(c, err)
	}
	if err := d.store.DeleteConversion(c.Context(), conversionID, website.ID); err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusOK, "deleted", conversionID)
}

// ListLeads → GET /websites/:id/leads?limit=&offset=
func (d *Dashboard) ListLeads(c fiber.Ctx) error {
	website, err := d.ownedWebsite(c)
	if err != nil {
		return respondError(c, err)
	}
	leads, err := d.store.ListLeads(c.Context(), website.ID, intQuery(c, "limit"), intQuery(c, "offset"))
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusOK, "leads", leads)
}

// ListLeadEvents → GET /websites/:id/leads/:lead_id/events?limit=
func (d *Dashboard) ListLeadEvents(c fiber.Ctx) error {
	website, err := d.ownedWebsite(c)
	if err != nil {
		return respondError(c, err)
	}
	leadID, err := uuidParam(c, "lead_id")
	if err != nil {
		return respondError(c, err)
	}
	if _, err := d.store.GetLead(c.Context(), leadID, website.ID); err != nil {
		return respondError(c, err)
	}
	events, err := d.store.ListLeadEvents(c.Context(), leadID, website.ID, intQuery(c, "limit"))
	if err != nil {
		return respondError(c, err)
	}
	return ok(c, fiber.StatusOK, "events", events)
}
