package ingest

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/seuros/leadtrack/internal/models"
)

const (
	MaxURLSize       = 2000
	MaxEventTypeSize = 255
	MaxFieldSize     = 320
	MaxProperties    = 100
	MaxJSONDepth     = 5
)

// Request is the ingestion body. Only Event is required beyond the key and
// website; Lead and Data may be omitted entirely.
type Request struct {
	Event     string         `json:"event"`
	URL       string         `json:"url"`
	WebsiteID string         `json:"website_id"`
	Lead      *LeadPayload   `json:"lead,omitempty"`
	Data      models.JSONMap `json:"data,omitempty"`
}

// LeadPayload identifies the lead an event belongs to.
type LeadPayload struct {
	Email      *string        `json:"email,omitempty"`
	Name       *string        `json:"name,omitempty"`
	Phone      *string        `json:"phone,omitempty"`
	CustomData models.JSONMap `json:"custom_data,omitempty"`
}

// Meta is request context the server derives itself.
type Meta struct {
	IP        string
	UserAgent string
}

// Validate checks payload shape. The event type vocabulary is open: any
// non-empty string is accepted.
func (r *Request) Validate() error {
	event := strings.TrimSpace(r.Event)
	if event == "" {
		return models.NewValidationError("event", "is required")
	}
	if len(event) > MaxEventTypeSize {
		return models.NewValidationError("event", fmt.Sprintf("exceeds maximum length of %d", MaxEventTypeSize))
	}
	if len(r.URL) > MaxURLSize {
		return models.NewValidationError("url", fmt.Sprintf("exceeds maximum length of %d", MaxURLSize))
	}
	if err := validateProperties("data", r.Data); err != nil {
		return err
	}
	if r.Lead == nil {
		return nil
	}
	for field, v := range map[string]*string{"lead.email": r.Lead.Email, "lead.name": r.Lead.Name, "lead.phone": r.Lead.Phone} {
		if v != nil && len(*v) > MaxFieldSize {
			return models.NewValidationError(field, fmt.Sprintf("exceeds maximum length of %d", MaxFieldSize))
		}
	}
	return validateProperties("lead.custom_data", r.Lead.CustomData)
}

func validateProperties(field string, props models.JSONMap) error {
	if len(props) > MaxProperties {
		return models.NewValidationError(field, fmt.Sprintf("properties exceed limit of %d", MaxProperties))
	}
	if depth := getJSONDepth(map[string]any(props), 0); depth > MaxJSONDepth {
		return models.NewValidationError(field, fmt.Sprintf("exceeds max depth of %d", MaxJSONDepth))
	}
	return nil
}

// getJSONDepth counts nesting levels of objects and arrays.
func getJSONDepth(v any, current int) int {
	deepest := current
	switch t := v.(type) {
	case map[string]any:
		deepest = current + 1
		for _, child := range t {
			deepest = max(deepest, getJSONDepth(child, current+1))
		}
	case models.JSONMap:
		return getJSONDepth(map[string]any(t), current)
	case []any:
		deepest = current + 1
		for _, child := range t {
			deepest = max(deepest, getJSONDepth(child, current+1))
		}
	}
	return deepest
}

func (r *Request) leadInput(websiteID uuid.UUID, ip string) models.LeadInput {
	in := models.LeadInput{WebsiteID: websiteID, IP: ip}
	if r.Lead != nil {
		in.Email = r.Lead.Email
		in.Name = r.Lead.Name
		in.Phone = r.Lead.Phone
		in.CustomData = r.Lead.CustomData
	}
	return in
}
