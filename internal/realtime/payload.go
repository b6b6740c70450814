package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/seuros/leadtrack/internal/models"
)

// Channel is the PostgreSQL NOTIFY channel carrying ingested events.
const Channel = "leadtrack_events"

// maxNotifyBytes stays under PostgreSQL's 8000 byte NOTIFY payload limit.
const maxNotifyBytes = 7900

// Payload is the message pushed to live dashboard subscribers.
type Payload struct {
	Type      string    `json:"type"`
	WebsiteID uuid.UUID `json:"website_id"`
	LeadID    uuid.UUID `json:"lead_id"`
	LeadEmail *string   `json:"lead_email,omitempty"`
	LeadName  *string   `json:"lead_name,omitempty"`
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	PageURL   string    `json:"page_url,omitempty"`
	Country   *string   `json:"country,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewEventPayload describes a freshly recorded event.
func NewEventPayload(lead *models.Lead, event *models.Event) Payload {
	return Payload{
		Type:      "event",
		WebsiteID: event.WebsiteID,
		LeadID:    lead.ID,
		LeadEmail: lead.Email,
		LeadName:  lead.Name,
		EventID:   event.ID,
		EventType: event.EventType,
		PageURL:   event.PageURL,
		Country:   event.Country,
		CreatedAt: event.CreatedAt,
	}
}

// Encode serializes p for NOTIFY, dropping the page URL if the result would
// not fit.
func (p Payload) Encode() (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	if len(b) > maxNotifyBytes {
		p.PageURL = ""
		if b, err = json.Marshal(p); err != nil {
			return "", err
		}
	}
	return string(b), nil
}

func DecodePayload(raw string) (Payload, error) {
	var p Payload
	err := json.Unmarshal([]byte(raw), &p)
	return p, err
}
