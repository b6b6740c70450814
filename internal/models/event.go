package models

import (
	"context"
	"strings"
	"time"

	"github.com/biter777/countries"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Event is an immutable record of something a lead did. IDs are ULIDs so
// they sort by creation time.
type Event struct {
	ID        string    `json:"id"`
	WebsiteID uuid.UUID `json:"website_id"`
	LeadID    uuid.UUID `json:"lead_id"`
	EventType string    `json:"event_type"`
	PageURL   string    `json:"page_url"`
	Data      JSONMap   `json:"data"`
	Country   *string   `json:"country,omitempty"`
	City      *string   `json:"city,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EventInput is one event to record.
type EventInput struct {
	WebsiteID uuid.UUID
	LeadID    uuid.UUID
	EventType string
	PageURL   string
	Data      JSONMap
	Country   string
	City      string
}

// CountryName renders the stored ISO code as a readable name.
func (e *Event) CountryName() string {
	if e.Country == nil || *e.Country == "" {
		return ""
	}
	code := countries.ByName(*e.Country)
	if code == countries.Unknown {
		return *e.Country
	}
	return code.String()
}

const eventColumns = `id, website_id, lead_id, event_type, page_url, data, country, city, created_at`

func scanEvent(row scanner) (*Event, error) {
	var e Event
	err := row.Scan(&e.ID, &e.WebsiteID, &e.LeadID, &e.EventType, &e.PageURL, &e.Data, &e.Country, &e.City, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func newEventID() string {
	return ulid.Make().String()
}

// InsertEvent appends an event. There is no update path for events.
func (s *Store) InsertEvent(ctx context.Context, in EventInput) (*Event, error) {
	if strings.TrimSpace(in.EventType) == "" {
		return nil, NewValidationError("event", "is required")
	}

	query := `
		INSERT INTO events (id, website_id, lead_id, event_type, page_url, data, country, city)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), NULLIF($8, ''))
		RETURNING ` + eventColumns

	e, err := scanEvent(s.db.QueryRowContext(ctx, query,
		newEventID(),
		in.WebsiteID,
		in.LeadID,
		in.EventType,
		in.PageURL,
		in.Data.OrEmpty(),
		strings.ToUpper(in.Country),
		in.City,
	))
	if err != nil {
		return nil, persistErr("insert event", err)
	}
	return e, nil
}

// ListLeadEvents returns a lead's events, newest first.
func (s *Store) ListLeadEvents(ctx context.Context, leadID, websiteID uuid.UUID, limit int) ([]*Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE lead_id = $1 AND website_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`

	rows, err := s.db.QueryContext(ctx, query, leadID, websiteID, clampLimit(limit))
	if err != nil {
		return nil, persistErr("list events", err)
	}
	defer func() { _ = rows.Close() }()

	events := []*Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, persistErr("list events", err)
		}
		events = append(events, e)
	}
	return events, persistErr("list events", rows.Err())
}
