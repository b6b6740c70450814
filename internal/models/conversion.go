package models

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Conversion marks an event type as a goal for a website. Configuration is
// opaque to the server (loadOn, triggerConfig, productInfo, advanced).
type Conversion struct {
	ID            uuid.UUID `json:"id"`
	WebsiteID     uuid.UUID `json:"website_id"`
	Title         string    `json:"title"`
	TriggerType   string    `json:"trigger_type"`
	EventType     string    `json:"event_type"`
	Configuration JSONMap   `json:"configuration"`
	CreatedAt     time.Time `json:"created_at"`
}

// ConversionInput is the create/update payload.
type ConversionInput struct {
	WebsiteID     string  `json:"website_id"`
	Title         string  `json:"title"`
	TriggerType   string  `json:"trigger_type"`
	EventType     string  `json:"event_type"`
	Configuration JSONMap `json:"configuration"`
}

// Normalize trims and validates everything except website_id.
func (in ConversionInput) Normalize() (ConversionInput, error) {
	out := ConversionInput{
		WebsiteID:     strings.TrimSpace(in.WebsiteID),
		Title:         strings.TrimSpace(in.Title),
		TriggerType:   strings.TrimSpace(in.TriggerType),
		EventType:     strings.TrimSpace(in.EventType),
		Configuration: in.Configuration.OrEmpty(),
	}
	switch {
	case out.Title == "":
		return out, NewValidationError("title", "is required")
	case len(out.Title) > 200:
		return out, NewValidationError("title", "must be at most 200 characters")
	case out.TriggerType == "":
		return out, NewValidationError("trigger_type", "is required")
	case out.EventType == "":
		return out, NewValidationError("event_type", "is required")
	}
	return out, nil
}

const conversionColumns = `id, website_id, title, trigger_type, event_type, configuration, created_at`

func scanConversion(row scanner) (*Conversion, error) {
	var c Conversion
	err := row.Scan(&c.ID, &c.WebsiteID, &c.Title, &c.TriggerType, &c.EventType, &c.Configuration, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateConversion inserts a conversion for websiteID. Callers verify
// ownership first.
func (s *Store) CreateConversion(ctx context.Context, websiteID uuid.UUID, in ConversionInput) (*Conversion, error) {
	in, err := in.Normalize()
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO conversions (id, website_id, title, trigger_type, event_type, configuration)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + conversionColumns

	c, err := scanConversion(s.db.QueryRowContext(ctx, query,
		uuid.New(), websiteID, in.Title, in.TriggerType, in.EventType, in.Configuration))
	if err != nil {
		return nil, persistErr("create conversion", err)
	}
	return c, nil
}

// ListConversions returns the website's conversions, newest first.
func (s *Store) ListConversions(ctx context.Context, websiteID uuid.UUID) ([]*Conversion, error) {
	query := `SELECT ` + conversionColumns + ` FROM conversions WHERE website_id = $1 ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, websiteID)
	if err != nil {
		return nil, persistErr("list conversions", err)
	}
	defer func() { _ = rows.Close() }()

	out := []*Conversion{}
	for rows.Next() {
		c, err := scanConversion(rows)
		if err != nil {
			return nil, persistErr("list conversions", err)
		}
		out = append(out, c)
	}
	return out, persistErr("list conversions", rows.Err())
}

// UpdateConversion overwrites a conversion of websiteID.
func (s *Store) UpdateConversion(ctx context.Context, conversionID, websiteID uuid.UUID, in ConversionInput) (*Conversion, error) {
	in, err := in.Normalize()
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE conversions SET title = $3, trigger_type = $4, event_type = $5, configuration = $6
		WHERE id = $1 AND website_id = $2
		RETURNING ` + conversionColumns

	c, err := scanConversion(s.db.QueryRowContext(ctx, query,
		conversionID, websiteID, in.Title, in.TriggerType, in.EventType, in.Configuration))
	if isNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistErr("update conversion", err)
	}
	return c, nil
}

// DeleteConversion removes a conversion of websiteID.
func (s *Store) DeleteConversion(ctx context.Context, conversionID, websiteID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversions WHERE id = $1 AND website_id = $2`, conversionID, websiteID)
	if err != nil {
		return persistErr("delete conversion", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
