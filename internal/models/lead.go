package models

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Lead is a contact captured for a website. Within a website, leads with an
// email are unique by that email; leads without one never merge.
type Lead struct {
	ID               uuid.UUID `json:"id"`
	WebsiteID        uuid.UUID `json:"website_id"`
	Name             *string   `json:"name"`
	Email            *string   `json:"email"`
	Phone            *string   `json:"phone"`
	CustomData       JSONMap   `json:"custom_data"`
	LastIP           *string   `json:"last_ip,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	EventsCount      *int64    `json:"events_count,omitempty"`
	ConversionsCount *int64    `json:"conversions_count,omitempty"`
}

// LeadInput is one upsert request. IP is derived server side, never from
// the payload.
type LeadInput struct {
	WebsiteID  uuid.UUID
	Name       *string
	Email      *string
	Phone      *string
	CustomData JSONMap
	IP         string
}

const leadColumns = `id, website_id, name, email, phone, custom_data, last_ip, created_at, updated_at`

func scanLead(row scanner, extra ...any) (*Lead, error) {
	var l Lead
	dest := append([]any{
		&l.ID, &l.WebsiteID, &l.Name, &l.Email, &l.Phone, &l.CustomData, &l.LastIP, &l.CreatedAt, &l.UpdatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &l, nil
}

const (
	insertLeadSQL = `
		INSERT INTO leads (id, website_id, name, email, phone, custom_data, last_ip)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
		RETURNING ` + leadColumns

	// Whole-row overwrite: fields absent from the new call are cleared.
	// last_ip is not caller data, so an empty value keeps the stored one.
	upsertLeadSQL = `
		INSERT INTO leads (id, website_id, name, email, phone, custom_data, last_ip)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
		ON CONFLICT (website_id, email) DO UPDATE SET
			name = EXCLUDED.name,
			phone = EXCLUDED.phone,
			custom_data = EXCLUDED.custom_data,
			last_ip = COALESCE(EXCLUDED.last_ip, leads.last_ip),
			updated_at = NOW()
		RETURNING ` + leadColumns
)

// UpsertLead writes the lead in a single statement. With an email the row for
// (website_id, email) is created or overwritten; without one a new row is
// always inserted.
func (s *Store) UpsertLead(ctx context.Context, in LeadInput) (*Lead, error) {
	email := trimOptional(in.Email)
	query := insertLeadSQL
	if email != nil {
		query = upsertLeadSQL
	}

	lead, err := scanLead(s.db.QueryRowContext(ctx, query,
		uuid.New(),
		in.WebsiteID,
		trimOptional(in.Name),
		email,
		trimOptional(in.Phone),
		in.CustomData.OrEmpty(),
		in.IP,
	))
	if err != nil {
		return nil, persistErr("upsert lead", err)
	}
	return lead, nil
}

// ListLeads pages through a website's leads, newest first, with event and
// conversion counts. A conversion is an event whose type matches one of the
// website's conversion definitions.
func (s *Store) ListLeads(ctx context.Context, websiteID uuid.UUID, limit, offset int) ([]*Lead, error) {
	query := `
		SELECT l.id, l.website_id, l.name, l.email, l.phone, l.custom_data, l.last_ip, l.created_at, l.updated_at,
			(SELECT COUNT(*) FROM events e WHERE e.lead_id = l.id),
			(SELECT COUNT(*) FROM events e
				WHERE e.lead_id = l.id
				  AND e.event_type IN (SELECT c.event_type FROM conversions c WHERE c.website_id = l.website_id))
		FROM leads l
		WHERE l.website_id = $1
		ORDER BY l.created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := s.db.QueryContext(ctx, query, websiteID, clampLimit(limit), max(offset, 0))
	if err != nil {
		return nil, persistErr("list leads", err)
	}
	defer func() { _ = rows.Close() }()

	leads := []*Lead{}
	for rows.Next() {
		var events, conversions int64
		l, err := scanLead(rows, &events, &conversions)
		if err != nil {
			return nil, persistErr("list leads", err)
		}
		l.EventsCount = &events
		l.ConversionsCount = &conversions
		leads = append(leads, l)
	}
	return leads, persistErr("list leads", rows.Err())
}

// GetLead loads a lead scoped to its website.
func (s *Store) GetLead(ctx context.Context, leadID, websiteID uuid.UUID) (*Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id = $1 AND website_id = $2`

	l, err := scanLead(s.db.QueryRowContext(ctx, query, leadID, websiteID))
	if isNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistErr("get lead", err)
	}
	return l, nil
}

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPageSize
	case limit > MaxPageSize:
		return MaxPageSize
	default:
		return limit
	}
}
