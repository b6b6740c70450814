package models

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Website is a tracked property owned by exactly one user.
type Website struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`
	Domain    string    `json:"domain"`
	PixelID   *string   `json:"pixel_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// WebsiteInput carries the user-editable website fields.
type WebsiteInput struct {
	Name    string  `json:"name"`
	Domain  string  `json:"domain"`
	PixelID *string `json:"pixel_id,omitempty"`
}

var domainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?(\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)*(:[0-9]{1,5})?$`)

// normalizeDomain strips scheme, path and a trailing dot, and lowercases.
func normalizeDomain(raw string) string {
	d := strings.ToLower(strings.TrimSpace(raw))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	return strings.TrimSuffix(d, ".")
}

// Normalize trims fields and validates them, returning the cleaned copy.
func (in WebsiteInput) Normalize() (WebsiteInput, error) {
	out := WebsiteInput{
		Name:    strings.TrimSpace(in.Name),
		Domain:  normalizeDomain(in.Domain),
		PixelID: trimOptional(in.PixelID),
	}
	if out.Name == "" {
		return out, NewValidationError("name", "is required")
	}
	if len(out.Name) > 100 {
		return out, NewValidationError("name", "must be at most 100 characters")
	}
	if out.Domain == "" {
		return out, NewValidationError("domain", "is required")
	}
	if !domainPattern.MatchString(out.Domain) {
		return out, NewValidationError("domain", "is not a valid domain")
	}
	return out, nil
}

const websiteColumns = `id, user_id, name, domain, pixel_id, created_at`

func scanWebsite(row scanner) (*Website, error) {
	var w Website
	if err := row.Scan(&w.ID, &w.UserID, &w.Name, &w.Domain, &w.PixelID, &w.CreatedAt); err != nil {
		return nil, err
	}
	return &w, nil
}

// websiteWriteError translates constraint failures on websites.
func websiteWriteError(op string, err error) error {
	switch pqCode(err) {
	case pgForeignKeyViolation:
		return ErrAccountNotInitialized
	case pgUniqueViolation:
		return NewValidationError("pixel_id", "is already used by another website")
	}
	return persistErr(op, err)
}

// CreateWebsite registers a website for userID.
func (s *Store) CreateWebsite(ctx context.Context, userID uuid.UUID, in WebsiteInput) (*Website, error) {
	in, err := in.Normalize()
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO websites (id, user_id, name, domain, pixel_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + websiteColumns

	w, err := scanWebsite(s.db.QueryRowContext(ctx, query, uuid.New(), userID, in.Name, in.Domain, in.PixelID))
	if err != nil {
		return nil, websiteWriteError("create website", err)
	}
	return w, nil
}

// ListWebsites returns the user's websites, newest first.
func (s *Store) ListWebsites(ctx context.Context, userID uuid.UUID) ([]*Website, error) {
	query := `SELECT ` + websiteColumns + ` FROM websites WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, persistErr("list websites", err)
	}
	defer func() { _ = rows.Close() }()

	websites := []*Website{}
	for rows.Next() {
		w, err := scanWebsite(rows)
		if err != nil {
			return nil, persistErr("list websites", err)
		}
		websites = append(websites, w)
	}
	return websites, persistErr("list websites", rows.Err())
}

// VerifyWebsiteOwnership loads the website only if userID owns it. A missing
// website and a foreign one both yield ErrPermissionDenied.
func (s *Store) VerifyWebsiteOwnership(ctx context.Context, websiteID, userID uuid.UUID) (*Website, error) {
	query := `SELECT ` + websiteColumns + ` FROM websites WHERE id = $1 AND user_id = $2`

	w, err := scanWebsite(s.db.QueryRowContext(ctx, query, websiteID, userID))
	if isNoRows(err) {
		return nil, ErrPermissionDenied
	}
	if err != nil {
		return nil, persistErr("verify website ownership", err)
	}
	return w, nil
}

// UpdateWebsite rewrites name, domain and pixel id. Ownership is part of the
// WHERE clause; user_id itself is never written.
func (s *Store) UpdateWebsite(ctx context.Context, websiteID, userID uuid.UUID, in WebsiteInput) (*Website, error) {
	in, err := in.Normalize()
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE websites SET name = $3, domain = $4, pixel_id = $5
		WHERE id = $1 AND user_id = $2
		RETURNING ` + websiteColumns

	w, err := scanWebsite(s.db.QueryRowContext(ctx, query, websiteID, userID, in.Name, in.Domain, in.PixelID))
	if isNoRows(err) {
		return nil, ErrPermissionDenied
	}
	if err != nil {
		return nil, websiteWriteError("update website", err)
	}
	return w, nil
}

// DeleteWebsite removes the website and, by cascade, everything it owns.
func (s *Store) DeleteWebsite(ctx context.Context, websiteID, userID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM websites WHERE id = $1 AND user_id = $2`, websiteID, userID)
	if err != nil {
		return persistErr("delete website", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPermissionDenied
	}
	return nil
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
