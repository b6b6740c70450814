package models

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User mirrors an account issued by the identity platform.
type User struct {
	UserID    uuid.UUID `json:"user_id"`
	Email     *string   `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// EnsureUser records userID locally so websites can reference it. Existing
// rows are left untouched.
func (s *Store) EnsureUser(ctx context.Context, userID uuid.UUID, email string) (bool, error) {
	if userID == uuid.Nil {
		return false, NewValidationError("user_id", "is required")
	}

	query := `
		INSERT INTO users (user_id, email)
		VALUES ($1, NULLIF($2, ''))
		ON CONFLICT (user_id) DO NOTHING
	`
	res, err := s.db.ExecContext(ctx, query, userID, strings.TrimSpace(email))
	if err != nil {
		return false, persistErr("register user", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// GetUser loads a registered user. Unknown ids yield ErrNotFound.
func (s *Store) GetUser(ctx context.Context, userID uuid.UUID) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, `SELECT user_id, email, created_at FROM users WHERE user_id = $1`, userID).
		Scan(&u.UserID, &u.Email, &u.CreatedAt)
	if isNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistErr("load user", err)
	}
	return &u, nil
}
