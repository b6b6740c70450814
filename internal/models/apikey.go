package models

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
)

// APIKey authorizes event ingestion for a single website.
type APIKey struct {
	ID         uuid.UUID  `json:"id"`
	WebsiteID  uuid.UUID  `json:"website_id"`
	Name       string     `json:"name"`
	KeyHash    string     `json:"-"`
	KeyPrefix  string     `json:"key_prefix"`
	Enabled    bool       `json:"enabled"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// APIKeyCreateResult carries the plaintext key, which is never stored.
type APIKeyCreateResult struct {
	FullKey string  `json:"api_key"`
	APIKey  *APIKey `json:"key"`
}

const (
	APIKeyPrefix     = "lt_live_"
	keyByteLen       = 32
	keyDisplayLength = 16
)

// GenerateAPIKeyMaterial returns a new plaintext key with its hash and display prefix.
func GenerateAPIKeyMaterial() (full, hash, display string, err error) {
	buf := make([]byte, keyByteLen)
	if _, err = rand.Read(buf); err != nil {
		return "", "", "", err
	}
	full = APIKeyPrefix + hex.EncodeToString(buf)
	return full, HashAPIKey(full), full[:keyDisplayLength], nil
}

// HashAPIKey is the lookup hash for a plaintext key.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// LooksLikeAPIKey reports whether key has the issued shape.
func LooksLikeAPIKey(key string) bool {
	body, ok := strings.CutPrefix(key, APIKeyPrefix)
	if !ok || len(body) != keyByteLen*2 {
		return false
	}
	_, err := hex.DecodeString(body)
	return err == nil
}

const apiKeyColumns = `id, website_id, name, key_hash, key_prefix, enabled, last_used_at, created_at`

func scanAPIKey(row scanner) (*APIKey, error) {
	var k APIKey
	err := row.Scan(&k.ID, &k.WebsiteID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Enabled, &k.LastUsedAt, &k.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// CreateAPIKey issues an enabled key for websiteID.
func (s *Store) CreateAPIKey(ctx context.Context, websiteID uuid.UUID, name string) (*APIKeyCreateResult, error) {
	name = strings.TrimSpace(name)
	if len(name) > 100 {
		return nil, NewValidationError("name", "must be at most 100 characters")
	}

	full, hash, display, err := GenerateAPIKeyMaterial()
	if err != nil {
		return nil, persistErr("generate api key", err)
	}

	query := `
		INSERT INTO api_keys (id, website_id, name, key_hash, key_prefix)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + apiKeyColumns

	key, err := scanAPIKey(s.db.QueryRowContext(ctx, query, uuid.New(), websiteID, name, hash, display))
	if err != nil {
		return nil, persistErr("create api key", err)
	}
	return &APIKeyCreateResult{FullKey: full, APIKey: key}, nil
}

// GetAPIKeyByHash returns the key whether or not it is enabled. Unknown
// hashes yield ErrNotFound.
func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (*APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE key_hash = $1`

	key, err := scanAPIKey(s.db.QueryRowContext(ctx, query, keyHash))
	if isNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistErr("look up api key", err)
	}
	return key, nil
}

// ListAPIKeys returns the website's keys, newest first.
func (s *Store) ListAPIKeys(ctx context.Context, websiteID uuid.UUID) ([]*APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE website_id = $1 ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, websiteID)
	if err != nil {
		return nil, persistErr("list api keys", err)
	}
	defer func() { _ = rows.Close() }()

	keys := []*APIKey{}
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, persistErr("list api keys", err)
		}
		keys = append(keys, k)
	}
	return keys, persistErr("list api keys", rows.Err())
}

// SetAPIKeyEnabled toggles a key of websiteID.
func (s *Store) SetAPIKeyEnabled(ctx context.Context, keyID, websiteID uuid.UUID, enabled bool) (*APIKey, error) {
	query := `
		UPDATE api_keys SET enabled = $3
		WHERE id = $1 AND website_id = $2
		RETURNING ` + apiKeyColumns

	key, err := scanAPIKey(s.db.QueryRowContext(ctx, query, keyID, websiteID, enabled))
	if isNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, persistErr("update api key", err)
	}
	return key, nil
}

// DeleteAPIKey removes a key of websiteID.
func (s *Store) DeleteAPIKey(ctx context.Context, keyID, websiteID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = $1 AND website_id = $2`, keyID, websiteID)
	if err != nil {
		return persistErr("delete api key", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchAPIKey stamps last_used_at.
func (s *Store) TouchAPIKey(ctx context.Context, keyID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at = NOW() WHERE id = $1`, keyID)
	return persistErr("touch api key", err)
}
