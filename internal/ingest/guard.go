package ingest

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/seuros/leadtrack/internal/models"
)

// KeyStore resolves API keys and records their use.
type KeyStore interface {
	GetAPIKeyByHash(ctx context.Context, keyHash string) (*models.APIKey, error)
	TouchAPIKey(ctx context.Context, keyID uuid.UUID) error
}

// Guard decides whether a raw API key may write to a website.
type Guard struct {
	keys KeyStore
}

func NewGuard(keys KeyStore) *Guard {
	return &Guard{keys: keys}
}

// Authorize returns the key if it exists, is enabled and is bound to
// websiteID. Unknown, malformed and disabled keys are all ErrInvalidKey.
func (g *Guard) Authorize(ctx context.Context, rawKey, websiteID string) (*models.APIKey, error) {
	key, err := g.CheckKey(ctx, rawKey)
	if err != nil {
		return nil, err
	}

	target, err := uuid.Parse(strings.TrimSpace(websiteID))
	if err != nil || target != key.WebsiteID {
		return nil, models.ErrKeyWebsiteMismatch
	}
	return key, nil
}

// CheckKey resolves rawKey without binding it to a website.
func (g *Guard) CheckKey(ctx context.Context, rawKey string) (*models.APIKey, error) {
	rawKey = strings.TrimSpace(rawKey)
	if !models.LooksLikeAPIKey(rawKey) {
		return nil, models.ErrInvalidKey
	}

	key, err := g.keys.GetAPIKeyByHash(ctx, models.HashAPIKey(rawKey))
	if errors.Is(err, models.ErrNotFound) {
		return nil, models.ErrInvalidKey
	}
	if err != nil {
		return nil, err
	}
	if !key.Enabled {
		return nil, models.ErrInvalidKey
	}
	return key, nil
}
