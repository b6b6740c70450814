package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/seuros/leadtrack/internal/database"
	"github.com/seuros/leadtrack/internal/models"
)

const commandTimeout = 30 * time.Second

var (
	connectDatabase = func() error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is not set (use --database-url, leadtrack.toml or the environment)")
		}
		return database.ConnectWithURL(cfg.DatabaseURL)
	}
	closeDatabase = database.Close
)

// withStore connects when needed and runs fn with a bounded context.
func withStore(fn func(ctx context.Context, store *models.Store) error) error {
	if database.DB == nil {
		if err := connectDatabase(); err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		defer func() { _ = closeDatabase() }()
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	return fn(ctx, models.NewStore(database.DB))
}

func parseUserFlag(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, errors.New("--user is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid --user %q: must be a UUID", raw)
	}
	return id, nil
}

func parseID(kind, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s %q: must be a UUID", kind, raw)
	}
	return id, nil
}

// ownedWebsite runs the ownership check every website-scoped command starts with.
func ownedWebsite(ctx context.Context, store *models.Store, websiteArg, userArg string) (*models.Website, error) {
	userID, err := parseUserFlag(userArg)
	if err != nil {
		return nil, err
	}
	websiteID, err := parseID("website id", websiteArg)
	if err != nil {
		return nil, err
	}
	return store.VerifyWebsiteOwnership(ctx, websiteID, userID)
}
