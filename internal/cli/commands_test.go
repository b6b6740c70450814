package cli

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seuros/leadtrack/internal/config"
	"github.com/seuros/leadtrack/internal/middleware"
	"github.com/seuros/leadtrack/internal/models"
)

var (
	websiteCols = []string{"id", "user_id", "name", "domain", "pixel_id", "created_at"}
	apiKeyCols  = []string{"id", "website_id", "name", "key_hash", "key_prefix", "enabled", "last_used_at", "created_at"}
	ownershipRe = regexp.QuoteMeta(`FROM websites WHERE id = $1 AND user_id = $2`)
)

func expectOwned(mock sqlmock.Sqlmock, websiteID, userID uuid.UUID) {
	mock.ExpectQuery(ownershipRe).
		WithArgs(websiteID.String(), userID.String()).
		WillReturnRows(sqlmock.NewRows(websiteCols).
			AddRow(websiteID.String(), userID.String(), "Example", "example.com", nil, time.Now()))
}

func TestValidateFormat(t *testing.T) {
	for _, f := range []string{"table", "json", "yaml"} {
		assert.NoError(t, validateFormat(f))
	}
	assert.Error(t, validateFormat("csv"))
}

func TestCommandsRequireUser(t *testing.T) {
	stubConnectClose(t)
	setFlag(t, &websiteUser, "")
	setFlag(t, &apikeyUser, "")

	err := runWebsiteList(formatTable)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--user is required")

	stubDB(t)
	err = runAPIKeyList(uuid.NewString(), formatTable)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--user is required")
}

func TestRunWebsiteListTable(t *testing.T) {
	mock := stubDB(t)
	userID := uuid.New()
	setFlag(t, &websiteUser, userID.String())

	pixel := "px_1"
	mock.ExpectQuery(regexp.QuoteMeta(`FROM websites WHERE user_id = $1`)).
		WithArgs(userID.String()).
		WillReturnRows(sqlmock.NewRows(websiteCols).
			AddRow(uuid.NewString(), userID.String(), "Shop", "shop.example.com", pixel, time.Now()))

	output, err := captureOutput(t, func() error {
		return runWebsiteList(formatTable)
	})
	require.NoError(t, err)
	assert.Contains(t, output, "DOMAIN")
	assert.Contains(t, output, "shop.example.com")
	assert.Contains(t, output, "px_1")
}

func TestRunWebsiteListYAML(t *testing.T) {
	mock := stubDB(t)
	userID := uuid.New()
	setFlag(t, &websiteUser, userID.String())

	mock.ExpectQuery(regexp.QuoteMeta(`FROM websites WHERE user_id = $1`)).
		WithArgs(userID.String()).
		WillReturnRows(sqlmock.NewRows(websiteCols).
			AddRow(uuid.NewString(), userID.String(), "Shop", "shop.example.com", nil, time.Now()))

	output, err := captureOutput(t, func() error {
		return runWebsiteList(formatYAML)
	})
	require.NoError(t, err)
	assert.Contains(t, output, "domain: shop.example.com")
}

func TestRunAPIKeyCreatePiped(t *testing.T) {
	mock := stubDB(t)
	userID, websiteID := uuid.New(), uuid.New()
	setFlag(t, &apikeyUser, userID.String())
	setFlag(t, &apikeyName, "Backend")

	original := isTerminal
	isTerminal = func() bool { return false }
	t.Cleanup(func() { isTerminal = original })

	expectOwned(mock, websiteID, userID)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO api_keys`)).
		WithArgs(sqlmock.AnyArg(), websiteID.String(), "Backend", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(apiKeyCols).
			AddRow(uuid.NewString(), websiteID.String(), "Backend", "hash", "lt_live_abcd...", true, nil, time.Now()))

	output, err := captureOutput(t, func() error {
		return runAPIKeyCreate(websiteID.String())
	})
	require.NoError(t, err)

	key := strings.TrimSpace(output)
	assert.True(t, models.LooksLikeAPIKey(key), "piped output should be the bare key, got %q", output)
}

func TestRunAPIKeyCreateTerminalShowsUsage(t *testing.T) {
	mock := stubDB(t)
	userID, websiteID := uuid.New(), uuid.New()
	setFlag(t, &apikeyUser, userID.String())

	original := isTerminal
	isTerminal = func() bool { return true }
	t.Cleanup(func() { isTerminal = original })

	expectOwned(mock, websiteID, userID)
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO api_keys`)).
		WillReturnRows(sqlmock.NewRows(apiKeyCols).
			AddRow(uuid.NewString(), websiteID.String(), "", "hash", "lt_live_abcd...", true, nil, time.Now()))

	output, err := captureOutput(t, func() error {
		return runAPIKeyCreate(websiteID.String())
	})
	require.NoError(t, err)
	assert.Contains(t, output, "It will NOT be shown again")
	assert.Contains(t, output, "/api/v1/events")
	assert.Contains(t, output, websiteID.String())
}

func TestRunAPIKeyListForeignWebsite(t *testing.T) {
	mock := stubDB(t)
	userID, websiteID := uuid.New(), uuid.New()
	setFlag(t, &apikeyUser, userID.String())

	mock.ExpectQuery(ownershipRe).
		WithArgs(websiteID.String(), userID.String()).
		WillReturnRows(sqlmock.NewRows(websiteCols))

	err := runAPIKeyList(websiteID.String(), formatTable)
	assert.ErrorIs(t, err, models.ErrPermissionDenied)
}

func TestRunWebsiteDeleteChecksOwnership(t *testing.T) {
	mock := stubDB(t)
	userID, websiteID := uuid.New(), uuid.New()
	setFlag(t, &websiteUser, userID.String())

	mock.ExpectQuery(ownershipRe).
		WithArgs(websiteID.String(), userID.String()).
		WillReturnRows(sqlmock.NewRows(websiteCols))

	err := runWebsiteDelete(websiteID.String())
	assert.ErrorIs(t, err, models.ErrPermissionDenied)
}

func TestRunWebsiteDelete(t *testing.T) {
	mock := stubDB(t)
	userID, websiteID := uuid.New(), uuid.New()
	setFlag(t, &websiteUser, userID.String())

	expectOwned(mock, websiteID, userID)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM websites WHERE id = $1 AND user_id = $2`)).
		WithArgs(websiteID.String(), userID.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	output, err := captureOutput(t, func() error {
		return runWebsiteDelete(websiteID.String())
	})
	require.NoError(t, err)
	assert.Contains(t, output, "Website "+websiteID.String()+" deleted")
}

func TestRunAPIKeyListShowsStatus(t *testing.T) {
	mock := stubDB(t)
	userID, websiteID := uuid.New(), uuid.New()
	setFlag(t, &apikeyUser, userID.String())

	expectOwned(mock, websiteID, userID)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM api_keys WHERE website_id = $1`)).
		WithArgs(websiteID.String()).
		WillReturnRows(sqlmock.NewRows(apiKeyCols).
			AddRow(uuid.NewString(), websiteID.String(), "Old", "h1", "lt_live_1111...", false, nil, time.Now()).
			AddRow(uuid.NewString(), websiteID.String(), "", "h2", "lt_live_2222...", true, time.Now(), time.Now()))

	output, err := captureOutput(t, func() error {
		return runAPIKeyList(websiteID.String(), formatTable)
	})
	require.NoError(t, err)
	assert.Contains(t, output, "disabled")
	assert.Contains(t, output, "enabled")
	assert.Contains(t, output, "lt_live_2222...")
	assert.Contains(t, output, "never")
}

func TestRunConversionCreateValidatesBeforeConnecting(t *testing.T) {
	connected := false
	original := connectDatabase
	connectDatabase = func() error { connected = true; return errors.New("unexpected") }
	t.Cleanup(func() { connectDatabase = original })

	setFlag(t, &conversionTitle, "Signup")
	setFlag(t, &conversionEventType, "")

	err := runConversionCreate(uuid.NewString())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event_type")
	assert.False(t, connected)
}

func TestRunLeadListJSON(t *testing.T) {
	mock := stubDB(t)
	userID, websiteID := uuid.New(), uuid.New()
	setFlag(t, &leadUser, userID.String())

	expectOwned(mock, websiteID, userID)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM leads l`)).
		WithArgs(websiteID.String(), int64(models.DefaultPageSize), int64(0)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "website_id", "name", "email", "phone", "custom_data", "last_ip", "created_at", "updated_at", "events", "conversions",
		}).AddRow(uuid.NewString(), websiteID.String(), "Jane", "jane@example.com", nil, []byte(`{"plan":"pro"}`), nil, time.Now(), time.Now(), int64(3), int64(1)))

	output, err := captureOutput(t, func() error {
		return runLeadList(websiteID.String(), 0, 0, formatJSON)
	})
	require.NoError(t, err)

	var leads []map[string]any
	require.NoError(t, json.Unmarshal([]byte(output), &leads))
	require.Len(t, leads, 1)
	assert.Equal(t, "jane@example.com", leads[0]["email"])
	assert.EqualValues(t, 3, leads[0]["events_count"])
}

func TestLocation(t *testing.T) {
	us, city := "US", "Austin"
	assert.Equal(t, "-", location(&models.Event{}))
	assert.Equal(t, "Austin", location(&models.Event{City: &city}))
	assert.Contains(t, location(&models.Event{Country: &us, City: &city}), "Austin, ")
}

func TestRunUserToken(t *testing.T) {
	stubConfig(t, &config.Config{JWTSecret: "cli-secret"})
	userID := uuid.New()

	output, err := captureOutput(t, func() error {
		return runUserToken(userID.String(), "ops@example.com", time.Hour)
	})
	require.NoError(t, err)

	user, err := middleware.ParseUserToken(strings.TrimSpace(output), "cli-secret")
	require.NoError(t, err)
	assert.Equal(t, userID, user.ID)
	assert.Equal(t, "ops@example.com", user.Email)
}

func TestRunUserTokenWithoutSecret(t *testing.T) {
	stubConfig(t, &config.Config{})
	err := runUserToken(uuid.NewString(), "", time.Hour)
	assert.Error(t, err)
}

func TestRunUserAdd(t *testing.T) {
	userCols := []string{"user_id", "email", "created_at"}

	t.Run("new user", func(t *testing.T) {
		mock := stubDB(t)
		userID := uuid.New()
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users`)).
			WithArgs(userID.String(), "owner@example.com").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE user_id = $1`)).
			WithArgs(userID.String()).
			WillReturnRows(sqlmock.NewRows(userCols).AddRow(userID.String(), "owner@example.com", time.Now()))

		output, err := captureOutput(t, func() error {
			return runUserAdd(userID.String(), "owner@example.com")
		})
		require.NoError(t, err)
		assert.Contains(t, output, "added")
	})

	t.Run("existing user", func(t *testing.T) {
		mock := stubDB(t)
		userID := uuid.New()
		since := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO users`)).
			WithArgs(userID.String(), "").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(regexp.QuoteMeta(`FROM users WHERE user_id = $1`)).
			WithArgs(userID.String()).
			WillReturnRows(sqlmock.NewRows(userCols).AddRow(userID.String(), nil, since))

		output, err := captureOutput(t, func() error {
			return runUserAdd(userID.String(), "")
		})
		require.NoError(t, err)
		assert.Contains(t, output, "already exists (since 2026-01-02T03:04:05Z)")
	})
}

func TestRunMigrateVersion(t *testing.T) {
	stubConfig(t, &config.Config{DatabaseURL: "postgres://localhost/leadtrack"})

	original := migrationVersion
	t.Cleanup(func() { migrationVersion = original })

	migrationVersion = func(url string) (uint, bool, error) {
		assert.Equal(t, "postgres://localhost/leadtrack", url)
		return 2, false, nil
	}
	output, err := captureOutput(t, runMigrateVersion)
	require.NoError(t, err)
	assert.Equal(t, "Version 2\n", output)

	migrationVersion = func(string) (uint, bool, error) { return 0, false, nil }
	output, err = captureOutput(t, runMigrateVersion)
	require.NoError(t, err)
	assert.Contains(t, output, "No migrations applied")
}

func TestRunMigrateRequiresURL(t *testing.T) {
	stubConfig(t, &config.Config{})
	err := runMigrateUp()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")

	assert.Error(t, runMigrateDown(0))
}
