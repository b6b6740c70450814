package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seuros/leadtrack/internal/models"
	"github.com/seuros/leadtrack/internal/realtime"
)

func strPtr(s string) *string { return &s }

// syncService runs post-success work inline so tests can assert on it.
func syncService(store Store, opts ...Option) *Service {
	base := []Option{WithLogger(zap.NewNop()), WithAsync(func(fn func()) { fn() })}
	return NewService(store, append(base, opts...)...)
}

func pageView(websiteID uuid.UUID, lead *LeadPayload) Request {
	return Request{Event: "PageView", URL: "https://shop.test/", WebsiteID: websiteID.String(), Lead: lead}
}

func TestSameEmailUpdatesSingleLead(t *testing.T) {
	store := newMemStore()
	site := uuid.New()
	key := store.addKey(site, true)
	svc := syncService(store)
	ctx := context.Background()

	first, err := svc.Ingest(ctx, key, pageView(site, &LeadPayload{Email: strPtr("ada@example.com"), Name: strPtr("Ada")}), Meta{})
	require.NoError(t, err)
	second, err := svc.Ingest(ctx, key, pageView(site, &LeadPayload{Email: strPtr("ada@example.com"), Name: strPtr("Ada Lovelace")}), Meta{})
	require.NoError(t, err)

	leads, events := store.counts()
	assert.Equal(t, 1, leads)
	assert.Equal(t, 2, events)
	assert.Equal(t, first.Lead.ID, second.Lead.ID)
	assert.Equal(t, "Ada Lovelace", *second.Lead.Name)
}

func TestUpsertOverwritesOmittedFields(t *testing.T) {
	store := newMemStore()
	site := uuid.New()
	key := store.addKey(site, true)
	svc := syncService(store)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, key, pageView(site, &LeadPayload{
		Email: strPtr("a@b.c"), Phone: strPtr("+5581999999999"), CustomData: models.JSONMap{"plan": "pro"},
	}), Meta{IP: "203.0.113.9"})
	require.NoError(t, err)

	res, err := svc.Ingest(ctx, key, pageView(site, &LeadPayload{Email: strPtr("a@b.c")}), Meta{})
	require.NoError(t, err)

	assert.Nil(t, res.Lead.Phone)
	assert.Equal(t, models.JSONMap{}, res.Lead.CustomData)
	require.NotNil(t, res.Lead.LastIP)
	assert.Equal(t, "203.0.113.9", *res.Lead.LastIP)
}

func TestLeadsWithoutEmailNeverMerge(t *testing.T) {
	store := newMemStore()
	site := uuid.New()
	key := store.addKey(site, true)
	svc := syncService(store)

	a, err := svc.Ingest(context.Background(), key, pageView(site, &LeadPayload{Name: strPtr("Anon")}), Meta{})
	require.NoError(t, err)
	b, err := svc.Ingest(context.Background(), key, pageView(site, nil), Meta{})
	require.NoError(t, err)

	leads, _ := store.counts()
	assert.Equal(t, 2, leads)
	assert.NotEqual(t, a.Lead.ID, b.Lead.ID)
}

func TestSameEmailDifferentWebsitesAreDistinct(t *testing.T) {
	store := newMemStore()
	siteA, siteB := uuid.New(), uuid.New()
	keyA, keyB := store.addKey(siteA, true), store.addKey(siteB, true)
	svc := syncService(store)
	lead := &LeadPayload{Email: strPtr("x@y.z")}

	_, err := svc.Ingest(context.Background(), keyA, pageView(siteA, lead), Meta{})
	require.NoError(t, err)
	_, err = svc.Ingest(context.Background(), keyB, pageView(siteB, lead), Meta{})
	require.NoError(t, err)

	leads, _ := store.counts()
	assert.Equal(t, 2, leads)
}

func TestDisabledKeyIsInvalidRegardlessOfPayload(t *testing.T) {
	store := newMemStore()
	site := uuid.New()
	key := store.addKey(site, false)
	svc := syncService(store)

	for _, req := range []Request{
		pageView(site, &LeadPayload{Email: strPtr("a@b.c")}),
		{},
		{Event: "", WebsiteID: "not-a-uuid"},
	} {
		_, err := svc.Ingest(context.Background(), key, req, Meta{})
		assert.ErrorIs(t, err, models.ErrInvalidKey)
	}
	leads, events := store.counts()
	assert.Zero(t, leads)
	assert.Zero(t, events)
}

func TestRejectPrefersKeyErrors(t *testing.T) {
	store := newMemStore()
	site, other := uuid.New(), uuid.New()
	disabled := store.addKey(site, false)
	enabled := store.addKey(site, true)
	cause := models.NewValidationError("", "Invalid JSON payload")
	svc := syncService(store)

	tests := []struct {
		name      string
		key       string
		websiteID string
		want      error
	}{
		{"disabled key without website", disabled, "", models.ErrInvalidKey},
		{"disabled key with website", disabled, site.String(), models.ErrInvalidKey},
		{"unknown key", "garbage", "", models.ErrInvalidKey},
		{"enabled key for other website", enabled, other.String(), models.ErrKeyWebsiteMismatch},
		{"enabled key without website", enabled, "", cause},
		{"enabled key for own website", enabled, site.String(), cause},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Reject(context.Background(), tt.key, tt.websiteID, cause)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	leads, events := store.counts()
	assert.Zero(t, leads)
	assert.Zero(t, events)
	assert.Empty(t, store.touched)
}

func TestUnknownAndMalformedKeysAreInvalid(t *testing.T) {
	store := newMemStore()
	site := uuid.New()
	svc := syncService(store)
	unknown, _, _, _ := models.GenerateAPIKeyMaterial()

	for _, key := range []string{"", "garbage", models.APIKeyPrefix + "zz", unknown} {
		_, err := svc.Ingest(context.Background(), key, pageView(site, nil), Meta{})
		assert.ErrorIs(t, err, models.ErrInvalidKey, "key %q", key)
	}
}

func TestKeyForOtherWebsiteWritesNothing(t *testing.T) {
	store := newMemStore()
	siteA, siteB := uuid.New(), uuid.New()
	keyA := store.addKey(siteA, true)

	var states []State
	svc := syncService(store, WithStateHook(func(s State) { states = append(states, s) }))

	_, err := svc.Ingest(context.Background(), keyA, pageView(siteB, &LeadPayload{Email: strPtr("a@b.c")}), Meta{})
	assert.ErrorIs(t, err, models.ErrKeyWebsiteMismatch)

	_, err = svc.Ingest(context.Background(), keyA, Request{Event: "PageView"}, Meta{})
	assert.ErrorIs(t, err, models.ErrKeyWebsiteMismatch)

	leads, events := store.counts()
	assert.Zero(t, leads)
	assert.Zero(t, events)
	assert.Equal(t, []State{StateValidatingKey, StateFailed, StateValidatingKey, StateFailed}, states)
	assert.Empty(t, store.touched)
}

func TestPageViewEndToEnd(t *testing.T) {
	store := newMemStore()
	site := uuid.New()
	key := store.addKey(site, true)

	var states []State
	var outcomes []string
	hub := realtime.NewHub()
	sub := hub.Subscribe(site, 4)
	defer sub.Close()

	svc := syncService(store,
		WithPublisher(hub),
		WithLocator(fixedLocator{"BR", "Recife"}),
		WithStateHook(func(s State) { states = append(states, s) }),
		WithObserver(func(o string, _ time.Duration) { outcomes = append(outcomes, o) }))

	res, err := svc.Ingest(context.Background(), key, Request{
		Event:     "PageView",
		URL:       "https://shop.test/",
		WebsiteID: site.String(),
		Lead:      &LeadPayload{Email: strPtr("a@b.c"), Name: strPtr("A")},
	}, Meta{IP: "198.51.100.4"})
	require.NoError(t, err)

	assert.Equal(t, []State{StateValidatingKey, StateUpsertingLead, StateRecordingEvent, StateDone}, states)
	assert.Equal(t, []string{"success"}, outcomes)
	assert.Equal(t, "a@b.c", *res.Lead.Email)
	assert.Equal(t, "A", *res.Lead.Name)

	leads, events := store.counts()
	require.Equal(t, 1, leads)
	require.Equal(t, 1, events)
	assert.Equal(t, "PageView", res.Event.EventType)
	assert.Equal(t, "https://shop.test/", res.Event.PageURL)
	assert.Equal(t, res.Lead.ID, res.Event.LeadID)
	assert.Equal(t, "BR", *res.Event.Country)

	select {
	case id := <-store.touched:
		assert.NotEqual(t, uuid.Nil, id)
	default:
		t.Fatal("last_used_at was not refreshed")
	}
	require.Len(t, sub.C, 1)
	assert.Equal(t, res.Event.ID, (<-sub.C).EventID)
}

func TestAnyNonEmptyEventTypeAccepted(t *testing.T) {
	store := newMemStore()
	site := uuid.New()
	key := store.addKey(site, true)
	svc := syncService(store)

	for _, event := range []string{"PageView", "custom:checkout-step-2", "Compra Finalizada"} {
		_, err := svc.Ingest(context.Background(), key, Request{Event: event, WebsiteID: site.String()}, Meta{})
		assert.NoError(t, err, event)
	}

	_, err := svc.Ingest(context.Background(), key, Request{Event: "   ", WebsiteID: site.String()}, Meta{})
	assert.Equal(t, models.CodeValidation, models.ErrorKind(err))
}

func TestEventFailureKeepsLead(t *testing.T) {
	store := newMemStore()
	store.eventErr = errors.New("events table locked")
	site := uuid.New()
	key := store.addKey(site, true)

	var states []State
	svc := syncService(store, WithStateHook(func(s State) { states = append(states, s) }))

	_, err := svc.Ingest(context.Background(), key, pageView(site, &LeadPayload{Email: strPtr("a@b.c")}), Meta{})
	assert.Equal(t, models.CodePersistence, models.ErrorKind(err))

	leads, events := store.counts()
	assert.Equal(t, 1, leads)
	assert.Zero(t, events)
	assert.Equal(t, []State{StateValidatingKey, StateUpsertingLead, StateRecordingEvent, StateFailed}, states)
	assert.Empty(t, store.touched)
}

func TestLeadFailureIsPersistenceError(t *testing.T) {
	store := newMemStore()
	store.upsertErr = errors.New("unique index corrupted")
	site := uuid.New()
	key := store.addKey(site, true)

	var outcomes []string
	svc := syncService(store, WithObserver(func(o string, _ time.Duration) { outcomes = append(outcomes, o) }))

	_, err := svc.Ingest(context.Background(), key, pageView(site, nil), Meta{})
	var pe *models.PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, []string{models.CodePersistence}, outcomes)
	_, events := store.counts()
	assert.Zero(t, events)
}

func TestKeyLookupFailurePropagates(t *testing.T) {
	store := newMemStore()
	store.lookupErr = &models.PersistenceError{Op: "look up api key", Err: errors.New("timeout")}
	site := uuid.New()
	key := store.addKey(site, true)

	_, err := syncService(store).Ingest(context.Background(), key, pageView(site, nil), Meta{})
	assert.Equal(t, models.CodePersistence, models.ErrorKind(err))
}

func TestPublishFailureDoesNotFailIngestion(t *testing.T) {
	store := newMemStore()
	site := uuid.New()
	key := store.addKey(site, true)
	svc := syncService(store, WithPublisher(failingPublisher{}))

	_, err := svc.Ingest(context.Background(), key, pageView(site, nil), Meta{})
	assert.NoError(t, err)
}

func TestConcurrentIngestionSameEmail(t *testing.T) {
	store := newMemStore()
	site := uuid.New()
	key := store.addKey(site, true)
	svc := syncService(store)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Ingest(context.Background(), key, pageView(site, &LeadPayload{Email: strPtr("same@x.io")}), Meta{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	leads, events := store.counts()
	assert.Equal(t, 1, leads)
	assert.Equal(t, 20, events)
}

func TestDefaultAsyncTouchesKey(t *testing.T) {
	store := newMemStore()
	site := uuid.New()
	key := store.addKey(site, true)
	svc := NewService(store, WithLogger(zap.NewNop()))

	_, err := svc.Ingest(context.Background(), key, pageView(site, nil), Meta{})
	require.NoError(t, err)

	select {
	case <-store.touched:
	case <-time.After(2 * time.Second):
		t.Fatal("expected asynchronous last_used_at refresh")
	}
}

type fixedLocator struct{ country, city string }

func (f fixedLocator) Lookup(string) (string, string) { return f.country, f.city }

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, realtime.Payload) error {
	return errors.New("notify failed")
}
