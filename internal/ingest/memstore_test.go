package ingest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/seuros/leadtrack/internal/models"
)

// memStore mimics the PostgreSQL semantics the service relies on: unique
// (website_id, email) with NULL emails never conflicting.
type memStore struct {
	mu        sync.Mutex
	keys      map[string]*models.APIKey
	leads     []*models.Lead
	events    []*models.Event
	touched   chan uuid.UUID
	upsertErr error
	eventErr  error
	lookupErr error
}

func newMemStore() *memStore {
	return &memStore{keys: map[string]*models.APIKey{}, touched: make(chan uuid.UUID, 16)}
}

func (m *memStore) addKey(websiteID uuid.UUID, enabled bool) string {
	full, hash, prefix, err := models.GenerateAPIKeyMaterial()
	if err != nil {
		panic(err)
	}
	m.keys[hash] = &models.APIKey{ID: uuid.New(), WebsiteID: websiteID, KeyHash: hash, KeyPrefix: prefix, Enabled: enabled}
	return full
}

func (m *memStore) GetAPIKeyByHash(_ context.Context, hash string) (*models.APIKey, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[hash]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *k
	return &cp, nil
}

func (m *memStore) TouchAPIKey(_ context.Context, keyID uuid.UUID) error {
	select {
	case m.touched <- keyID:
	default:
	}
	return nil
}

func (m *memStore) UpsertLead(_ context.Context, in models.LeadInput) (*models.Lead, error) {
	if m.upsertErr != nil {
		return nil, &models.PersistenceError{Op: "upsert lead", Err: m.upsertErr}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	email := trimmed(in.Email)
	now := time.Now()
	if email != nil {
		for _, l := range m.leads {
			if l.WebsiteID == in.WebsiteID && l.Email != nil && *l.Email == *email {
				l.Name, l.Phone, l.CustomData = trimmed(in.Name), trimmed(in.Phone), in.CustomData.OrEmpty()
				if in.IP != "" {
					ip := in.IP
					l.LastIP = &ip
				}
				l.UpdatedAt = now
				cp := *l
				return &cp, nil
			}
		}
	}

	l := &models.Lead{
		ID: uuid.New(), WebsiteID: in.WebsiteID, Email: email,
		Name: trimmed(in.Name), Phone: trimmed(in.Phone), CustomData: in.CustomData.OrEmpty(),
		CreatedAt: now, UpdatedAt: now,
	}
	if in.IP != "" {
		ip := in.IP
		l.LastIP = &ip
	}
	m.leads = append(m.leads, l)
	cp := *l
	return &cp, nil
}

func (m *memStore) InsertEvent(_ context.Context, in models.EventInput) (*models.Event, error) {
	if m.eventErr != nil {
		return nil, &models.PersistenceError{Op: "insert event", Err: m.eventErr}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e := &models.Event{
		ID: uuid.NewString(), WebsiteID: in.WebsiteID, LeadID: in.LeadID, EventType: in.EventType,
		PageURL: in.PageURL, Data: in.Data.OrEmpty(), CreatedAt: time.Now(),
	}
	if in.Country != "" {
		c := in.Country
		e.Country = &c
	}
	m.events = append(m.events, e)
	return e, nil
}

func (m *memStore) counts() (leads, events int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.leads), len(m.events)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
