package ingest

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seuros/leadtrack/internal/logging"
	"github.com/seuros/leadtrack/internal/models"
	"github.com/seuros/leadtrack/internal/realtime"
)

// State is a step of one ingestion. Every run ends in StateDone or StateFailed.
type State string

const (
	StateValidatingKey  State = "validating_key"
	StateUpsertingLead  State = "upserting_lead"
	StateRecordingEvent State = "recording_event"
	StateDone           State = "done"
	StateFailed         State = "failed"
)

// Store is everything an ingestion writes to.
type Store interface {
	KeyStore
	UpsertLead(ctx context.Context, in models.LeadInput) (*models.Lead, error)
	InsertEvent(ctx context.Context, in models.EventInput) (*models.Event, error)
}

// Locator resolves an IP to an ISO country code and city name.
type Locator interface {
	Lookup(ip string) (country, city string)
}

// Publisher pushes recorded events to live subscribers.
type Publisher interface {
	Publish(ctx context.Context, p realtime.Payload) error
}

// Result is returned on success.
type Result struct {
	Lead  *models.Lead  `json:"lead"`
	Event *models.Event `json:"-"`
}

// Service runs ingestions. It holds no per-request state.
type Service struct {
	store       Store
	guard       *Guard
	geo         Locator
	publisher   Publisher
	log         *zap.Logger
	observe     func(outcome string, elapsed time.Duration)
	onState     func(State)
	async       func(func())
	sideTimeout time.Duration
}

type Option func(*Service)

func WithLocator(l Locator) Option { return func(s *Service) { s.geo = l } }

func WithPublisher(p Publisher) Option { return func(s *Service) { s.publisher = p } }

func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.log = l } }

// WithObserver receives the outcome code ("success" or an error code) and
// duration of every ingestion.
func WithObserver(fn func(outcome string, elapsed time.Duration)) Option {
	return func(s *Service) { s.observe = fn }
}

// WithStateHook is called on every state entered, including the first.
func WithStateHook(fn func(State)) Option { return func(s *Service) { s.onState = fn } }

// WithAsync replaces the goroutine launcher used for post-success work.
func WithAsync(fn func(func())) Option { return func(s *Service) { s.async = fn } }

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:       store,
		guard:       NewGuard(store),
		geo:         noLocator{},
		observe:     func(string, time.Duration) {},
		onState:     func(State) {},
		async:       func(fn func()) { go fn() },
		sideTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logging.Named("ingest")
	}
	return s
}

// Ingest authorizes rawKey for req.WebsiteID, upserts the lead and records
// the event. Nothing is retried, and a failed event insert does not undo
// the lead upsert.
func (s *Service) Ingest(ctx context.Context, rawKey string, req Request, meta Meta) (*Result, error) {
	start := time.Now()

	s.onState(StateValidatingKey)
	key, err := s.guard.Authorize(ctx, rawKey, req.WebsiteID)
	if err != nil {
		return nil, s.fail(StateValidatingKey, err, start, zap.String("website_id", req.WebsiteID))
	}
	if err := req.Validate(); err != nil {
		return nil, s.fail(StateValidatingKey, err, start, zap.Stringer("website_id", key.WebsiteID))
	}

	s.onState(StateUpsertingLead)
	lead, err := s.store.UpsertLead(ctx, req.leadInput(key.WebsiteID, meta.IP))
	if err != nil {
		return nil, s.fail(StateUpsertingLead, err, start, zap.Stringer("website_id", key.WebsiteID))
	}

	s.onState(StateRecordingEvent)
	country, city := s.geo.Lookup(meta.IP)
	event, err := s.store.InsertEvent(ctx, models.EventInput{
		WebsiteID: key.WebsiteID,
		LeadID:    lead.ID,
		EventType: strings.TrimSpace(req.Event),
		PageURL:   req.URL,
		Data:      req.Data,
		Country:   country,
		City:      city,
	})
	if err != nil {
		return nil, s.fail(StateRecordingEvent, err, start,
			zap.Stringer("website_id", key.WebsiteID),
			zap.Stringer("lead_id", lead.ID))
	}

	s.onState(StateDone)
	s.observe("success", time.Since(start))
	s.log.Debug("event ingested",
		zap.Stringer("website_id", key.WebsiteID),
		zap.Stringer("lead_id", lead.ID),
		zap.String("event_id", event.ID),
		zap.String("event_type", event.EventType))

	s.async(func() { s.afterSuccess(key.ID, lead, event) })
	return &Result{Lead: lead, Event: event}, nil
}

// Reject ends an ingestion whose body could not be decoded. Key errors win
// over cause: the key is checked against websiteID when the body still
// carried one, and on its own otherwise. Nothing is written.
func (s *Service) Reject(ctx context.Context, rawKey, websiteID string, cause error) error {
	start := time.Now()
	s.onState(StateValidatingKey)

	var err error
	if strings.TrimSpace(websiteID) != "" {
		_, err = s.guard.Authorize(ctx, rawKey, websiteID)
	} else {
		_, err = s.guard.CheckKey(ctx, rawKey)
	}
	if err == nil {
		err = cause
	}
	return s.fail(StateValidatingKey, err, start, zap.String("website_id", websiteID))
}

func (s *Service) fail(at State, err error, start time.Time, fields ...zap.Field) error {
	s.onState(StateFailed)
	code := models.ErrorKind(err)
	s.observe(code, time.Since(start))

	fields = append(fields, zap.String("state", string(at)), zap.String("code", code), zap.Error(err))
	if code == models.CodePersistence || code == models.CodeInternal {
		s.log.Error("ingestion failed", fields...)
	} else {
		s.log.Debug("ingestion rejected", fields...)
	}
	return err
}

// afterSuccess refreshes last_used_at and notifies live subscribers. Errors
// are logged only; the caller already has its response.
func (s *Service) afterSuccess(keyID uuid.UUID, lead *models.Lead, event *models.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), s.sideTimeout)
	defer cancel()

	if err := s.store.TouchAPIKey(ctx, keyID); err != nil {
		s.log.Warn("failed to update api key last_used_at", zap.Stringer("key_id", keyID), zap.Error(err))
	}
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, realtime.NewEventPayload(lead, event)); err != nil {
		s.log.Warn("failed to publish realtime event", zap.String("event_id", event.ID), zap.Error(err))
	}
}

type noLocator struct{}

func (noLocator) Lookup(string) (string, string) { return "", "" }
