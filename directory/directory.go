// Package directory creates and lists events and seeds a new event's task
// list from the catalog.
package directory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"simcha-api/domain"
)

// Store is the slice of the storage layer the directory writes through.
type Store interface {
	GetEvent(ctx context.Context, eventID string) (*domain.Event, error)
	InsertEvent(ctx context.Context, ev domain.Event) error
	UpdateEvent(ctx context.Context, ev domain.Event) error
	ListEventsFor(ctx context.Context, identity string) ([]domain.Event, error)
	SaveEventTasks(ctx context.Context, eventID string, tasks domain.TaskList) error
}

// Seeder answers catalog membership and instantiates catalog entries into
// fresh tasks.
type Seeder interface {
	Known(ctx context.Context, eventType string) bool
	Seed(ctx context.Context, eventType, prefix string) domain.TaskList
}

// CreateParams carries the caller's input for a new event.
type CreateParams struct {
	Name            string
	Type            string
	Date            string
	Description     string
	AddDefaultTasks bool
	OwnerID         string
}

// Service is the Event Directory.
type Service struct {
	store    Store
	seeder   Seeder
	sentinel string
}

// New creates a directory Service. sentinel is the event type that never
// seeds (the catalog's escape hatch for custom events).
func New(store Store, seeder Seeder, sentinel string) *Service {
	return &Service{store: store, seeder: seeder, sentinel: sentinel}
}

// Create stores a new event owned by params.OwnerID. Name and type are
// mandatory. When AddDefaultTasks is set the type must be a catalog type or
// the sentinel: a typoed type is rejected here rather than producing a
// silently empty seed. The sentinel never seeds; otherwise the event's task
// list is seeded from the catalog. Returns nil on validation or store
// failure; nothing further is written after the first failing store call.
func (s *Service) Create(ctx context.Context, params CreateParams) *domain.Event {
	name := strings.TrimSpace(params.Name)
	eventType := strings.TrimSpace(params.Type)
	if name == "" || eventType == "" || params.OwnerID == "" {
		return nil
	}
	if params.AddDefaultTasks && eventType != s.sentinel && !s.seeder.Known(ctx, eventType) {
		log.WithField("event_type", eventType).Warn("refusing to seed unknown event type")
		return nil
	}

	ev := domain.Event{
		ID:          uuid.NewString(),
		Name:        name,
		Type:        eventType,
		Date:        params.Date,
		Description: params.Description,
		OwnerID:     params.OwnerID,
		Members:     []string{params.OwnerID},
		CreatedAt:   time.Now().UTC(),
	}

	var tasks domain.TaskList
	if params.AddDefaultTasks && eventType != s.sentinel {
		tasks = s.seeder.Seed(ctx, eventType, domain.SeedPrefixCreate)
	}
	ev.TaskCount = len(tasks)

	if err := s.store.InsertEvent(ctx, ev); err != nil {
		log.Errorf("insert event: %v", err)
		return nil
	}
	// The event and its task-list record are two separate writes. A crash in
	// between leaves an event without a record, which readers treat as an
	// empty list.
	if tasks == nil {
		tasks = domain.TaskList{}
	}
	if err := s.store.SaveEventTasks(ctx, ev.ID, tasks); err != nil {
		log.WithField("event_id", ev.ID).Errorf("save seeded tasks: %v", err)
		return nil
	}
	return &ev
}

// ListFor returns all events the identity is a member of,
// newest-created-first. Store failures surface as an empty slice.
func (s *Service) ListFor(ctx context.Context, identity string) []domain.Event {
	events, err := s.store.ListEventsFor(ctx, identity)
	if err != nil {
		log.Errorf("list events: %v", err)
		return []domain.Event{}
	}
	return events
}

// Get returns one event, or nil when it is absent or the store fails.
func (s *Service) Get(ctx context.Context, eventID string) *domain.Event {
	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		log.WithField("event_id", eventID).Errorf("get event: %v", err)
		return nil
	}
	return ev
}

// Update is a merge-style field update on the event record. Empty fields of
// upd are left untouched; the stored record's last-updated stamp is always
// refreshed.
func (s *Service) Update(ctx context.Context, eventID string, upd EventUpdate) bool {
	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil || ev == nil {
		if err != nil {
			log.WithField("event_id", eventID).Errorf("get event: %v", err)
		}
		return false
	}
	upd.apply(ev)
	if err := s.store.UpdateEvent(ctx, *ev); err != nil {
		log.WithField("event_id", eventID).Errorf("update event: %v", err)
		return false
	}
	return true
}

// EventUpdate is a field-level partial update of an event. Nil fields are
// left untouched.
type EventUpdate struct {
	Name        *string `json:"name,omitempty"`
	Type        *string `json:"type,omitempty"`
	Date        *string `json:"date,omitempty"`
	Description *string `json:"description,omitempty"`
}

func (u EventUpdate) apply(ev *domain.Event) {
	if u.Name != nil && strings.TrimSpace(*u.Name) != "" {
		ev.Name = strings.TrimSpace(*u.Name)
	}
	if u.Type != nil && strings.TrimSpace(*u.Type) != "" {
		ev.Type = strings.TrimSpace(*u.Type)
	}
	if u.Date != nil {
		ev.Date = *u.Date
	}
	if u.Description != nil {
		ev.Description = *u.Description
	}
}
