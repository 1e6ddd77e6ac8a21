// Package catalog exposes the read-only default-task catalog: which event
// types exist and which seed tasks each one carries.
package catalog

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"simcha-api/domain"
)

// TypeOther is the escape hatch for custom events. It is always a valid
// event type and never seeds any tasks.
const TypeOther = "אחר"

// Store is the slice of the storage layer the catalog reads from.
type Store interface {
	ListDefaultTasks(ctx context.Context, eventType string) ([]domain.DefaultTaskTemplate, error)
	ListEventTypes(ctx context.Context) ([]string, error)
}

// Service answers catalog lookups. Store failures are logged and surface as
// empty results, never as errors.
type Service struct {
	store Store
}

// New creates a catalog Service over the given store.
func New(store Store) *Service {
	return &Service{store: store}
}

// Types lists the event types a caller may pick: every type present in the
// catalog plus TypeOther.
func (s *Service) Types(ctx context.Context) []string {
	types, err := s.store.ListEventTypes(ctx)
	if err != nil {
		log.Errorf("list event types: %v", err)
		return []string{TypeOther}
	}
	return append(types, TypeOther)
}

// Known reports whether the event type is a catalog type. TypeOther is valid
// but not known; an unknown type is an explicit miss rather than a silent
// empty seed, so a typo surfaces instead of vanishing.
func (s *Service) Known(ctx context.Context, eventType string) bool {
	if eventType == TypeOther {
		return false
	}
	for _, t := range s.Types(ctx) {
		if t == eventType {
			return true
		}
	}
	return false
}

// TasksFor returns the catalog entries for the event type. TypeOther and
// unknown types yield an empty slice.
func (s *Service) TasksFor(ctx context.Context, eventType string) []domain.DefaultTaskTemplate {
	if eventType == TypeOther {
		return nil
	}
	templates, err := s.store.ListDefaultTasks(ctx, eventType)
	if err != nil {
		log.WithField("event_type", eventType).Errorf("list default tasks: %v", err)
		return nil
	}
	return templates
}

// Seed instantiates the catalog entries for the event type into fresh tasks:
// new ids under the given prefix, status todo, no reminder. An empty catalog
// yields an empty list.
func (s *Service) Seed(ctx context.Context, eventType, prefix string) domain.TaskList {
	templates := s.TasksFor(ctx, eventType)
	if len(templates) == 0 {
		return nil
	}
	now := time.Now().UTC()
	tasks := make(domain.TaskList, 0, len(templates))
	for i, tpl := range templates {
		tasks = append(tasks, domain.Task{
			ID:        domain.SeededTaskID(prefix, i),
			Text:      tpl.Text,
			Status:    domain.StatusTodo,
			Category:  tpl.Category,
			Priority:  tpl.Priority,
			CreatedAt: now,
		})
	}
	return tasks
}
