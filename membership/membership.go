// Package membership manages who may see and edit an event.
package membership

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"simcha-api/domain"
)

// Store is the slice of the storage layer membership operates on.
type Store interface {
	GetEvent(ctx context.Context, eventID string) (*domain.Event, error)
	UpdateEvent(ctx context.Context, ev domain.Event) error
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
}

// Service is the Membership Manager.
type Service struct {
	store Store
}

// New creates a membership Service over the given store.
func New(store Store) *Service {
	return &Service{store: store}
}

// AddMember resolves the email to an identity (case-insensitive exact match)
// and appends it to the event's member set. It reports false when the event
// or user is absent, when the identity is already a member, or when the
// store fails.
func (s *Service) AddMember(ctx context.Context, eventID, email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return false
	}
	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil || ev == nil {
		if err != nil {
			log.WithField("event_id", eventID).Errorf("get event: %v", err)
		}
		return false
	}
	user, err := s.store.FindUserByEmail(ctx, email)
	if err != nil {
		log.Errorf("find user by email: %v", err)
		return false
	}
	if user == nil {
		log.WithField("event_id", eventID).Debug("add member: no user for email")
		return false
	}
	if !ev.AddMember(user.Identity) {
		// Already a member; reported as a no-op, not silent success.
		return false
	}
	if err := s.store.UpdateEvent(ctx, *ev); err != nil {
		log.WithField("event_id", eventID).Errorf("update members: %v", err)
		return false
	}
	return true
}

// RemoveMember drops the identity from the event's member set. The owner can
// never be removed, including by themselves; that refusal is logged
// distinctly from other failures.
func (s *Service) RemoveMember(ctx context.Context, eventID, identity string) bool {
	ev, err := s.store.GetEvent(ctx, eventID)
	if err != nil || ev == nil {
		if err != nil {
			log.WithField("event_id", eventID).Errorf("get event: %v", err)
		}
		return false
	}
	if identity == ev.OwnerID {
		log.WithField("event_id", eventID).Warn("refusing to remove event owner")
		return false
	}
	if !ev.RemoveMember(identity) {
		return false
	}
	if err := s.store.UpdateEvent(ctx, *ev); err != nil {
		log.WithField("event_id", eventID).Errorf("update members: %v", err)
		return false
	}
	return true
}
