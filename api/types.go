package api

import (
	"context"

	"simcha-api/directory"
	"simcha-api/domain"
	"simcha-api/identity"
)

// Directory is the event directory surface handlers call into.
type Directory interface {
	Create(ctx context.Context, params directory.CreateParams) *domain.Event
	ListFor(ctx context.Context, identity string) []domain.Event
	Get(ctx context.Context, eventID string) *domain.Event
	Update(ctx context.Context, eventID string, upd directory.EventUpdate) bool
}

// Membership manages an event's member set.
type Membership interface {
	AddMember(ctx context.Context, eventID, email string) bool
	RemoveMember(ctx context.Context, eventID, identity string) bool
}

// TaskEngine is the task synchronization engine surface.
type TaskEngine interface {
	Subscribe(ctx context.Context, eventID string) <-chan domain.TaskList
	Tasks(ctx context.Context, eventID string) (domain.TaskList, bool)
	AddTask(ctx context.Context, eventID, text, category, priority string) bool
	UpdateTask(ctx context.Context, eventID, taskID string, upd domain.TaskUpdate) bool
	ToggleTask(ctx context.Context, eventID, taskID string) bool
	SetReminder(ctx context.Context, eventID, taskID, reminder string) bool
	DeleteTask(ctx context.Context, eventID, taskID string) bool
	AddDefaultTasks(ctx context.Context, eventID, eventType string) bool
	RemoveDefaultTasks(ctx context.Context, eventID string) bool
}

// Catalog lists the event types a client may pick.
type Catalog interface {
	Types(ctx context.Context) []string
}

// Sessions is the identity session surface.
type Sessions interface {
	Begin(ctx context.Context, userID, email string) *identity.Session
	Active(userID string) *identity.Session
	SaveProfile(ctx context.Context, s *identity.Session, p domain.Profile) bool
}

// Authenticator is implemented by types able to extract identities from
// Authorization headers.
type Authenticator interface {
	IdentityFromAuthHeader(string) (Identity, error)
}

// Identity is the verified claim set a request carries.
type Identity struct {
	UserID string
	Email  string
}

// Deduper prevents replayed mutations from being applied twice.
type Deduper interface {
	// Add records the idempotency key and returns true if it was newly added.
	Add(ctx context.Context, userID, key string) (bool, error)
	// Remove deletes a previously added key, used when the mutation fails.
	Remove(ctx context.Context, userID, key string) error
}
