// Package identity wraps the external authentication provider behind
// explicit session objects. A session is created when an authenticated
// identity attaches, carries that user's profile, and is torn down on
// sign-out; there is no process-wide current-user state.
package identity

import (
	"context"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"simcha-api/domain"
)

// Store is the slice of the storage layer identity reads profiles from.
type Store interface {
	GetUser(ctx context.Context, identity string) (*domain.User, error)
	UpsertUser(ctx context.Context, u domain.User) error
}

// Session is one authenticated identity with its profile loaded. The
// identity is fixed for the session's lifetime; only profile fields change.
type Session struct {
	UserID string
	User   domain.User

	mgr  *Manager
	once sync.Once
}

// End tears the session down and notifies subscribers. Ending twice is
// harmless.
func (s *Session) End() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.mgr.drop(s)
	})
}

// ChangeFunc observes identity changes. active is true when the session was
// just created and false when it ended.
type ChangeFunc func(s *Session, active bool)

// Manager creates sessions and fans identity changes out to subscribers.
type Manager struct {
	store Store

	mu       sync.Mutex
	sessions map[string]*Session
	subs     map[int]ChangeFunc
	nextSub  int
}

// NewManager creates a session Manager over the given store.
func NewManager(store Store) *Manager {
	return &Manager{
		store:    store,
		sessions: make(map[string]*Session),
		subs:     make(map[int]ChangeFunc),
	}
}

// Begin creates a session for an identity the authentication provider has
// already verified. The profile record is loaded from the store; on first
// sign-in (no record yet) one is created carrying the provider's email.
// Returns nil when the store fails.
func (m *Manager) Begin(ctx context.Context, userID, email string) *Session {
	user, err := m.store.GetUser(ctx, userID)
	if err != nil {
		log.WithField("user_id", userID).Errorf("load profile: %v", err)
		return nil
	}
	if user == nil {
		u := domain.User{Identity: userID, Email: strings.ToLower(strings.TrimSpace(email))}
		if err := m.store.UpsertUser(ctx, u); err != nil {
			log.WithField("user_id", userID).Errorf("create profile: %v", err)
			return nil
		}
		user = &u
	}
	s := &Session{UserID: userID, User: *user, mgr: m}
	m.mu.Lock()
	m.sessions[userID] = s
	subs := m.snapshotSubs()
	m.mu.Unlock()
	for _, fn := range subs {
		fn(s, true)
	}
	return s
}

// Active returns the live session for the identity, or nil.
func (m *Manager) Active(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[userID]
}

// Subscribe registers a change observer and returns its disposer. Disposal
// is idempotent.
func (m *Manager) Subscribe(fn ChangeFunc) func() {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

// SaveProfile updates the profile fields of the session's own user record.
// Only the owning session may write its record.
func (m *Manager) SaveProfile(ctx context.Context, s *Session, p domain.Profile) bool {
	if s == nil {
		return false
	}
	u := s.User
	u.FirstName = p.FirstName
	u.LastName = p.LastName
	u.Phone = p.Phone
	u.Nickname = p.Nickname
	if err := m.store.UpsertUser(ctx, u); err != nil {
		log.WithField("user_id", s.UserID).Errorf("save profile: %v", err)
		return false
	}
	s.User = u
	return true
}

func (m *Manager) drop(s *Session) {
	m.mu.Lock()
	if m.sessions[s.UserID] == s {
		delete(m.sessions, s.UserID)
	}
	subs := m.snapshotSubs()
	m.mu.Unlock()
	for _, fn := range subs {
		fn(s, false)
	}
}

// snapshotSubs is called with m.mu held.
func (m *Manager) snapshotSubs() []ChangeFunc {
	subs := make([]ChangeFunc, 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	return subs
}
