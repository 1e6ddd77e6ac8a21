package identity

import (
	"context"
	"errors"
	"testing"

	"simcha-api/domain"
)

type mockStore struct {
	users   map[string]*domain.User
	getErr  error
	saveErr error
	saved   []domain.User
}

func newMockStore() *mockStore {
	return &mockStore{users: map[string]*domain.User{}}
}

func (m *mockStore) GetUser(ctx context.Context, identity string) (*domain.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	u, ok := m.users[identity]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func (m *mockStore) UpsertUser(ctx context.Context, u domain.User) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, u)
	m.users[u.Identity] = &u
	return nil
}

func TestBeginLoadsExistingProfile(t *testing.T) {
	store := newMockStore()
	store.users["u1"] = &domain.User{Identity: "u1", Email: "dana@example.com", FirstName: "Dana"}
	mgr := NewManager(store)

	s := mgr.Begin(context.Background(), "u1", "dana@example.com")
	if s == nil {
		t.Fatal("Begin returned nil")
	}
	if s.User.FirstName != "Dana" {
		t.Fatalf("profile not loaded: %+v", s.User)
	}
	if len(store.saved) != 0 {
		t.Fatal("existing profile must not be rewritten on sign-in")
	}
	if mgr.Active("u1") != s {
		t.Fatal("session not registered")
	}
}

func TestBeginFirstSignInCreatesRecord(t *testing.T) {
	store := newMockStore()
	mgr := NewManager(store)

	s := mgr.Begin(context.Background(), "u1", "  Dana@Example.COM ")
	if s == nil {
		t.Fatal("Begin returned nil")
	}
	if len(store.saved) != 1 {
		t.Fatalf("expected one created record, got %d", len(store.saved))
	}
	if store.saved[0].Email != "dana@example.com" {
		t.Fatalf("email not normalized: %q", store.saved[0].Email)
	}
}

func TestBeginStoreFailure(t *testing.T) {
	store := newMockStore()
	store.getErr = errors.New("down")
	mgr := NewManager(store)
	if s := mgr.Begin(context.Background(), "u1", "x@example.com"); s != nil {
		t.Fatal("expected nil session on store failure")
	}
}

func TestEndIsIdempotentAndNotifies(t *testing.T) {
	store := newMockStore()
	mgr := NewManager(store)

	var events []bool
	dispose := mgr.Subscribe(func(s *Session, active bool) {
		events = append(events, active)
	})
	defer dispose()

	s := mgr.Begin(context.Background(), "u1", "x@example.com")
	s.End()
	s.End()

	if len(events) != 2 || !events[0] || events[1] {
		t.Fatalf("unexpected change events: %v", events)
	}
	if mgr.Active("u1") != nil {
		t.Fatal("session still registered after End")
	}
}

func TestSubscribeDisposerIsIdempotent(t *testing.T) {
	store := newMockStore()
	mgr := NewManager(store)

	calls := 0
	dispose := mgr.Subscribe(func(s *Session, active bool) { calls++ })
	dispose()
	dispose()

	mgr.Begin(context.Background(), "u1", "x@example.com")
	if calls != 0 {
		t.Fatalf("disposed subscriber still called %d times", calls)
	}
}

func TestEndKeepsNewerSessionRegistered(t *testing.T) {
	store := newMockStore()
	mgr := NewManager(store)
	ctx := context.Background()

	old := mgr.Begin(ctx, "u1", "x@example.com")
	fresh := mgr.Begin(ctx, "u1", "x@example.com")
	old.End()

	if mgr.Active("u1") != fresh {
		t.Fatal("ending a stale session must not drop the fresh one")
	}
}

func TestSaveProfile(t *testing.T) {
	store := newMockStore()
	store.users["u1"] = &domain.User{Identity: "u1", Email: "dana@example.com"}
	mgr := NewManager(store)

	s := mgr.Begin(context.Background(), "u1", "dana@example.com")
	ok := mgr.SaveProfile(context.Background(), s, domain.Profile{
		FirstName: "Dana", LastName: "Levi", Phone: "050-1234567", Nickname: "D",
	})
	if !ok {
		t.Fatal("SaveProfile failed")
	}
	if s.User.FirstName != "Dana" || s.User.Nickname != "D" {
		t.Fatalf("session profile not updated: %+v", s.User)
	}
	stored := store.users["u1"]
	if stored.LastName != "Levi" || stored.Email != "dana@example.com" {
		t.Fatalf("stored record wrong: %+v", stored)
	}
}

func TestSaveProfileNilSession(t *testing.T) {
	mgr := NewManager(newMockStore())
	if mgr.SaveProfile(context.Background(), nil, domain.Profile{}) {
		t.Fatal("nil session must fail")
	}
}
