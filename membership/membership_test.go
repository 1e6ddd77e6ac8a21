package membership

import (
	"context"
	"errors"
	"testing"

	"simcha-api/domain"
)

type mockStore struct {
	events   map[string]*domain.Event
	users    map[string]*domain.User // keyed by lowercase email
	findErr  error
	updated  int
	gotEmail string
}

func newMockStore() *mockStore {
	return &mockStore{
		events: map[string]*domain.Event{},
		users:  map[string]*domain.User{},
	}
}

func (m *mockStore) GetEvent(ctx context.Context, eventID string) (*domain.Event, error) {
	ev, ok := m.events[eventID]
	if !ok {
		return nil, nil
	}
	copied := *ev
	copied.Members = append([]string(nil), ev.Members...)
	return &copied, nil
}

func (m *mockStore) UpdateEvent(ctx context.Context, ev domain.Event) error {
	m.updated++
	m.events[ev.ID] = &ev
	return nil
}

func (m *mockStore) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.gotEmail = email
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.users[email], nil
}

func testEvent() *domain.Event {
	return &domain.Event{ID: "e1", Name: "Wedding", OwnerID: "owner-1", Members: []string{"owner-1"}}
}

func TestAddMemberResolvesEmailCaseInsensitively(t *testing.T) {
	store := newMockStore()
	store.events["e1"] = testEvent()
	store.users["dana@example.com"] = &domain.User{Identity: "user-2", Email: "Dana@Example.com"}
	svc := New(store)

	if !svc.AddMember(context.Background(), "e1", "  Dana@Example.COM ") {
		t.Fatal("AddMember failed")
	}
	if store.gotEmail != "dana@example.com" {
		t.Fatalf("lookup email not normalized: %q", store.gotEmail)
	}
	members := store.events["e1"].Members
	if len(members) != 2 || members[1] != "user-2" {
		t.Fatalf("unexpected members: %v", members)
	}
}

func TestAddMemberDuplicateIsNoOp(t *testing.T) {
	store := newMockStore()
	ev := testEvent()
	ev.Members = append(ev.Members, "user-2")
	store.events["e1"] = ev
	store.users["dana@example.com"] = &domain.User{Identity: "user-2", Email: "dana@example.com"}
	svc := New(store)

	if svc.AddMember(context.Background(), "e1", "dana@example.com") {
		t.Fatal("duplicate add must report false")
	}
	if store.updated != 0 {
		t.Fatal("duplicate add must not write")
	}
	if len(store.events["e1"].Members) != 2 {
		t.Fatalf("members changed: %v", store.events["e1"].Members)
	}
}

func TestAddMemberUnknownEmail(t *testing.T) {
	store := newMockStore()
	store.events["e1"] = testEvent()
	svc := New(store)

	if svc.AddMember(context.Background(), "e1", "nobody@example.com") {
		t.Fatal("unknown email must report false")
	}
	if store.updated != 0 {
		t.Fatal("unknown email must not write")
	}
}

func TestAddMemberStoreFailure(t *testing.T) {
	store := newMockStore()
	store.events["e1"] = testEvent()
	store.findErr = errors.New("query failed")
	svc := New(store)

	if svc.AddMember(context.Background(), "e1", "dana@example.com") {
		t.Fatal("lookup failure must report false")
	}
}

func TestRemoveMember(t *testing.T) {
	store := newMockStore()
	ev := testEvent()
	ev.Members = append(ev.Members, "user-2")
	store.events["e1"] = ev
	svc := New(store)

	if !svc.RemoveMember(context.Background(), "e1", "user-2") {
		t.Fatal("RemoveMember failed")
	}
	members := store.events["e1"].Members
	if len(members) != 1 || members[0] != "owner-1" {
		t.Fatalf("unexpected members: %v", members)
	}
}

func TestRemoveMemberNeverRemovesOwner(t *testing.T) {
	store := newMockStore()
	store.events["e1"] = testEvent()
	svc := New(store)

	if svc.RemoveMember(context.Background(), "e1", "owner-1") {
		t.Fatal("owner removal must be refused")
	}
	if store.updated != 0 {
		t.Fatal("refused removal must not write")
	}
	if len(store.events["e1"].Members) != 1 {
		t.Fatalf("members changed: %v", store.events["e1"].Members)
	}
}

func TestRemoveMemberNotAMember(t *testing.T) {
	store := newMockStore()
	store.events["e1"] = testEvent()
	svc := New(store)

	if svc.RemoveMember(context.Background(), "e1", "stranger") {
		t.Fatal("removing a non-member must report false")
	}
}
