package domain

import "time"

// Event is a planned occasion owning one task list and a member set.
type Event struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Date        string    `json:"date,omitempty"`
	Description string    `json:"description,omitempty"`
	OwnerID     string    `json:"ownerId"`
	Members     []string  `json:"members"`
	TaskCount   int       `json:"tasksCount"`
	CreatedAt   time.Time `json:"createdAt"`
	LastUpdated time.Time `json:"lastUpdated,omitempty"`
}

// IsMember reports whether the identity may see and edit this event.
func (e Event) IsMember(identity string) bool {
	for _, m := range e.Members {
		if m == identity {
			return true
		}
	}
	return false
}

// AddMember appends the identity to the member set. It reports false when the
// identity is already a member; Members stays duplicate-free.
func (e *Event) AddMember(identity string) bool {
	if e.IsMember(identity) {
		return false
	}
	e.Members = append(e.Members, identity)
	return true
}

// RemoveMember drops the identity from the member set. The owner can never be
// removed, including by themselves.
func (e *Event) RemoveMember(identity string) bool {
	if identity == e.OwnerID || !e.IsMember(identity) {
		return false
	}
	members := make([]string, 0, len(e.Members)-1)
	for _, m := range e.Members {
		if m != identity {
			members = append(members, m)
		}
	}
	e.Members = members
	return true
}
