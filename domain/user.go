package domain

// User is a registered account. The identity is assigned by the
// authentication provider and never changes; the profile fields are mutable
// by the owning user only.
type User struct {
	Identity  string `json:"uid"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Nickname  string `json:"nickname,omitempty"`
}

// Profile is the user-editable part of a User record.
type Profile struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Nickname  string `json:"nickname,omitempty"`
}

// DefaultTaskTemplate is an immutable catalog entry a seed task is
// instantiated from.
type DefaultTaskTemplate struct {
	EventType string `json:"eventType"`
	Text      string `json:"text"`
	Category  string `json:"category,omitempty"`
	Priority  string `json:"priority,omitempty"`
}
