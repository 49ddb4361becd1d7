package store

import "time"

// DocumentRecord is a stored content document. Payload holds the full raw
// document as authored; the slug/status/title/category columns mirror the
// payload for indexing and are authoritative on read. Draft, when non-nil,
// is an unpublished revision layered over Payload.
type DocumentRecord struct {
	ID        string
	Type      string
	Slug      string
	Status    string
	Title     string
	Category  string
	Payload   map[string]any
	Draft     map[string]any
	UpdatedAt time.Time
}

// Operator is an admin-panel account. Role is one of the rbac roles.
type Operator struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}
