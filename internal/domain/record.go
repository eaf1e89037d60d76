package domain

import (
	"strings"
	"time"
)

// Record is implemented by every QMS collection entry so repositories can
// store, filter and order them without knowing the concrete type.
type Record interface {
	RecordID() string
	// RecordDate is the date used for listing order and backup range filtering.
	RecordDate() time.Time
	RecordStatus() string
	SearchText() string
}

// Meta common bookkeeping fields
type Meta struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (m Meta) RecordID() string { return m.ID }

// Touch sets CreatedAt on first call and UpdatedAt always.
func (m *Meta) Touch(now time.Time) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
}

// HistoryEntry one workflow step on a record
type HistoryEntry struct {
	At      time.Time `json:"at"`
	ActorID string    `json:"actorId"`
	Action  string    `json:"action"`
	From    string    `json:"from,omitempty"`
	To      string    `json:"to,omitempty"`
	Comment string    `json:"comment,omitempty"`
}

func joinSearch(parts ...string) string {
	return strings.ToLower(strings.Join(parts, " "))
}
