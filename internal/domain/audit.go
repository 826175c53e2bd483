package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditEntry is one append-only record of who did what. The engine writes
// these for transaction ingests, risk level changes, and alert creation;
// formatting and review tooling live outside the core.
type AuditEntry struct {
	ID        string    `json:"id" db:"id"`
	User      string    `json:"user" db:"username"`
	Action    string    `json:"action" db:"action"`
	Details   string    `json:"details" db:"details"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}

// NewAuditEntry creates an audit record with a random opaque id.
func NewAuditEntry(user, action, details string, now time.Time) *AuditEntry {
	return &AuditEntry{
		ID:        uuid.NewString(),
		User:      user,
		Action:    action,
		Details:   details,
		Timestamp: now,
	}
}
