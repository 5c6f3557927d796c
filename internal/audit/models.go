package audit

import "time"

// Event is an immutable, append-only record of a write the gateway forwarded to the CRM.
//
// Invariants:
// - Events are never updated or deleted.
// - Recording is best-effort; a failed append never fails the request that caused it.
type Event struct {
	ID   string    `json:"id" db:"id"`
	Type EventType `json:"type" db:"type"`

	// ObjectType and ObjectID identify the CRM record the event is about.
	ObjectType string `json:"object_type" db:"object_type"`
	ObjectID   string `json:"object_id,omitempty" db:"object_id"`

	// Action is the outcome, e.g. created or updated.
	Action string `json:"action,omitempty" db:"action"`
	Region string `json:"region,omitempty" db:"region"`

	RequestID string `json:"request_id,omitempty" db:"request_id"`
	Message   string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeContactUpserted    EventType = "contact_upserted"
	EventTypeCallLogged         EventType = "call_logged"
	EventTypeAssociationFailed  EventType = "association_failed"
	EventTypeCallRolledBack     EventType = "call_rolled_back"
	EventTypeAssociationQueued  EventType = "association_queued"
	EventTypeAssociationApplied EventType = "association_applied"
)
