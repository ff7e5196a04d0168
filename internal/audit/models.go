package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - organization_id is required for tenancy isolation.
// - recording is best-effort; do not block authorization or membership writes on audit failures.
type Event struct {
	ID             string `json:"id" db:"id"`
	OrganizationID string `json:"organization_id" db:"organization_id"`

	Type EventType `json:"type" db:"type"`

	// ActorPrincipalID is the authenticated principal causing the event.
	ActorPrincipalID string `json:"actor_principal_id,omitempty" db:"actor_principal_id"`
	// ActorRole is the actor's role at the time of the event, empty for non-members.
	ActorRole string `json:"actor_role,omitempty" db:"actor_role"`

	// TargetPrincipalID is the member affected by a membership change.
	TargetPrincipalID string `json:"target_principal_id,omitempty" db:"target_principal_id"`

	// Action is the action class for denials or the membership operation for changes.
	Action string `json:"action,omitempty" db:"action"`

	Message  string `json:"message,omitempty" db:"message"`
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeAccessDenied        EventType = "access_denied"
	EventTypeMembershipChanged   EventType = "membership_changed"
	EventTypeOrganizationCreated EventType = "organization_created"
)
