package membership

import (
	"time"

	"tenant-platform/internal/rbac"
)

// Organization is the tenant boundary. Every business record belongs to exactly one.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Membership links a principal to an organization with one role.
//
// Invariants:
// - At most one row per (organization_id, principal_id); re-adding reactivates it.
// - Role and Active are always written together.
// - An organization with members keeps at least one active owner.
type Membership struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	PrincipalID    string    `json:"principal_id"`
	Role           rbac.Role `json:"role"`
	Active         bool      `json:"active"`
	JoinedAt       time.Time `json:"joined_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Membership operations, as recorded in audit events.
const (
	OperationAdd        = "add"
	OperationReactivate = "reactivate"
	OperationChangeRole = "change_role"
	OperationDeactivate = "deactivate"
)
