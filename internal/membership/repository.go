package membership

import (
	"context"
	"errors"
	"time"

	"tenant-platform/internal/rbac"
)

var (
	ErrNotFound        = errors.New("membership: not found")
	ErrInvalidArgument = errors.New("membership: invalid argument")
	ErrAlreadyMember   = errors.New("membership: principal is already an active member")
	ErrLastOwner       = errors.New("membership: organization must keep an active owner")
)

// Repository persists organizations and memberships.
type Repository interface {
	// CreateOrganization stores the organization and its first owner atomically.
	CreateOrganization(ctx context.Context, org Organization, owner Membership) error

	// Get returns the membership row whether active or not. ErrNotFound if none exists.
	Get(ctx context.Context, organizationID, principalID string) (Membership, error)

	// List returns active memberships ordered by joined_at.
	List(ctx context.Context, organizationID string) ([]Membership, error)

	// Insert adds a new row after g passes. ErrAlreadyMember if a row for the pair exists.
	Insert(ctx context.Context, m Membership, g ActorGuard) error

	// UpdateRoleActive sets role and active in one write and returns the updated row.
	// The guard, the WasActive precondition and the last-owner rule are evaluated against
	// locked rows in the same transaction as the write. It returns ErrLastOwner, without
	// writing, when the change would leave the organization with no active owner.
	UpdateRoleActive(ctx context.Context, u Update, g ActorGuard) (Membership, error)
}

// Update is a role and active write on one membership row.
type Update struct {
	OrganizationID string
	PrincipalID    string
	Role           rbac.Role
	Active         bool
	// WasActive is the state the caller observed. A row found in the other state returns
	// ErrNotFound if it was deactivated meanwhile, ErrAlreadyMember if it was reactivated.
	WasActive bool
	At        time.Time
}

// CheckTransition validates the locked current row against u. Call it after the guard.
func (u Update) CheckTransition(cur Membership, activeOwners int) error {
	if cur.Active != u.WasActive {
		if cur.Active {
			return ErrAlreadyMember
		}
		return ErrNotFound
	}
	removesOwner := cur.Active && cur.Role == rbac.RoleOwner && (u.Role != rbac.RoleOwner || !u.Active)
	if removesOwner && activeOwners <= 1 {
		return ErrLastOwner
	}
	return nil
}
