package membership

import (
	"tenant-platform/internal/rbac"
)

// ActorGuard re-checks the acting principal inside the membership write transaction.
// Repositories read the actor's row under a share lock and the target's row under an update
// lock, then call Check before writing.
type ActorGuard struct {
	PrincipalID string
}

// Check returns rbac.ErrAccessDenied unless the actor holds admin-write and, when the write
// grants owner or touches an active owner, is an owner. target is nil when no row exists yet.
func (g ActorGuard) Check(actor rbac.MembershipRecord, found bool, target *Membership, role rbac.Role) error {
	actorRole, err := rbac.CheckRecord(actor, found, rbac.ActionAdminWrite)
	if err != nil {
		return err
	}
	touchesOwner := role == rbac.RoleOwner || (target != nil && target.Active && target.Role == rbac.RoleOwner)
	if touchesOwner && actorRole != rbac.RoleOwner {
		return rbac.ErrAccessDenied
	}
	return nil
}
