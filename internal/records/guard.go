package records

import (
	"tenant-platform/internal/rbac"
)

// Guard re-checks the writer's membership inside the write transaction.
// Repositories read the membership of PrincipalID in the record's organization under a share
// lock and call Check before writing, so a revocation that commits first aborts the write.
type Guard struct {
	PrincipalID string
	Action      rbac.ActionClass
}

// Check returns rbac.ErrAccessDenied unless the membership permits Action.
func (g Guard) Check(rec rbac.MembershipRecord, found bool) error {
	_, err := rbac.CheckRecord(rec, found, g.Action)
	return err
}
