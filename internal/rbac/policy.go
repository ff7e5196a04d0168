package rbac

import "fmt"

// ActionClass is the policy tier an operation is statically assigned to.
type ActionClass uint8

const (
	ActionUnknown ActionClass = iota
	ActionRead
	ActionWrite
	ActionAdminWrite
)

func (a ActionClass) String() string {
	switch a {
	case ActionRead:
		return "read"
	case ActionWrite:
		return "write"
	case ActionAdminWrite:
		return "admin-write"
	default:
		return "unknown"
	}
}

func ParseActionClass(s string) (ActionClass, error) {
	switch s {
	case "read":
		return ActionRead, nil
	case "write":
		return ActionWrite, nil
	case "admin-write":
		return ActionAdminWrite, nil
	default:
		return ActionUnknown, fmt.Errorf("unknown action class %q", s)
	}
}

// policy is the single Action-Class-to-allowed-roles table.
// Roles are enumerated explicitly per class; there is no ordering between roles.
var policy = map[ActionClass][]Role{
	ActionRead:       {RoleOwner, RoleAdmin, RoleEditor, RoleViewer},
	ActionWrite:      {RoleOwner, RoleAdmin, RoleEditor},
	ActionAdminWrite: {RoleOwner, RoleAdmin},
}

// AllowedRoles returns a copy of the roles permitted for the action class.
// Unknown classes permit nothing.
func AllowedRoles(a ActionClass) []Role {
	allowed := policy[a]
	out := make([]Role, len(allowed))
	copy(out, allowed)
	return out
}

// Permits reports whether role is in the allowed set of the action class.
func Permits(a ActionClass, role Role) bool {
	for _, r := range policy[a] {
		if r == role {
			return true
		}
	}
	return false
}

// Decision is the outcome of an authorization check.
type Decision uint8

const (
	Deny Decision = iota
	Allow
)

func (d Decision) Allowed() bool { return d == Allow }

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}
