package rbac

import "fmt"

// Role is the privilege a principal holds inside one organization.
// The zero value is not a role; it is what callers see when no active membership exists.
type Role uint8

const (
	RoleNone Role = iota
	RoleOwner
	RoleAdmin
	RoleEditor
	RoleViewer
)

// Role names. Keep these stable; they are stored in memberships.role and returned over HTTP.
const (
	roleNameOwner  = "owner"
	roleNameAdmin  = "admin"
	roleNameEditor = "editor"
	roleNameViewer = "viewer"
)

// Roles lists every assignable role, highest privilege first.
func Roles() []Role {
	return []Role{RoleOwner, RoleAdmin, RoleEditor, RoleViewer}
}

func (r Role) String() string {
	switch r {
	case RoleOwner:
		return roleNameOwner
	case RoleAdmin:
		return roleNameAdmin
	case RoleEditor:
		return roleNameEditor
	case RoleViewer:
		return roleNameViewer
	default:
		return ""
	}
}

// Valid reports whether r is one of the four assignable roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleEditor, RoleViewer:
		return true
	default:
		return false
	}
}

// ParseRole converts a stored or client-supplied role name.
// Anything outside the closed set is rejected rather than mapped to a default.
func ParseRole(s string) (Role, error) {
	switch s {
	case roleNameOwner:
		return RoleOwner, nil
	case roleNameAdmin:
		return RoleAdmin, nil
	case roleNameEditor:
		return RoleEditor, nil
	case roleNameViewer:
		return RoleViewer, nil
	default:
		return RoleNone, fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid role %d", r)
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
