package auth

import "slices"

// Role is the role carried in a token.
type Role string

// Roles.
const (
	// RoleViewer can read the LED table, run history and device list.
	RoleViewer Role = "viewer"

	// RoleOperator can additionally trigger syncs and pings.
	RoleOperator Role = "operator"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := rolePermissions[r]
	return ok
}

// Permission represents a named capability.
type Permission string

// Permission constants.
const (
	PermLEDRead     Permission = "leds:read"
	PermLEDWrite    Permission = "leds:write"
	PermRunsRead    Permission = "runs:read"
	PermDevicesRead Permission = "devices:read"
	PermPing        Permission = "devices:ping"
)

// rolePermissions is the single source of truth for the authorisation model.
var rolePermissions = map[Role][]Permission{
	RoleViewer: {
		PermLEDRead,
		PermRunsRead,
		PermDevicesRead,
	},
	RoleOperator: {
		PermLEDRead,
		PermLEDWrite,
		PermRunsRead,
		PermDevicesRead,
		PermPing,
	},
}

// HasPermission returns true if the given role has the specified permission.
func HasPermission(role Role, perm Permission) bool {
	return slices.Contains(rolePermissions[role], perm)
}

// PermissionsForRole returns a copy of the permissions granted to a role,
// or nil for unknown roles.
func PermissionsForRole(role Role) []Permission {
	return slices.Clone(rolePermissions[role])
}
