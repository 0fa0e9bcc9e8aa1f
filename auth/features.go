package auth

import "slices"

// Role is a console role. Roles are ordered: superadmin > admin > user.
type Role string

const (
	RoleSuperadmin Role = "superadmin"
	RoleAdmin      Role = "admin"
	RoleUser       Role = "user"
)

func (r Role) rank() int {
	switch r {
	case RoleSuperadmin:
		return 3
	case RoleAdmin:
		return 2
	case RoleUser:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether r ranks at or above min. Unknown roles rank lowest.
func (r Role) AtLeast(min Role) bool {
	return r.rank() > 0 && r.rank() >= min.rank()
}

func (r Role) Valid() bool { return r.rank() > 0 }

// RolePermissions mirrors the backend's default role table. "*" grants all.
var RolePermissions = map[Role][]string{
	RoleSuperadmin: {"*"},
	RoleAdmin:      {"view", "run", "maintain", "launch_dashboard"},
	RoleUser:       {"view", "launch_dashboard"},
}

// HasPermission checks perm against RolePermissions.
func HasPermission(role Role, perm string) bool {
	perms := RolePermissions[role]
	return slices.Contains(perms, "*") || slices.Contains(perms, perm)
}

// runFeatures are the dashboard features that unlock script execution.
var runFeatures = []string{"recognize", "collect", "enum"}

// CanRun reports whether the feature list from /api/dashboard/features
// allows starting scripts.
func CanRun(features []string) bool {
	for _, f := range features {
		if slices.Contains(runFeatures, f) {
			return true
		}
	}
	return false
}

// CanSetPolicy reports whether role may change the execution policy level.
func CanSetPolicy(role Role) bool {
	return role.AtLeast(RoleAdmin)
}
