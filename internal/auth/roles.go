package auth

// Role represents a user role.
type Role string

const (
	RoleCitizen Role = "citizen"
	RolePolice  Role = "police"
	RoleAdmin   Role = "admin"
)

// entryRoutes maps each role to the client entry route it lands on after login.
var entryRoutes = map[Role]string{
	RoleCitizen: "/home",
	RolePolice:  "/dashboard",
	RoleAdmin:   "/dashboard",
}

// EntryRoute resolves the client entry route for a role.
func EntryRoute(role Role) (string, bool) {
	route, ok := entryRoutes[role]
	return route, ok
}

// NormalizeRole validates and normalizes a role string.
func NormalizeRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleCitizen, RolePolice, RoleAdmin:
		return Role(value), true
	default:
		return "", false
	}
}

// RoleAtLeast returns true when role satisfies required role.
func RoleAtLeast(role Role, required Role) bool {
	return roleRank(role) >= roleRank(required)
}

func roleRank(role Role) int {
	switch role {
	case RoleCitizen:
		return 1
	case RolePolice:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 0
	}
}
