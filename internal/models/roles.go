package models

// Roles as reported by the backend's /api/me endpoint.
const (
	RoleEmployee = "employee"
	RoleManager  = "manager"
	RoleAdmin    = "admin"
)

// CanManageTeam reports whether the role sees the team panel. The check is
// presentational only; the backend authorizes every team call itself.
func CanManageTeam(role string) bool {
	return role == RoleManager || role == RoleAdmin
}
