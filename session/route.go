// ABOUTME: Role to surface routing used after sign-in
// ABOUTME: Unknown roles land on the login screen

package session

import "github.com/Rin111124/Fastfood-WEB-frontend-sub001/models"

// Surfaces the UI can land on
const (
	SurfaceCustomer = "/customer"
	SurfaceStaff    = "/staff"
	SurfaceAdmin    = "/admin"
	SurfaceLogin    = "/login"
)

// RouteForRole maps a role to its landing surface
func RouteForRole(role models.Role) string {
	switch role {
	case models.RoleCustomer:
		return SurfaceCustomer
	case models.RoleStaff, models.RoleShipper:
		return SurfaceStaff
	case models.RoleAdmin:
		return SurfaceAdmin
	default:
		return SurfaceLogin
	}
}
