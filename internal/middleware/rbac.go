package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-discipline-api/internal/models"
	appErrors "github.com/noah-isme/sma-discipline-api/pkg/errors"
	"github.com/noah-isme/sma-discipline-api/pkg/response"
)

// RBAC enforces role-based access control for routes.
// SUPERADMIN passes every check.
func RBAC(allowed ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !HasRole(claims.Role, allowed...) {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// Role groups used by the router.
var (
	StaffRoles      = []models.UserRole{models.RoleAdmin, models.RoleCounselor, models.RoleTeacher}
	DisciplineRoles = []models.UserRole{models.RoleAdmin, models.RoleCounselor}
	AdminRoles      = []models.UserRole{models.RoleAdmin}
)

// HasRole reports whether role is one of allowed. SUPERADMIN always matches.
func HasRole(role models.UserRole, allowed ...models.UserRole) bool {
	if role == models.RoleSuperAdmin {
		return true
	}
	for _, candidate := range allowed {
		if candidate == role {
			return true
		}
	}
	return false
}
