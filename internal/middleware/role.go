package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/clinical-intake/internal/model"
)

// Decision is the outcome of an access check.
type Decision int

const (
	Allowed Decision = iota
	Unauthorized
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case Unauthorized:
		return "unauthorized"
	default:
		return "forbidden"
	}
}

// Guard decides whether p may use an endpoint open to allowed. A missing
// principal is Unauthorized; a principal holding none of the allowed roles
// is Forbidden. Holding any one of them is enough.
func Guard(p *model.Principal, allowed model.RoleSet) Decision {
	if p == nil {
		return Unauthorized
	}
	if !p.Roles.Intersects(allowed) {
		return Forbidden
	}
	return Allowed
}

// RequireRole rejects requests whose principal holds none of roles. It
// must run after JWTAuth.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	allowed := model.NewRoleSet(roles...)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := PrincipalFrom(c)
			switch Guard(p, allowed) {
			case Unauthorized:
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
			case Forbidden:
				return c.JSON(http.StatusForbidden, echo.Map{
					"error":     "insufficient permissions",
					"required":  allowed.Names(),
					"userRoles": p.Roles.Names(),
				})
			}
			return next(c)
		}
	}
}
