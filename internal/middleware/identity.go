package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/clinical-intake/internal/model"
)

// principalKey is the echo context key JWTAuth stores the caller under.
const principalKey = "principal"

// SetPrincipal attaches p to the request context.
func SetPrincipal(c echo.Context, p model.Principal) { c.Set(principalKey, p) }

// PrincipalFrom returns the authenticated caller, or nil when the request
// did not pass JWTAuth.
func PrincipalFrom(c echo.Context) *model.Principal {
	if p, ok := c.Get(principalKey).(model.Principal); ok {
		return &p
	}
	return nil
}

// RolesOf returns the caller's roles, empty for anonymous requests.
func RolesOf(c echo.Context) model.RoleSet {
	if p := PrincipalFrom(c); p != nil {
		return p.Roles
	}
	return 0
}
