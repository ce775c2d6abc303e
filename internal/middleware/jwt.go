package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/clinical-intake/internal/model"
	"github.com/iliyamo/clinical-intake/internal/utils"
)

// JWTAuth validates the Bearer access token and stores the resulting
// principal in the context. Handlers behind it read the caller with
// PrincipalFrom.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			// Roles are parsed once here; downstream code only sees the set.
			SetPrincipal(c, model.Principal{
				ID:       claims.ID,
				Username: claims.Username,
				Roles:    model.ParseRoles(claims.Role),
			})
			return next(c)
		}
	}
}
