package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/clinical-intake/internal/model"
	"github.com/iliyamo/clinical-intake/internal/utils"
)

const secret = "test-secret"

func TestGuard(t *testing.T) {
	clinOnly := model.NewRoleSet(model.RoleClinician)
	both := model.NewRoleSet(model.RoleAdmin, model.RoleClinician)

	tests := []struct {
		name    string
		p       *model.Principal
		allowed model.RoleSet
		want    Decision
	}{
		{"no principal", nil, clinOnly, Unauthorized},
		{"no roles", &model.Principal{ID: 1}, clinOnly, Forbidden},
		{"admin on clinician route", &model.Principal{ID: 1, Roles: model.NewRoleSet(model.RoleAdmin)}, clinOnly, Forbidden},
		{"clinician", &model.Principal{ID: 1, Roles: clinOnly}, clinOnly, Allowed},
		{"both roles", &model.Principal{ID: 1, Roles: both}, clinOnly, Allowed},
		{"either allowed", &model.Principal{ID: 1, Roles: clinOnly}, both, Allowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Guard(tt.p, tt.allowed))
		})
	}
}

func newProtected(roles ...model.Role) *echo.Echo {
	e := echo.New()
	e.GET("/p", func(c echo.Context) error {
		return c.JSON(http.StatusOK, PrincipalFrom(c).Public())
	}, JWTAuth(secret), RequireRole(roles...))
	return e
}

func call(e *echo.Echo, auth string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	if auth != "" {
		req.Header.Set(echo.HeaderAuthorization, auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func token(t *testing.T, id int64, role string, ttl time.Duration) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, id, "user", role, ttl)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func TestJWTAuth_Rejections(t *testing.T) {
	e := newProtected(model.RoleClinician)

	rec, body := call(e, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "missing bearer token", body["error"])

	rec, body = call(e, "Basic abc")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "missing bearer token", body["error"])

	rec, body = call(e, "Bearer not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid token", body["error"])

	rec, body = call(e, token(t, 1, "Clinician", -time.Minute))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid token", body["error"])
}

func TestRequireRole_Forbidden(t *testing.T) {
	e := newProtected(model.RoleClinician)

	rec, body := call(e, token(t, 1, "Admin", time.Hour))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "insufficient permissions", body["error"])
	assert.Equal(t, []any{"Clinician"}, body["required"])
	assert.Equal(t, []any{"Admin"}, body["userRoles"])
	assert.NotContains(t, body, "user_roles")
}

func TestRequireRole_AllowsAnyMatchingRole(t *testing.T) {
	e := newProtected(model.RoleClinician)

	rec, body := call(e, token(t, 9, "Clinician, Admin", time.Hour))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(9), body["id"])
	assert.Equal(t, "Admin,Clinician", body["role"])
}

func TestRequireRole_WithoutJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/p", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, RequireRole(model.RoleAdmin))

	rec, body := call(e, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", body["error"])
}
