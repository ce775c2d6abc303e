package redact

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/clinical-intake/internal/model"
)

// Serializer is an echo.JSONSerializer that redacts every response body
// before encoding it. Deserialize is inherited from echo's default.
type Serializer struct {
	echo.DefaultJSONSerializer
	roles func(echo.Context) model.RoleSet
}

// NewSerializer builds a Serializer that asks roles for the caller's role
// set. Requests without a principal should yield the empty set.
func NewSerializer(roles func(echo.Context) model.RoleSet) *Serializer {
	return &Serializer{roles: roles}
}

func (s *Serializer) Serialize(c echo.Context, i interface{}, indent string) error {
	var roles model.RoleSet
	if s.roles != nil {
		roles = s.roles(c)
	}
	return s.DefaultJSONSerializer.Serialize(c, Apply(roles, i), indent)
}
