// Package service holds the business rules of the intake API. Services
// take an already authenticated principal, enforce row scoping, talk to
// the repositories and emit audit entries.
package service

import (
	"errors"

	"github.com/iliyamo/clinical-intake/internal/model"
)

// Errors returned to handlers. Handlers map them to HTTP status codes.
var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidSSN         = errors.New("invalid ssn")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotFound           = errors.New("not found")
	ErrDuplicateSSN       = errors.New("duplicate ssn")
	ErrNotClinician       = errors.New("user is not a clinician")
)

// Auditor receives security-relevant actions. *audit.Recorder implements it.
type Auditor interface {
	Record(actor model.Principal, action string, payload map[string]any)
}
