package model

import "time"

// User represents an application user record as stored in the
// `users` table. Users are provisioned out of band and are read-only
// inside this service.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Username     – unique login name.
//	PasswordHash – bcrypt hash of the password.
//	Role         – comma separated role tags (e.g. "Admin,Clinician").
//	CreatedAt    – timestamp of creation.
type User struct {
	ID           int64     // users.id
	Username     string    // users.username
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	CreatedAt    time.Time // users.created_at
}

// Roles parses the stored role column into a RoleSet.
func (u User) Roles() RoleSet { return ParseRoles(u.Role) }

// Principal is the authenticated identity rebuilt from a verified access
// token on every request. It is never persisted.
type Principal struct {
	ID       int64
	Username string
	Roles    RoleSet
}

// PrincipalOf derives the principal for a user record.
func PrincipalOf(u User) Principal {
	return Principal{ID: u.ID, Username: u.Username, Roles: u.Roles()}
}

// PublicUser is the user shape returned to clients.
type PublicUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Public returns the client-facing fields of the principal.
func (p Principal) Public() PublicUser {
	return PublicUser{ID: p.ID, Username: p.Username, Role: p.Roles.String()}
}
