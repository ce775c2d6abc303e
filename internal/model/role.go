package model

import "strings"

// Role is a single access tag.
type Role uint8

const (
	RoleAdmin Role = 1 << iota
	RoleClinician
)

var roleNames = []struct {
	role Role
	name string
}{
	{RoleAdmin, "Admin"},
	{RoleClinician, "Clinician"},
}

func (r Role) String() string {
	for _, rn := range roleNames {
		if rn.role == r {
			return rn.name
		}
	}
	return ""
}

// RoleSet is a set of roles encoded as a bit mask. The zero value is the
// empty set.
type RoleSet uint8

// NewRoleSet builds a set from the given roles.
func NewRoleSet(roles ...Role) RoleSet {
	var s RoleSet
	for _, r := range roles {
		s |= RoleSet(r)
	}
	return s
}

// ParseRoles splits a comma separated role string ("Clinician, Admin")
// into a set. Unknown tags are ignored and matching is exact after trimming.
func ParseRoles(raw string) RoleSet {
	var s RoleSet
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		for _, rn := range roleNames {
			if rn.name == part {
				s |= RoleSet(rn.role)
			}
		}
	}
	return s
}

// Has reports whether r is in the set.
func (s RoleSet) Has(r Role) bool { return s&RoleSet(r) != 0 }

// Intersects reports whether the two sets share at least one role.
func (s RoleSet) Intersects(o RoleSet) bool { return s&o != 0 }

// IsAdmin is shorthand for Has(RoleAdmin).
func (s RoleSet) IsAdmin() bool { return s.Has(RoleAdmin) }

// Names lists the role tags in a stable order. It never returns nil so it
// serializes as an empty JSON array.
func (s RoleSet) Names() []string {
	names := make([]string, 0, len(roleNames))
	for _, rn := range roleNames {
		if s.Has(rn.role) {
			names = append(names, rn.name)
		}
	}
	return names
}

// String renders the set in the comma separated wire form.
func (s RoleSet) String() string { return strings.Join(s.Names(), ",") }
