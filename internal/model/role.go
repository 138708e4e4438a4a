package model

import (
	"fmt"
	"strings"
)

// Role is the single authority tag carried by an account and its tokens.
type Role string

const (
	RoleAdmin        Role = "ADMIN"
	RoleProfessional Role = "PROFESSIONAL"
	RoleReceptionist Role = "RECEPTIONIST"
	RolePatient      Role = "PATIENT"
)

const authorityPrefix = "ROLE_"

// Authority returns the claim form of the role, e.g. ROLE_ADMIN.
func (r Role) Authority() string {
	return authorityPrefix + string(r)
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleProfessional, RoleReceptionist, RolePatient:
		return true
	default:
		return false
	}
}

// StaffRole reports whether the role belongs to a registered (non pre-registered) account.
func (r Role) StaffRole() bool {
	return r == RoleAdmin || r == RoleProfessional || r == RoleReceptionist
}

// ParseRole accepts either the bare tag or the authority form, case-insensitively.
func ParseRole(raw string) (Role, error) {
	value := strings.ToUpper(strings.TrimSpace(raw))
	value = strings.TrimPrefix(value, authorityPrefix)

	role := Role(value)
	if !role.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, raw)
	}

	return role, nil
}
