package model

import (
	"strings"
	"time"
)

type AccountKind string

const (
	AccountKindUser          AccountKind = "user"
	AccountKindPreRegistered AccountKind = "pre_registered"
)

// Account is either a registered user or a pre-registered user. Both live in
// disjoint stores and share the same authentication surface.
type Account struct {
	Kind         AccountKind
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	PatientID    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (a Account) Subject() string {
	return a.Email
}

func (a Account) Credential() string {
	return a.PasswordHash
}

func (a Account) IsPreRegistered() bool {
	return a.Kind == AccountKindPreRegistered
}

func (a Account) LinkedPatientID() string {
	if a.PatientID == nil {
		return ""
	}
	return *a.PatientID
}

func (a Account) View() AccountView {
	return AccountView{
		ID:        a.ID,
		Kind:      a.Kind,
		Name:      a.Name,
		Email:     a.Email,
		Role:      a.Role,
		PatientID: a.PatientID,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

type AccountView struct {
	ID        string      `json:"id"`
	Kind      AccountKind `json:"kind"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      Role        `json:"role"`
	PatientID *string     `json:"patient_id,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type AccountList struct {
	Accounts []AccountView `json:"accounts"`
}

// Identity is the request-scoped result of a successfully validated token.
type Identity struct {
	AccountID string
	Kind      AccountKind
	Subject   string
	Name      string
	Role      Role
	PatientID string
}

func NewIdentity(account Account) *Identity {
	return &Identity{
		AccountID: account.ID,
		Kind:      account.Kind,
		Subject:   account.Email,
		Name:      account.Name,
		Role:      account.Role,
		PatientID: account.LinkedPatientID(),
	}
}

func (i *Identity) HasRole(role Role) bool {
	return i != nil && i.Role == role
}

func (i *Identity) IsAdmin() bool {
	return i.HasRole(RoleAdmin)
}

// NormalizeEmail is the canonical form used for lookups and uniqueness.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
