package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"go-clinic-api/internal/model"
)

// AccessService answers self-or-admin questions. It only reads the account
// stores and never mutates request state.
type AccessService struct {
	principals principalResolver
}

func NewAccessService(principals principalResolver) *AccessService {
	return &AccessService{principals: principals}
}

// CanAccessAccount grants admins, and otherwise compares the persisted id of
// the caller's account with the target account id.
func (s *AccessService) CanAccessAccount(ctx context.Context, identity *model.Identity, targetID string) (bool, error) {
	if identity == nil {
		return false, nil
	}
	if identity.IsAdmin() {
		return true, nil
	}

	caller, err := s.caller(ctx, identity)
	if err != nil || caller == nil {
		return false, err
	}

	return sameID(caller.ID, targetID), nil
}

// CanAccessPatient grants admins and the account linked to the patient record.
func (s *AccessService) CanAccessPatient(ctx context.Context, identity *model.Identity, patientID string) (bool, error) {
	if identity == nil {
		return false, nil
	}
	if identity.IsAdmin() {
		return true, nil
	}

	caller, err := s.caller(ctx, identity)
	if err != nil || caller == nil {
		return false, err
	}

	linked := caller.LinkedPatientID()
	return linked != "" && sameID(linked, patientID), nil
}

// CanViewPatient also admits staff, who work with every patient record.
func (s *AccessService) CanViewPatient(ctx context.Context, identity *model.Identity, patientID string) (bool, error) {
	if identity != nil && identity.Role.StaffRole() {
		return true, nil
	}
	return s.CanAccessPatient(ctx, identity, patientID)
}

// CanAccessSubject is the subject-string form of the self check.
func (s *AccessService) CanAccessSubject(identity *model.Identity, subject string) bool {
	if identity == nil {
		return false
	}
	if identity.IsAdmin() {
		return true
	}
	return identity.Subject == model.NormalizeEmail(subject)
}

func (s *AccessService) caller(ctx context.Context, identity *model.Identity) (*model.Account, error) {
	account, err := s.principals.ResolveBySubject(ctx, identity.Subject)
	if errors.Is(err, model.ErrAccountNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// sameID compares identifiers the way Postgres compares uuid columns, so
// case and formatting differences do not split one id into two.
func sameID(a string, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "" || b == "" {
		return false
	}
	left, errA := uuid.Parse(a)
	right, errB := uuid.Parse(b)
	if errA == nil && errB == nil {
		return left == right
	}
	return strings.EqualFold(a, b)
}
