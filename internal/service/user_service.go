package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"go-clinic-api/internal/model"
	"go-clinic-api/pkg/apierror"
)

type userStore interface {
	accountFinder
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, account model.Account) error
	Update(ctx context.Context, account model.Account) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, limit int, offset int) ([]model.Account, error)
	Count(ctx context.Context) (int, error)
}

type preRegisteredStore interface {
	accountFinder
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, account model.Account) error
	Count(ctx context.Context) (int, error)
	LinkPatient(ctx context.Context, id string, patientID string) error
}

type patientLookup interface {
	FindByID(ctx context.Context, id string) (model.Patient, error)
}

type passwordHasher interface {
	HashPassword(password string) (string, error)
}

type UserService struct {
	users         userStore
	preRegistered preRegisteredStore
	patients      patientLookup
	hasher        passwordHasher
}

func NewUserService(users userStore, preRegistered preRegisteredStore, patients patientLookup, hasher passwordHasher) *UserService {
	return &UserService{users: users, preRegistered: preRegistered, patients: patients, hasher: hasher}
}

func (s *UserService) CreateUser(ctx context.Context, req model.CreateUserRequest) (model.AccountView, error) {
	name, email, err := validateIdentity(req.Name, req.Email)
	if err != nil {
		return model.AccountView{}, err
	}

	role, err := model.ParseRole(req.Role)
	if err != nil || !role.StaffRole() {
		return model.AccountView{}, apierror.Wrap(model.ErrInvalidInput, "BAD_REQUEST", "invalid role", req.Role, http.StatusBadRequest)
	}

	if err := s.ensureEmailAvailable(ctx, email, ""); err != nil {
		return model.AccountView{}, err
	}

	hash, err := s.hasher.HashPassword(req.Password)
	if err != nil {
		return model.AccountView{}, err
	}

	now := time.Now().UTC()
	account := model.Account{
		Kind:         model.AccountKindUser,
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, account); err != nil {
		return model.AccountView{}, err
	}

	return account.View(), nil
}

func (s *UserService) GetUser(ctx context.Context, id string) (model.AccountView, error) {
	account, err := s.users.FindByID(ctx, id)
	if err != nil {
		return model.AccountView{}, err
	}
	return account.View(), nil
}

func (s *UserService) ListUsers(ctx context.Context, page int, limit int) ([]model.AccountView, model.Meta, error) {
	page, limit = normalizePage(page, limit)

	total, err := s.users.Count(ctx)
	if err != nil {
		return nil, model.Meta{}, err
	}

	accounts, err := s.users.List(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, model.Meta{}, err
	}

	views := make([]model.AccountView, 0, len(accounts))
	for _, account := range accounts {
		views = append(views, account.View())
	}

	return views, model.NewMeta(page, limit, total), nil
}

// UpdateUser applies a partial update. Only an admin may change a role.
func (s *UserService) UpdateUser(ctx context.Context, id string, req model.UpdateUserRequest, actor *model.Identity) (model.AccountView, error) {
	account, err := s.users.FindByID(ctx, id)
	if err != nil {
		return model.AccountView{}, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return model.AccountView{}, apierror.Wrap(model.ErrInvalidInput, "BAD_REQUEST", "name cannot be empty", "name", http.StatusBadRequest)
		}
		account.Name = name
	}

	if req.Email != nil {
		_, email, err := validateIdentity(account.Name, *req.Email)
		if err != nil {
			return model.AccountView{}, err
		}
		if email != account.Email {
			if err := s.ensureEmailAvailable(ctx, email, account.ID); err != nil {
				return model.AccountView{}, err
			}
		}
		account.Email = email
	}

	if req.Role != nil {
		if !actor.IsAdmin() {
			return model.AccountView{}, apierror.Wrap(model.ErrForbidden, "FORBIDDEN", "only administrators can change roles", "role", http.StatusForbidden)
		}
		role, err := model.ParseRole(*req.Role)
		if err != nil || !role.StaffRole() {
			return model.AccountView{}, apierror.Wrap(model.ErrInvalidInput, "BAD_REQUEST", "invalid role", *req.Role, http.StatusBadRequest)
		}
		account.Role = role
	}

	account.UpdatedAt = time.Now().UTC()
	if err := s.users.Update(ctx, account); err != nil {
		return model.AccountView{}, err
	}

	return account.View(), nil
}

// DeleteUser removes a registered account. Tokens already issued to it stay
// valid until they expire, but they no longer resolve to a principal.
func (s *UserService) DeleteUser(ctx context.Context, id string, actorID string) error {
	if sameID(id, actorID) {
		return apierror.Wrap(model.ErrConflict, "CONFLICT", "cannot delete your own account", id, http.StatusConflict)
	}
	return s.users.Delete(ctx, id)
}

func (s *UserService) PreRegister(ctx context.Context, req model.PreRegisterRequest) (model.AccountView, error) {
	name, email, err := validateIdentity(req.Name, req.Email)
	if err != nil {
		return model.AccountView{}, err
	}

	if err := s.ensureEmailAvailable(ctx, email, ""); err != nil {
		return model.AccountView{}, err
	}

	hash, err := s.hasher.HashPassword(req.Password)
	if err != nil {
		return model.AccountView{}, err
	}

	now := time.Now().UTC()
	account := model.Account{
		Kind:         model.AccountKindPreRegistered,
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         model.RolePatient,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.preRegistered.Create(ctx, account); err != nil {
		return model.AccountView{}, err
	}

	return account.View(), nil
}

// LinkPatient ties a pre-registered account to an existing patient record.
// Only staff reach it; each patient record has at most one linked account.
func (s *UserService) LinkPatient(ctx context.Context, accountID string, req model.LinkPatientRequest) (model.AccountView, error) {
	patientID := strings.TrimSpace(req.PatientID)
	if patientID == "" {
		return model.AccountView{}, apierror.Wrap(model.ErrInvalidInput, "BAD_REQUEST", "patient_id is required", "patient_id", http.StatusBadRequest)
	}

	patient, err := s.patients.FindByID(ctx, patientID)
	if err != nil {
		return model.AccountView{}, err
	}

	err = s.preRegistered.LinkPatient(ctx, accountID, patient.ID)
	if errors.Is(err, model.ErrPatientAlreadyLinked) {
		return model.AccountView{}, apierror.Wrap(model.ErrConflict, "CONFLICT", "patient is already linked to another account", patient.ID, http.StatusConflict)
	}
	if err != nil {
		return model.AccountView{}, err
	}

	return s.GetPreRegistered(ctx, accountID)
}

func (s *UserService) GetPreRegistered(ctx context.Context, id string) (model.AccountView, error) {
	account, err := s.preRegistered.FindByID(ctx, id)
	if err != nil {
		return model.AccountView{}, err
	}
	return account.View(), nil
}

// EnsureAdmin creates the bootstrap administrator when no account uses the
// configured email yet.
func (s *UserService) EnsureAdmin(ctx context.Context, email string, password string) (bool, error) {
	email = model.NormalizeEmail(email)
	if email == "" || password == "" {
		return false, nil
	}

	_, err := s.CreateUser(ctx, model.CreateUserRequest{
		Name:     "Administrator",
		Email:    email,
		Password: password,
		Role:     string(model.RoleAdmin),
	})
	if errors.Is(err, model.ErrAccountAlreadyExists) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("bootstrap admin: %w", err)
	}

	slog.Info("bootstrap administrator created", "email", email)
	return true, nil
}

// ensureEmailAvailable keeps emails unique across both account stores.
func (s *UserService) ensureEmailAvailable(ctx context.Context, email string, ownerID string) error {
	existing, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil && existing.ID != ownerID:
		return apierror.Wrap(model.ErrAccountAlreadyExists, "ALREADY_EXISTS", "email already in use", email, http.StatusConflict)
	case err != nil && !errors.Is(err, model.ErrAccountNotFound):
		return err
	}

	taken, err := s.preRegistered.ExistsByEmail(ctx, email)
	if err != nil {
		return err
	}
	if taken {
		return apierror.Wrap(model.ErrAccountAlreadyExists, "ALREADY_EXISTS", "email already in use", email, http.StatusConflict)
	}

	return nil
}

func validateIdentity(name string, email string) (string, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", apierror.Wrap(model.ErrInvalidInput, "BAD_REQUEST", "name is required", "name", http.StatusBadRequest)
	}

	email = model.NormalizeEmail(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", "", apierror.Wrap(model.ErrInvalidInput, "BAD_REQUEST", "invalid email", "email", http.StatusBadRequest)
	}

	return name, email, nil
}

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
	// maxPage keeps (page-1)*limit far below any integer overflow.
	maxPage = 1_000_000
)

func normalizePage(page int, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}
