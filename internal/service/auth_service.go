package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go-clinic-api/internal/model"
	"go-clinic-api/internal/security"
	"go-clinic-api/pkg/apierror"
)

type principalResolver interface {
	ResolveBySubject(ctx context.Context, email string) (model.Account, error)
	ResolveByID(ctx context.Context, id string) (model.Account, error)
}

type tokenIssuer interface {
	Issue(subject string, role model.Role, extra security.ExtraClaims, ttl time.Duration) (string, error)
}

type credentialWriter interface {
	UpdatePassword(ctx context.Context, id string, passwordHash string) error
}

type AuthService struct {
	principals    principalResolver
	tokens        tokenIssuer
	users         credentialWriter
	preRegistered credentialWriter
	tokenTTL      time.Duration
	bcryptCost    int
	dummyHash     string
}

func NewAuthService(
	principals principalResolver,
	tokens tokenIssuer,
	users credentialWriter,
	preRegistered credentialWriter,
	tokenTTL time.Duration,
	bcryptCost int,
) (*AuthService, error) {
	if tokenTTL <= 0 {
		return nil, errors.New("token ttl must be positive")
	}

	// Compared against on unknown emails so both failure paths pay for a hash.
	dummyHash, err := security.HashPassword("no-such-account-placeholder", bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("prepare credential verifier: %w", err)
	}

	return &AuthService{
		principals:    principals,
		tokens:        tokens,
		users:         users,
		preRegistered: preRegistered,
		tokenTTL:      tokenTTL,
		bcryptCost:    bcryptCost,
		dummyHash:     dummyHash,
	}, nil
}

func invalidCredentials() error {
	return apierror.Wrap(model.ErrInvalidCredentials, "UNAUTHORIZED", "invalid credentials", "", http.StatusUnauthorized)
}

// Verify never reveals whether the email exists: a miss and a wrong password
// produce the same error.
func (s *AuthService) Verify(ctx context.Context, email string, password string) (model.Account, error) {
	account, err := s.principals.ResolveBySubject(ctx, email)
	if err != nil {
		if errors.Is(err, model.ErrAccountNotFound) {
			_ = security.VerifyPassword(s.dummyHash, password)
			return model.Account{}, invalidCredentials()
		}
		return model.Account{}, err
	}

	if err := security.VerifyPassword(account.Credential(), password); err != nil {
		return model.Account{}, invalidCredentials()
	}

	return account, nil
}

func (s *AuthService) Login(ctx context.Context, email string, password string) (model.LoginResponse, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return model.LoginResponse{}, invalidCredentials()
	}

	account, err := s.Verify(ctx, email, password)
	if err != nil {
		return model.LoginResponse{}, err
	}

	token, err := s.IssueToken(account)
	if err != nil {
		return model.LoginResponse{}, err
	}

	return model.LoginResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int64(s.tokenTTL.Seconds()),
		Account:   account.View(),
	}, nil
}

func (s *AuthService) IssueToken(account model.Account) (string, error) {
	return s.tokens.Issue(account.Subject(), account.Role, security.ExtraClaims{
		Name:      account.Name,
		AccountID: account.ID,
		Kind:      account.Kind,
		PatientID: account.LinkedPatientID(),
	}, s.tokenTTL)
}

// CurrentAccount reloads the caller's account so the view reflects the store,
// not the claims the token was issued with.
func (s *AuthService) CurrentAccount(ctx context.Context, identity *model.Identity) (model.AccountView, error) {
	if identity == nil {
		return model.AccountView{}, model.ErrUnauthorized
	}

	account, err := s.principals.ResolveByID(ctx, identity.AccountID)
	if err != nil {
		return model.AccountView{}, err
	}

	return account.View(), nil
}

// ResetPassword replaces the stored credential. The old password is not
// required; callers are authorized as self or admin before reaching here.
func (s *AuthService) ResetPassword(ctx context.Context, accountID string, newPassword string) error {
	hash, err := s.HashPassword(newPassword)
	if err != nil {
		return err
	}

	account, err := s.principals.ResolveByID(ctx, accountID)
	if err != nil {
		return err
	}

	writer := s.users
	if account.IsPreRegistered() {
		writer = s.preRegistered
	}

	return writer.UpdatePassword(ctx, account.ID, hash)
}

func (s *AuthService) HashPassword(password string) (string, error) {
	if len(password) < security.MinPasswordLength {
		return "", apierror.Wrap(model.ErrWeakPassword, "BAD_REQUEST",
			fmt.Sprintf("password must be at least %d characters", security.MinPasswordLength), "password", http.StatusBadRequest)
	}

	if len(password) > security.MaxPasswordLength {
		return "", apierror.Wrap(model.ErrInvalidInput, "BAD_REQUEST",
			fmt.Sprintf("password must be at most %d bytes", security.MaxPasswordLength), "password", http.StatusBadRequest)
	}

	return security.HashPassword(password, s.bcryptCost)
}
