package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"go-clinic-api/internal/model"
	"go-clinic-api/internal/security"
	"go-clinic-api/internal/testutil"
	"go-clinic-api/pkg/apierror"
)

type authFixture struct {
	users  *testutil.AccountStore
	pre    *testutil.AccountStore
	codec  *security.TokenCodec
	svc    *AuthService
	admin  model.Account
	linked model.Account
}

func newAuthFixture(t *testing.T) authFixture {
	t.Helper()

	users := testutil.NewAccountStore(model.AccountKindUser)
	pre := testutil.NewAccountStore(model.AccountKindPreRegistered)

	patientID := uuid.NewString()
	admin := model.Account{ID: uuid.NewString(), Name: "Admin", Email: "admin@example.com", PasswordHash: testutil.HashPassword(t, "admin12345"), Role: model.RoleAdmin}
	linked := model.Account{ID: uuid.NewString(), Name: "Pat", Email: "pat@example.com", PasswordHash: testutil.HashPassword(t, "patient123"), Role: model.RolePatient, PatientID: &patientID}
	users.Put(admin)
	pre.Put(linked)

	codec, err := security.NewTokenCodec(testutil.KeyPair(t))
	require.NoError(t, err)

	svc, err := NewAuthService(NewPrincipalService(users, pre), codec, users, pre, time.Hour, 4)
	require.NoError(t, err)

	admin.Kind = model.AccountKindUser
	linked.Kind = model.AccountKindPreRegistered
	return authFixture{users: users, pre: pre, codec: codec, svc: svc, admin: admin, linked: linked}
}

func TestNewAuthServiceRejectsNonPositiveTTL(t *testing.T) {
	t.Parallel()

	_, err := NewAuthService(nil, nil, nil, nil, 0, 4)
	require.Error(t, err)
}

func TestAuthServiceVerify(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t)
	ctx := context.Background()

	account, err := f.svc.Verify(ctx, "ADMIN@example.com", "admin12345")
	require.NoError(t, err)
	require.Equal(t, f.admin.ID, account.ID)

	_, wrongPassword := f.svc.Verify(ctx, "admin@example.com", "nope-nope")
	_, unknownEmail := f.svc.Verify(ctx, "nobody@example.com", "admin12345")

	require.ErrorIs(t, wrongPassword, model.ErrInvalidCredentials)
	require.ErrorIs(t, unknownEmail, model.ErrInvalidCredentials)
	require.Equal(t, wrongPassword.Error(), unknownEmail.Error())

	var apiErr *apierror.APIError
	require.True(t, errors.As(unknownEmail, &apiErr))
	require.Equal(t, http.StatusUnauthorized, apiErr.HTTPStatus)
}

func TestAuthServiceVerifyPropagatesStoreFailures(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t)
	f.users.Err = errors.New("connection reset")

	_, err := f.svc.Verify(context.Background(), "admin@example.com", "admin12345")
	require.Error(t, err)
	require.NotErrorIs(t, err, model.ErrInvalidCredentials)
}

func TestAuthServiceLogin(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t)
	ctx := context.Background()

	t.Run("issues a token carrying the account role", func(t *testing.T) {
		resp, err := f.svc.Login(ctx, "admin@example.com", "admin12345")
		require.NoError(t, err)
		require.Equal(t, "Bearer", resp.TokenType)
		require.Equal(t, int64(3600), resp.ExpiresIn)
		require.Equal(t, model.RoleAdmin, resp.Account.Role)

		claims, err := f.codec.ParseClaims(resp.Token)
		require.NoError(t, err)
		require.Equal(t, "ROLE_ADMIN", claims.Role)
		require.Equal(t, f.admin.ID, claims.AccountID)
		require.True(t, f.codec.Validate(resp.Token, "admin@example.com", model.RoleAdmin))
		require.False(t, f.codec.Validate(resp.Token, "admin@example.com", model.RoleProfessional))
	})

	t.Run("pre-registered accounts carry their patient link", func(t *testing.T) {
		resp, err := f.svc.Login(ctx, "pat@example.com", "patient123")
		require.NoError(t, err)

		claims, err := f.codec.ParseClaims(resp.Token)
		require.NoError(t, err)
		patientID, err := claims.RequirePatientID()
		require.NoError(t, err)
		require.Equal(t, *f.linked.PatientID, patientID)
		require.Equal(t, string(model.AccountKindPreRegistered), claims.Kind)
	})

	t.Run("empty input is rejected like bad credentials", func(t *testing.T) {
		_, err := f.svc.Login(ctx, "", "admin12345")
		require.ErrorIs(t, err, model.ErrInvalidCredentials)

		_, err = f.svc.Login(ctx, "admin@example.com", "")
		require.ErrorIs(t, err, model.ErrInvalidCredentials)
	})
}

func TestAuthServiceResetPassword(t *testing.T) {
	t.Parallel()

	f := newAuthFixture(t)
	ctx := context.Background()

	t.Run("writes to the store that owns the account", func(t *testing.T) {
		require.NoError(t, f.svc.ResetPassword(ctx, f.linked.ID, "brand-new-pass"))

		_, err := f.svc.Verify(ctx, "pat@example.com", "brand-new-pass")
		require.NoError(t, err)

		_, err = f.svc.Verify(ctx, "pat@example.com", "patient123")
		require.ErrorIs(t, err, model.ErrInvalidCredentials)
	})

	t.Run("rejects short passwords before touching the store", func(t *testing.T) {
		err := f.svc.ResetPassword(ctx, f.admin.ID, "short")
		require.ErrorIs(t, err, model.ErrWeakPassword)

		_, err = f.svc.Verify(ctx, "admin@example.com", "admin12345")
		require.NoError(t, err)
	})

	t.Run("unknown accounts are not found", func(t *testing.T) {
		err := f.svc.ResetPassword(ctx, uuid.NewString(), "long-enough-pass")
		require.ErrorIs(t, err, model.ErrAccountNotFound)
	})
}
