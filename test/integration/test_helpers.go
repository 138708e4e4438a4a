//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go-clinic-api/internal/config"
	"go-clinic-api/internal/database"
	"go-clinic-api/internal/handler"
	"go-clinic-api/internal/middleware"
	"go-clinic-api/internal/repository"
	"go-clinic-api/internal/router"
	"go-clinic-api/internal/security"
	"go-clinic-api/internal/service"
	"go-clinic-api/internal/testutil"
)

const (
	adminEmail    = "admin@example.com"
	adminPassword = "admin12345"
)

type stack struct {
	server   *httptest.Server
	db       *database.DB
	codec    *security.TokenCodec
	users    *repository.UserRepository
	pre      *repository.PreRegisteredRepository
	patients *repository.PatientRepository
	audit    *repository.AuditRepository
}

// newDB connects to TEST_DATABASE_URL and empties every table.
func newDB(t *testing.T) *database.DB {
	t.Helper()

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := database.New(ctx, url, 4, 1)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.EnsureSchema(ctx))
	_, err = db.Pool.Exec(ctx, `TRUNCATE users, pre_registered_users, patients, audit_events RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	return db
}

func newStack(t *testing.T) *stack {
	t.Helper()

	db := newDB(t)
	keys := testutil.KeyPair(t)
	codec, err := security.NewTokenCodec(keys)
	require.NoError(t, err)

	users := repository.NewUserRepository(db.Pool)
	pre := repository.NewPreRegisteredRepository(db.Pool)
	patients := repository.NewPatientRepository(db.Pool)
	auditRepo := repository.NewAuditRepository(db.Pool)

	principals := service.NewPrincipalService(users, pre)
	authService, err := service.NewAuthService(principals, codec, users, pre, 15*time.Minute, 4)
	require.NoError(t, err)
	access := service.NewAccessService(principals)
	userService := service.NewUserService(users, pre, patients, authService)
	auditService := service.NewAuditService(auditRepo)

	_, err = userService.EnsureAdmin(context.Background(), adminEmail, adminPassword)
	require.NoError(t, err)

	cfg := &config.Config{
		RequestTimeout:   10 * time.Second,
		CORSOrigins:      []string{"*"},
		RateLimitRPM:     1000,
		AuthRateLimitRPM: 1000,
	}

	metrics := middleware.NewMetrics()
	server := httptest.NewServer(router.New(cfg,
		middleware.NewAuthMiddleware(codec, principals, metrics),
		metrics,
		router.Access{Account: access.CanAccessAccount, Patient: access.CanViewPatient},
		router.Handlers{
			Auth:            handler.NewAuthHandler(authService, keys, auditService),
			User:            handler.NewUserHandler(userService, authService, auditService),
			PreRegistration: handler.NewPreRegistrationHandler(userService, auditService),
			Patient:         handler.NewPatientHandler(service.NewPatientService(patients), auditService),
			Dashboard:       handler.NewDashboardHandler(service.NewDashboardService(users, pre, patients)),
			Audit:           handler.NewAuditHandler(auditService),
		},
		db.Health,
	))
	t.Cleanup(server.Close)

	return &stack{server: server, db: db, codec: codec, users: users, pre: pre, patients: patients, audit: auditRepo}
}

func (s *stack) login(t *testing.T, email string, password string) string {
	t.Helper()

	resp := s.doJSON(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"email": email, "password": password})
	t.Cleanup(func() { _ = resp.Body.Close() })
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var parsed struct {
		Success bool `json:"success"`
		Data    struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	require.True(t, parsed.Success)
	require.NotEmpty(t, parsed.Data.Token)

	return parsed.Data.Token
}

func (s *stack) doJSON(t *testing.T, method string, path string, token string, body any) *http.Response {
	t.Helper()

	payload := []byte{}
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req, err := http.NewRequest(method, s.server.URL+path, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeError(t *testing.T, resp *http.Response) string {
	t.Helper()

	var parsed struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	return parsed.Error.Code
}
