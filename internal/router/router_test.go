package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"go-clinic-api/internal/config"
	"go-clinic-api/internal/handler"
	"go-clinic-api/internal/middleware"
	"go-clinic-api/internal/model"
	"go-clinic-api/internal/security"
	"go-clinic-api/internal/service"
	"go-clinic-api/internal/testutil"
)

type testServer struct {
	*httptest.Server
	codec    *security.TokenCodec
	auth     *service.AuthService
	users    *testutil.AccountStore
	pre      *testutil.AccountStore
	patients *testutil.PatientStore
	audit    *testutil.AuditStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	keys := testutil.KeyPair(t)
	codec, err := security.NewTokenCodec(keys, security.WithIssuer("clinic-test"))
	require.NoError(t, err)

	users := testutil.NewAccountStore(model.AccountKindUser)
	pre := testutil.NewAccountStore(model.AccountKindPreRegistered)
	patients := testutil.NewPatientStore()
	auditStore := testutil.NewAuditStore()

	principals := service.NewPrincipalService(users, pre)
	authService, err := service.NewAuthService(principals, codec, users, pre, time.Hour, 4)
	require.NoError(t, err)
	access := service.NewAccessService(principals)
	userService := service.NewUserService(users, pre, patients, authService)
	auditService := service.NewAuditService(auditStore)

	created, err := userService.EnsureAdmin(context.Background(), "admin@example.com", "admin12345")
	require.NoError(t, err)
	require.True(t, created)

	cfg := &config.Config{
		RequestTimeout:   5 * time.Second,
		CORSOrigins:      []string{"*"},
		RateLimitRPM:     1000,
		AuthRateLimitRPM: 1000,
	}

	metrics := middleware.NewMetrics()
	handlerSet := Handlers{
		Auth:            handler.NewAuthHandler(authService, keys, auditService),
		User:            handler.NewUserHandler(userService, authService, auditService),
		PreRegistration: handler.NewPreRegistrationHandler(userService, auditService),
		Patient:         handler.NewPatientHandler(service.NewPatientService(patients), auditService),
		Dashboard:       handler.NewDashboardHandler(service.NewDashboardService(users, pre, patients)),
		Audit:           handler.NewAuditHandler(auditService),
	}

	srv := httptest.NewServer(New(cfg,
		middleware.NewAuthMiddleware(codec, principals, metrics),
		metrics,
		Access{Account: access.CanAccessAccount, Patient: access.CanViewPatient},
		handlerSet,
		nil,
	))
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, codec: codec, auth: authService, users: users, pre: pre, patients: patients, audit: auditStore}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *model.APIError `json:"error"`
	Meta    *model.Meta     `json:"meta"`
}

func (s *testServer) do(t *testing.T, method string, path string, token string, body any) (int, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	}

	return resp.StatusCode, env
}

func (s *testServer) login(t *testing.T, email string, password string) model.LoginResponse {
	t.Helper()

	status, env := s.do(t, http.MethodPost, "/api/v1/auth/login", "", model.LoginRequest{Email: email, Password: password})
	require.Equal(t, http.StatusOK, status)
	require.True(t, env.Success)

	var resp model.LoginResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	return resp
}

func TestAdminLoginFlow(t *testing.T) {
	s := newTestServer(t)

	resp := s.login(t, "admin@example.com", "admin12345")
	require.Equal(t, "Bearer", resp.TokenType)

	claims := jwt.MapClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(resp.Token, claims)
	require.NoError(t, err)
	require.Equal(t, "ROLE_ADMIN", claims["role"])
	require.Equal(t, "admin@example.com", claims["sub"])

	status, env := s.do(t, http.MethodGet, "/api/v1/dashboard", resp.Token, nil)
	require.Equal(t, http.StatusOK, status)
	var counts model.DashboardCounts
	require.NoError(t, json.Unmarshal(env.Data, &counts))
	require.Equal(t, 1, counts.Users)

	admin, err := s.users.FindByEmail(context.Background(), "admin@example.com")
	require.NoError(t, err)
	expired, err := s.codec.Issue(admin.Email, admin.Role, security.ExtraClaims{AccountID: admin.ID, Kind: admin.Kind}, -time.Second)
	require.NoError(t, err)

	status, env = s.do(t, http.MethodGet, "/api/v1/dashboard", expired, nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "TOKEN_EXPIRED", env.Error.Code)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	s := newTestServer(t)

	wrongStatus, wrongPassword := s.do(t, http.MethodPost, "/api/v1/auth/login", "", model.LoginRequest{Email: "admin@example.com", Password: "wrong-password"})
	unknownStatus, unknownEmail := s.do(t, http.MethodPost, "/api/v1/auth/login", "", model.LoginRequest{Email: "nobody@example.com", Password: "admin12345"})

	require.Equal(t, http.StatusUnauthorized, wrongStatus)
	require.Equal(t, wrongStatus, unknownStatus)
	require.Equal(t, wrongPassword.Error, unknownEmail.Error)

	entries := s.audit.Entries()
	require.Len(t, entries, 2)
	for _, entry := range entries {
		require.Equal(t, model.AuditActionLogin, entry.Action)
		require.Equal(t, model.AuditStatusFailure, entry.Status)
	}
}

func TestMalformedAndMissingTokensAreUnauthenticated(t *testing.T) {
	s := newTestServer(t)

	status, env := s.do(t, http.MethodGet, "/api/v1/auth/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "UNAUTHORIZED", env.Error.Code)

	status, env = s.do(t, http.MethodGet, "/api/v1/auth/me", "definitely.not.valid", nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "UNAUTHORIZED", env.Error.Code)

	token := s.login(t, "admin@example.com", "admin12345").Token
	parts := strings.Split(token, ".")
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	status, env = s.do(t, http.MethodGet, "/api/v1/auth/me", tampered, nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "UNAUTHORIZED", env.Error.Code)

	// Public routes still answer with a stale token attached.
	status, _ = s.do(t, http.MethodPost, "/api/v1/pre-registrations", tampered, model.PreRegisterRequest{Name: "Pat", Email: "pat@example.com", Password: "patient123"})
	require.Equal(t, http.StatusCreated, status)
}

func TestForbiddenIsDistinctFromUnauthenticated(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.login(t, "admin@example.com", "admin12345").Token

	status, _ := s.do(t, http.MethodPost, "/api/v1/users", adminToken, model.CreateUserRequest{
		Name: "Doc", Email: "doc@example.com", Password: "doctor123", Role: "PROFESSIONAL",
	})
	require.Equal(t, http.StatusCreated, status)

	docToken := s.login(t, "doc@example.com", "doctor123").Token

	status, env := s.do(t, http.MethodGet, "/api/v1/dashboard", docToken, nil)
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "FORBIDDEN", env.Error.Code)

	status, env = s.do(t, http.MethodGet, "/api/v1/dashboard", "", nil)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, "UNAUTHORIZED", env.Error.Code)
}

func TestSelfOrAdminOnUsers(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.login(t, "admin@example.com", "admin12345").Token

	create := func(name string, email string) model.AccountView {
		status, env := s.do(t, http.MethodPost, "/api/v1/users", adminToken, model.CreateUserRequest{
			Name: name, Email: email, Password: "password1", Role: "RECEPTIONIST",
		})
		require.Equal(t, http.StatusCreated, status)
		var view model.AccountView
		require.NoError(t, json.Unmarshal(env.Data, &view))
		return view
	}

	alice := create("Alice", "alice@example.com")
	bob := create("Bob", "bob@example.com")
	aliceToken := s.login(t, "alice@example.com", "password1").Token

	status, _ := s.do(t, http.MethodGet, "/api/v1/users/"+alice.ID, aliceToken, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = s.do(t, http.MethodGet, "/api/v1/users/"+bob.ID, aliceToken, nil)
	require.Equal(t, http.StatusForbidden, status)

	status, _ = s.do(t, http.MethodGet, "/api/v1/users/"+bob.ID, adminToken, nil)
	require.Equal(t, http.StatusOK, status)

	status, env := s.do(t, http.MethodPut, "/api/v1/users/"+alice.ID, aliceToken, map[string]string{"role": "ADMIN"})
	require.Equal(t, http.StatusForbidden, status)
	require.Equal(t, "FORBIDDEN", env.Error.Code)

	status, _ = s.do(t, http.MethodPut, "/api/v1/users/"+alice.ID+"/password", aliceToken, model.ResetPasswordRequest{Password: "new-password"})
	require.Equal(t, http.StatusOK, status)
	s.login(t, "alice@example.com", "new-password")

	status, _ = s.do(t, http.MethodPut, "/api/v1/users/"+bob.ID+"/password", aliceToken, model.ResetPasswordRequest{Password: "stolen-password"})
	require.Equal(t, http.StatusForbidden, status)

	status, _ = s.do(t, http.MethodDelete, "/api/v1/users/"+bob.ID, adminToken, nil)
	require.Equal(t, http.StatusOK, status)

	// Bob's account is gone, so his identity can no longer be established.
	status, _ = s.do(t, http.MethodPost, "/api/v1/auth/login", "", model.LoginRequest{Email: "bob@example.com", Password: "password1"})
	require.Equal(t, http.StatusUnauthorized, status)
}

func TestPreRegisteredPatientFlow(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.login(t, "admin@example.com", "admin12345").Token

	status, _ := s.do(t, http.MethodPost, "/api/v1/users", adminToken, model.CreateUserRequest{
		Name: "Desk", Email: "desk@example.com", Password: "password1", Role: "RECEPTIONIST",
	})
	require.Equal(t, http.StatusCreated, status)
	deskToken := s.login(t, "desk@example.com", "password1").Token

	status, env := s.do(t, http.MethodPost, "/api/v1/patients", deskToken, model.CreatePatientRequest{Name: "Pat"})
	require.Equal(t, http.StatusCreated, status)
	var patient model.Patient
	require.NoError(t, json.Unmarshal(env.Data, &patient))

	status, env = s.do(t, http.MethodPost, "/api/v1/pre-registrations", "", model.PreRegisterRequest{
		Name: "Pat", Email: "pat@example.com", Password: "patient123",
	})
	require.Equal(t, http.StatusCreated, status)
	var account model.AccountView
	require.NoError(t, json.Unmarshal(env.Data, &account))
	require.Equal(t, model.RolePatient, account.Role)
	require.Nil(t, account.PatientID)

	status, _ = s.do(t, http.MethodPost, "/api/v1/pre-registrations", "", model.PreRegisterRequest{
		Name: "Pat", Email: "PAT@example.com", Password: "patient123",
	})
	require.Equal(t, http.StatusConflict, status)

	// Unlinked accounts see no patient record.
	unlinked := s.login(t, "pat@example.com", "patient123")
	status, _ = s.do(t, http.MethodGet, "/api/v1/patients/"+patient.ID, unlinked.Token, nil)
	require.Equal(t, http.StatusForbidden, status)

	status, env = s.do(t, http.MethodPut, "/api/v1/pre-registrations/"+account.ID+"/patient", deskToken, model.LinkPatientRequest{PatientID: patient.ID})
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &account))
	require.NotNil(t, account.PatientID)
	require.Equal(t, patient.ID, *account.PatientID)

	login := s.login(t, "pat@example.com", "patient123")
	claims, err := s.codec.ParseClaims(login.Token)
	require.NoError(t, err)
	require.Equal(t, "ROLE_PATIENT", claims.Role)
	require.Equal(t, patient.ID, claims.Patient)

	status, _ = s.do(t, http.MethodGet, "/api/v1/patients/"+patient.ID, login.Token, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = s.do(t, http.MethodGet, "/api/v1/patients/"+uuid.NewString(), login.Token, nil)
	require.Equal(t, http.StatusForbidden, status)

	status, _ = s.do(t, http.MethodGet, "/api/v1/patients", login.Token, nil)
	require.Equal(t, http.StatusForbidden, status)

	status, _ = s.do(t, http.MethodGet, "/api/v1/pre-registrations/"+account.ID, login.Token, nil)
	require.Equal(t, http.StatusOK, status)

	status, env = s.do(t, http.MethodGet, "/api/v1/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, status)
	var me model.AccountView
	require.NoError(t, json.Unmarshal(env.Data, &me))
	require.Equal(t, model.AccountKindPreRegistered, me.Kind)
}

func TestSelfDeclaredPatientLinkGrantsNothing(t *testing.T) {
	s := newTestServer(t)
	adminToken := s.login(t, "admin@example.com", "admin12345").Token

	status, env := s.do(t, http.MethodPost, "/api/v1/patients", adminToken, model.CreatePatientRequest{Name: "Victim"})
	require.Equal(t, http.StatusCreated, status)
	var victim model.Patient
	require.NoError(t, json.Unmarshal(env.Data, &victim))

	accounts := make([]model.AccountView, 0, 2)
	for _, email := range []string{"mallory@example.com", "trudy@example.com"} {
		status, env = s.do(t, http.MethodPost, "/api/v1/pre-registrations", "", map[string]any{
			"name": "Claimant", "email": email, "password": "password1", "patient_id": victim.ID,
		})
		require.Equal(t, http.StatusCreated, status)

		var account model.AccountView
		require.NoError(t, json.Unmarshal(env.Data, &account))
		require.Nil(t, account.PatientID)
		accounts = append(accounts, account)

		token := s.login(t, email, "password1").Token
		status, _ = s.do(t, http.MethodGet, "/api/v1/patients/"+victim.ID, token, nil)
		require.Equal(t, http.StatusForbidden, status)

		// Patients cannot link themselves either.
		status, _ = s.do(t, http.MethodPut, "/api/v1/pre-registrations/"+account.ID+"/patient", token, model.LinkPatientRequest{PatientID: victim.ID})
		require.Equal(t, http.StatusForbidden, status)
	}

	status, _ = s.do(t, http.MethodPut, "/api/v1/pre-registrations/"+accounts[0].ID+"/patient", adminToken, model.LinkPatientRequest{PatientID: victim.ID})
	require.Equal(t, http.StatusOK, status)

	status, env = s.do(t, http.MethodPut, "/api/v1/pre-registrations/"+accounts[1].ID+"/patient", adminToken, model.LinkPatientRequest{PatientID: victim.ID})
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "CONFLICT", env.Error.Code)

	status, _ = s.do(t, http.MethodPut, "/api/v1/pre-registrations/"+accounts[1].ID+"/patient", adminToken, model.LinkPatientRequest{PatientID: uuid.NewString()})
	require.Equal(t, http.StatusNotFound, status)
}

func TestPublicEndpoints(t *testing.T) {
	s := newTestServer(t)

	resp, err := http.Get(s.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, err = http.Get(s.URL + "/.well-known/jwks.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var set security.JWKSet
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&set))
	require.Len(t, set.Keys, 1)
	require.Equal(t, "RS256", set.Keys[0].Alg)

	s.do(t, http.MethodPost, "/api/v1/auth/login", "", model.LoginRequest{Email: "admin@example.com", Password: "admin12345"})

	metricsResp, err := http.Get(s.URL + "/metrics")
	require.NoError(t, err)
	defer metricsResp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(metricsResp.Body)
	require.NoError(t, err)
	require.Contains(t, buf.String(), `route="/api/v1/auth/login"`)
}
