package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"go-clinic-api/internal/model"
	"go-clinic-api/internal/security"
)

type tokenVerifier interface {
	ParseClaims(tokenString string) (*security.Claims, error)
	IsExpired(claims *security.Claims) bool
	Validate(tokenString string, expectedSubject string, expectedRole model.Role) bool
}

type subjectResolver interface {
	ResolveBySubject(ctx context.Context, email string) (model.Account, error)
}

// AuthRecorder receives one outcome per request that carried a bearer token.
type AuthRecorder interface {
	ObserveAuth(outcome string)
}

// AccessCheck decides whether identity may act on the resource named by target.
type AccessCheck func(ctx context.Context, identity *model.Identity, target string) (bool, error)

const (
	AuthOutcomeAuthenticated = "authenticated"
	AuthOutcomeMalformed     = "malformed"
	AuthOutcomeExpired       = "expired"
	AuthOutcomeRejected      = "rejected"
	AuthOutcomeError         = "error"
)

type (
	identityContextKey   struct{}
	tokenErrorContextKey struct{}
)

type AuthMiddleware struct {
	tokens     tokenVerifier
	principals subjectResolver
	recorder   AuthRecorder
}

func NewAuthMiddleware(tokens tokenVerifier, principals subjectResolver, recorder AuthRecorder) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, principals: principals, recorder: recorder}
}

// Authenticate establishes the request identity from a bearer token. It never
// rejects a request: failures leave the request anonymous and are reported by
// the guards further down the chain.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		identity, err := m.authenticate(r.Context(), token)
		ctx := r.Context()
		switch {
		case err == nil:
			m.observe(ctx, AuthOutcomeAuthenticated, identity)
			ctx = WithIdentity(ctx, identity)
		case errors.Is(err, security.ErrTokenExpired):
			m.observe(ctx, AuthOutcomeExpired, nil)
			ctx = context.WithValue(ctx, tokenErrorContextKey{}, err)
		case errors.Is(err, security.ErrMalformedToken):
			m.observe(ctx, AuthOutcomeMalformed, nil)
		case errors.Is(err, model.ErrUnauthorized):
			m.observe(ctx, AuthOutcomeRejected, nil)
		default:
			m.observe(ctx, AuthOutcomeError, nil)
			slog.Error("authenticate request", "request_id", RequestIDFromContext(ctx), "path", r.URL.Path, "error", err)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) authenticate(ctx context.Context, token string) (*model.Identity, error) {
	claims, err := m.tokens.ParseClaims(token)
	if err != nil {
		return nil, security.ErrMalformedToken
	}
	if m.tokens.IsExpired(claims) {
		return nil, security.ErrTokenExpired
	}

	subject, err := claims.RequireSubject()
	if err != nil {
		return nil, security.ErrMalformedToken
	}

	account, err := m.principals.ResolveBySubject(ctx, subject)
	if errors.Is(err, model.ErrAccountNotFound) {
		return nil, model.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}

	// A role change after issuance invalidates the token.
	if !m.tokens.Validate(token, account.Subject(), account.Role) {
		return nil, model.ErrUnauthorized
	}

	return model.NewIdentity(account), nil
}

func (m *AuthMiddleware) observe(ctx context.Context, outcome string, identity *model.Identity) {
	noteAuth(ctx, outcome, identity)
	if m.recorder != nil {
		m.recorder.ObserveAuth(outcome)
	}
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			writeUnauthenticated(w, r)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireRoles admits identities holding one of the allowed roles. The match
// is exact; ADMIN does not imply the other roles.
func (m *AuthMiddleware) RequireRoles(allowedRoles ...model.Role) func(http.Handler) http.Handler {
	roleSet := make(map[model.Role]struct{}, len(allowedRoles))
	for _, role := range allowedRoles {
		roleSet[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				writeUnauthenticated(w, r)
				return
			}

			if _, allowed := roleSet[identity.Role]; !allowed {
				writeAuthError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireSelfOrAdmin reads the target from the named route parameter and asks
// check whether the caller may act on it.
func (m *AuthMiddleware) RequireSelfOrAdmin(param string, check AccessCheck) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				writeUnauthenticated(w, r)
				return
			}

			allowed, err := check(r.Context(), identity, chi.URLParam(r, param))
			if err != nil {
				slog.Error("authorization check failed", "request_id", RequestIDFromContext(r.Context()), "path", r.URL.Path, "error", err)
				writeAuthError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Unexpected server error")
				return
			}
			if !allowed {
				writeAuthError(w, http.StatusForbidden, "FORBIDDEN", "access denied")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// WithIdentity attaches identity unless one is already present.
func WithIdentity(ctx context.Context, identity *model.Identity) context.Context {
	if identity == nil {
		return ctx
	}
	if _, ok := IdentityFromContext(ctx); ok {
		return ctx
	}
	return context.WithValue(ctx, identityContextKey{}, identity)
}

func IdentityFromContext(ctx context.Context) (*model.Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(*model.Identity)
	return identity, ok && identity != nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}

	token := strings.TrimSpace(header[7:])
	return token, token != ""
}

// writeUnauthenticated tells an expired token apart from missing or invalid
// credentials so clients know to log in again.
func writeUnauthenticated(w http.ResponseWriter, r *http.Request) {
	if err, _ := r.Context().Value(tokenErrorContextKey{}).(error); errors.Is(err, security.ErrTokenExpired) {
		writeAuthError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "token has expired")
		return
	}

	writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
}

func writeAuthError(w http.ResponseWriter, status int, code string, message string) {
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="clinic"`)
	}
	writeFailure(w, status, code, message)
}
