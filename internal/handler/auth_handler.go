package handler

import (
	"encoding/json"
	"net/http"

	"go-clinic-api/internal/middleware"
	"go-clinic-api/internal/model"
	"go-clinic-api/internal/security"
	"go-clinic-api/internal/service"
	"go-clinic-api/pkg/apierror"
)

type AuthHandler struct {
	service *service.AuthService
	keys    *security.KeyPair
	audit   *service.AuditService
}

func NewAuthHandler(service *service.AuthService, keys *security.KeyPair, audit *service.AuditService) *AuthHandler {
	return &AuthHandler{service: service, keys: keys, audit: audit}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload model.LoginRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	resp, err := h.service.Login(r.Context(), payload.Email, payload.Password)

	actor := actorFromRequest(r)
	if err == nil {
		actor.AccountID = resp.Account.ID
		actor.Email = resp.Account.Email
		actor.Role = resp.Account.Role
	}
	h.audit.Record(r.Context(), model.AuditActionLogin, actor, model.NormalizeEmail(payload.Email), err)

	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, resp, nil)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, apierror.Wrap(model.ErrUnauthorized, "UNAUTHORIZED", "authentication required", "", http.StatusUnauthorized))
		return
	}

	account, err := h.service.CurrentAccount(r.Context(), identity)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, account, nil)
}

// JWKS is served bare, without the response envelope, so standard JWT
// libraries can consume it.
func (h *AuthHandler) JWKS(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(h.keys.JWKS())
}
