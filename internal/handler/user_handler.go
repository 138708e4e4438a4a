package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-clinic-api/internal/middleware"
	"go-clinic-api/internal/model"
	"go-clinic-api/internal/service"
)

type UserHandler struct {
	users *service.UserService
	auth  *service.AuthService
	audit *service.AuditService
}

func NewUserHandler(users *service.UserService, auth *service.AuthService, audit *service.AuditService) *UserHandler {
	return &UserHandler{users: users, auth: auth, audit: audit}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	accounts, meta, err := h.users.ListUsers(r.Context(),
		parseIntOrDefault(query.Get("page"), 1),
		parseIntOrDefault(query.Get("limit"), 50))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.AccountList{Accounts: accounts}, &meta)
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload model.CreateUserRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	account, err := h.users.CreateUser(r.Context(), payload)
	h.audit.Record(r.Context(), model.AuditActionUserCreate, actorFromRequest(r), model.NormalizeEmail(payload.Email), err)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, account, nil)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	account, err := h.users.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, account, nil)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	var payload model.UpdateUserRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	identity, _ := middleware.IdentityFromContext(r.Context())
	account, err := h.users.UpdateUser(r.Context(), userID, payload, identity)
	h.audit.Record(r.Context(), model.AuditActionUserUpdate, actorFromRequest(r), userID, err)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, account, nil)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	actor := actorFromRequest(r)

	err := h.users.DeleteUser(r.Context(), userID, actor.AccountID)
	h.audit.Record(r.Context(), model.AuditActionUserDelete, actor, userID, err)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"deleted": true}, nil)
}

// ResetPassword serves both account kinds; the route guard has already
// checked self or admin against the id in the path.
func (h *UserHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")

	var payload model.ResetPasswordRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	err := h.auth.ResetPassword(r.Context(), accountID, payload.Password)
	h.audit.Record(r.Context(), model.AuditActionPasswordReset, actorFromRequest(r), accountID, err)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"updated": true}, nil)
}
