package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-clinic-api/internal/model"
	"go-clinic-api/internal/service"
)

type PreRegistrationHandler struct {
	users *service.UserService
	audit *service.AuditService
}

func NewPreRegistrationHandler(users *service.UserService, audit *service.AuditService) *PreRegistrationHandler {
	return &PreRegistrationHandler{users: users, audit: audit}
}

func (h *PreRegistrationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload model.PreRegisterRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	account, err := h.users.PreRegister(r.Context(), payload)
	h.audit.Record(r.Context(), model.AuditActionPreRegistration, actorFromRequest(r), model.NormalizeEmail(payload.Email), err)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, account, nil)
}

// LinkPatient is staff-only; the route guard checks the role.
func (h *PreRegistrationHandler) LinkPatient(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")

	var payload model.LinkPatientRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	account, err := h.users.LinkPatient(r.Context(), accountID, payload)
	h.audit.Record(r.Context(), model.AuditActionPatientLink, actorFromRequest(r), accountID, err)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, account, nil)
}

func (h *PreRegistrationHandler) Get(w http.ResponseWriter, r *http.Request) {
	account, err := h.users.GetPreRegistered(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, account, nil)
}
