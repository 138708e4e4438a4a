package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-clinic-api/internal/model"
	"go-clinic-api/internal/service"
)

type PatientHandler struct {
	patients *service.PatientService
	audit    *service.AuditService
}

func NewPatientHandler(patients *service.PatientService, audit *service.AuditService) *PatientHandler {
	return &PatientHandler{patients: patients, audit: audit}
}

func (h *PatientHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	patients, meta, err := h.patients.List(r.Context(),
		parseIntOrDefault(query.Get("page"), 1),
		parseIntOrDefault(query.Get("limit"), 50))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.PatientList{Patients: patients}, &meta)
}

func (h *PatientHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload model.CreatePatientRequest
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	patient, err := h.patients.Create(r.Context(), payload)
	resource := ""
	if err == nil {
		resource = patient.ID
	}
	h.audit.Record(r.Context(), model.AuditActionPatientCreate, actorFromRequest(r), resource, err)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, patient, nil)
}

func (h *PatientHandler) Get(w http.ResponseWriter, r *http.Request) {
	patient, err := h.patients.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, patient, nil)
}
