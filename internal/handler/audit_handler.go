package handler

import (
	"net/http"
	"strings"
	"time"

	"go-clinic-api/internal/model"
	"go-clinic-api/internal/service"
	"go-clinic-api/pkg/apierror"
)

type AuditHandler struct {
	service *service.AuditService
}

func NewAuditHandler(service *service.AuditService) *AuditHandler {
	return &AuditHandler{service: service}
}

func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	from, err := parseOptionalTime(query.Get("from"))
	if err != nil {
		writeError(w, apierror.Wrap(model.ErrInvalidInput, "BAD_REQUEST", "invalid 'from' datetime format", query.Get("from"), http.StatusBadRequest))
		return
	}

	to, err := parseOptionalTime(query.Get("to"))
	if err != nil {
		writeError(w, apierror.Wrap(model.ErrInvalidInput, "BAD_REQUEST", "invalid 'to' datetime format", query.Get("to"), http.StatusBadRequest))
		return
	}

	items, meta, err := h.service.Query(r.Context(), model.AuditQuery{
		Action:  strings.TrimSpace(query.Get("action")),
		ActorID: strings.TrimSpace(query.Get("actor_id")),
		Status:  strings.TrimSpace(query.Get("status")),
		From:    from,
		To:      to,
		Page:    parseIntOrDefault(query.Get("page"), 1),
		Limit:   parseIntOrDefault(query.Get("limit"), 50),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, model.AuditList{Items: items}, &meta)
}

func parseOptionalTime(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	value, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return nil, err
	}

	value = value.UTC()
	return &value, nil
}
