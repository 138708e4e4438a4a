package service

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"go-clinic-api/internal/model"
	"go-clinic-api/pkg/apierror"
)

type auditStore interface {
	Log(ctx context.Context, entry model.AuditEntry) error
	Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, int, error)
}

// AuditService keeps a trail of security relevant actions. Recording never
// fails the request that triggered it.
type AuditService struct {
	store auditStore
	now   func() time.Time
}

func NewAuditService(store auditStore) *AuditService {
	return &AuditService{store: store, now: time.Now}
}

func (s *AuditService) Record(ctx context.Context, action string, actor model.AuditActor, resource string, actionErr error) {
	if s == nil || s.store == nil {
		return
	}

	entry := model.AuditEntry{
		Action:     action,
		OccurredAt: s.now().UTC(),
		Actor:      actor,
		Status:     model.AuditStatusSuccess,
		Resource:   resource,
	}
	if actionErr != nil {
		entry.Status = model.AuditStatusFailure
		entry.Error = actionErr.Error()
	}

	// The request context may already be cancelled once the response is out.
	if err := s.store.Log(context.WithoutCancel(ctx), entry); err != nil {
		slog.Warn("audit entry not recorded", "action", action, "error", err)
	}
}

func (s *AuditService) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	query.Page, query.Limit = normalizePage(query.Page, query.Limit)

	if query.From != nil && query.To != nil && query.From.After(*query.To) {
		return nil, model.Meta{}, apierror.Wrap(model.ErrInvalidInput, "BAD_REQUEST", "'from' must not be after 'to'", "", http.StatusBadRequest)
	}

	items, total, err := s.store.Query(ctx, query)
	if err != nil {
		return nil, model.Meta{}, err
	}

	return items, model.NewMeta(query.Page, query.Limit, total), nil
}
