package handler

import (
	"net/http"

	"go-clinic-api/internal/middleware"
	"go-clinic-api/internal/model"
)

func actorFromRequest(r *http.Request) model.AuditActor {
	actor := model.AuditActor{IP: middleware.ClientIPFrom(r)}

	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		return actor
	}

	actor.AccountID = identity.AccountID
	actor.Email = identity.Subject
	actor.Role = identity.Role

	return actor
}
