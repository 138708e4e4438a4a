package router

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-clinic-api/internal/config"
	"go-clinic-api/internal/handler"
	"go-clinic-api/internal/middleware"
	"go-clinic-api/internal/model"
)

type Handlers struct {
	Auth            *handler.AuthHandler
	User            *handler.UserHandler
	PreRegistration *handler.PreRegistrationHandler
	Patient         *handler.PatientHandler
	Dashboard       *handler.DashboardHandler
	Audit           *handler.AuditHandler
}

// Access holds the self-or-admin decisions the guards delegate to.
type Access struct {
	Account middleware.AccessCheck
	Patient middleware.AccessCheck
}

type HealthFunc func(ctx context.Context) error

func New(
	cfg *config.Config,
	authMiddleware *middleware.AuthMiddleware,
	metrics *middleware.Metrics,
	access Access,
	h Handlers,
	health HealthFunc,
) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.ClientIP(cfg.TrustProxyHeaders))
	r.Use(middleware.Logging)
	r.Use(metrics.Instrument)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.SecurityHeaders)
	r.Use(rateLimitMiddleware.Handler)
	r.Use(authMiddleware.Authenticate)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if health != nil {
			if err := health(req.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("unavailable"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/.well-known/jwks.json", h.Auth.JWKS)

	requireAuth := authMiddleware.RequireAuth
	adminOnly := authMiddleware.RequireRoles(model.RoleAdmin)
	staff := authMiddleware.RequireRoles(model.RoleAdmin, model.RoleProfessional, model.RoleReceptionist)
	frontDesk := authMiddleware.RequireRoles(model.RoleAdmin, model.RoleReceptionist)
	selfOrAdmin := authMiddleware.RequireSelfOrAdmin("id", access.Account)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.Timeout(cfg.RequestTimeout))

		api.Route("/auth", func(auth chi.Router) {
			auth.Post("/login", h.Auth.Login)
			auth.With(requireAuth).Get("/me", h.Auth.Me)
		})

		api.Route("/users", func(users chi.Router) {
			users.With(adminOnly).Get("/", h.User.List)
			users.With(adminOnly).Post("/", h.User.Create)
			users.With(selfOrAdmin).Get("/{id}", h.User.Get)
			users.With(selfOrAdmin).Put("/{id}", h.User.Update)
			users.With(adminOnly).Delete("/{id}", h.User.Delete)
			users.With(selfOrAdmin).Put("/{id}/password", h.User.ResetPassword)
		})

		api.Route("/pre-registrations", func(pre chi.Router) {
			pre.Post("/", h.PreRegistration.Create)
			pre.With(selfOrAdmin).Get("/{id}", h.PreRegistration.Get)
			pre.With(selfOrAdmin).Put("/{id}/password", h.User.ResetPassword)
			pre.With(frontDesk).Put("/{id}/patient", h.PreRegistration.LinkPatient)
		})

		api.Route("/patients", func(patients chi.Router) {
			patients.With(frontDesk).Post("/", h.Patient.Create)
			patients.With(staff).Get("/", h.Patient.List)
			patients.With(authMiddleware.RequireSelfOrAdmin("id", access.Patient)).Get("/{id}", h.Patient.Get)
		})

		api.With(adminOnly).Get("/dashboard", h.Dashboard.Counts)
		api.With(adminOnly).Get("/audit", h.Audit.List)
	})

	return r
}
