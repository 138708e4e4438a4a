package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-clinic-api/internal/config"
	"go-clinic-api/internal/database"
	"go-clinic-api/internal/handler"
	"go-clinic-api/internal/middleware"
	"go-clinic-api/internal/repository"
	"go-clinic-api/internal/router"
	"go-clinic-api/internal/security"
	"go-clinic-api/internal/service"
)

type App struct {
	server       *http.Server
	cleanupFuncs []func()
}

func New(cfg *config.Config) (*App, error) {
	// Without key material the service cannot authenticate anyone.
	keys, err := security.LoadKeyPair(cfg.JWTPrivateKey, cfg.JWTPublicKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load JWT key pair: %w", err)
	}
	slog.Info("JWT key pair loaded", "kid", keys.KeyID)

	codec, err := security.NewTokenCodec(keys, security.WithIssuer(cfg.JWTIssuer))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	pool := db.Pool
	userRepo := repository.NewUserRepository(pool)
	preRegisteredRepo := repository.NewPreRegisteredRepository(pool)
	patientRepo := repository.NewPatientRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	slog.Info("database ready")

	principalService := service.NewPrincipalService(userRepo, preRegisteredRepo)
	authService, err := service.NewAuthService(principalService, codec, userRepo, preRegisteredRepo, cfg.JWTTTL, cfg.BcryptCost)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize auth service: %w", err)
	}
	accessService := service.NewAccessService(principalService)
	userService := service.NewUserService(userRepo, preRegisteredRepo, patientRepo, authService)
	patientService := service.NewPatientService(patientRepo)
	dashboardService := service.NewDashboardService(userRepo, preRegisteredRepo, patientRepo)
	auditService := service.NewAuditService(auditRepo)

	if _, err := userService.EnsureAdmin(context.Background(), cfg.BootstrapAdminEmail, cfg.BootstrapAdminPassword); err != nil {
		db.Close()
		return nil, err
	}

	metrics := middleware.NewMetrics()
	authMiddleware := middleware.NewAuthMiddleware(codec, principalService, metrics)

	appRouter := router.New(cfg, authMiddleware, metrics,
		router.Access{
			Account: accessService.CanAccessAccount,
			Patient: accessService.CanViewPatient,
		},
		router.Handlers{
			Auth:            handler.NewAuthHandler(authService, keys, auditService),
			User:            handler.NewUserHandler(userService, authService, auditService),
			PreRegistration: handler.NewPreRegistrationHandler(userService, auditService),
			Patient:         handler.NewPatientHandler(patientService, auditService),
			Dashboard:       handler.NewDashboardHandler(dashboardService),
			Audit:           handler.NewAuditHandler(auditService),
		},
		db.Health,
	)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server: server,
		cleanupFuncs: []func(){
			func() {
				db.Close()
			},
		},
	}, nil
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Drain in-flight requests before closing the pool they use.
	shutdownErr := a.server.Shutdown(ctx)

	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}

	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}
