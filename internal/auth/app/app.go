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

	httpapi "github.com/aussiebroadwan/rollcall/internal/auth/http"
	"github.com/aussiebroadwan/rollcall/internal/auth/metrics"
	"github.com/aussiebroadwan/rollcall/internal/auth/rbac"
	"github.com/aussiebroadwan/rollcall/internal/auth/revocation"
	"github.com/aussiebroadwan/rollcall/internal/auth/service"
	"github.com/aussiebroadwan/rollcall/internal/auth/store"
	"github.com/aussiebroadwan/rollcall/internal/auth/store/drivers/postgres"
	"github.com/aussiebroadwan/rollcall/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/rollcall/pkg/cryptox"
	"github.com/aussiebroadwan/rollcall/pkg/jwtx"
	"github.com/aussiebroadwan/rollcall/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"

	serviceName = "rollcall-auth"
)

// Application encapsulates the auth service and its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db              store.Store
	shutdownTracing func(context.Context) error

	metrics             *metrics.Metrics
	authService         *service.AuthService
	gate                *service.Gate
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with every dependency initialised. The
// database is migrated before New returns.
func New(ctx context.Context, cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: serviceName,
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	shutdownTracing, err := initTracing(ctx, cfg.OTLPEndpoint, serviceName, BuildVersion, cfg.OTLPInsecure)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	app.shutdownTracing = shutdownTracing

	if err := app.initDatabase(ctx); err != nil {
		_ = app.shutdownTracing(ctx)
		return nil, err
	}

	if err := app.initServices(ctx); err != nil {
		_ = app.db.Close()
		_ = app.shutdownTracing(ctx)
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Handler exposes the fully wired HTTP handler.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("auth service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"driver", app.cfg.DatabaseDriver,
		"revocation", app.cfg.RevocationBackend,
		"policy", app.cfg.PolicyEngine,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(shutdown)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.housekeepingService.Stop()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains in-flight requests, stops background work, flushes traces
// and closes the database.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.shutdownTracing(ctx); err != nil {
		app.logger.Error("error flushing traces", "error", err)
	}

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

func (app *Application) initDatabase(ctx context.Context) error {
	var (
		db  store.Store
		err error
	)
	switch app.cfg.DatabaseDriver {
	case DriverPostgres:
		db, err = postgres.NewStore(ctx, app.cfg.DatabaseURL)
	default:
		dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
		db, err = sqlite.NewStore(dsn)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.DatabaseDriver)
	return nil
}

func (app *Application) initServices(ctx context.Context) error {
	secret, err := LoadSigningSecret(app.cfg, app.logger)
	if err != nil {
		return err
	}

	codec, err := jwtx.NewCodec(jwtx.CodecOptions{
		Secret:     secret,
		AccessTTL:  app.cfg.AccessTTL,
		RefreshTTL: app.cfg.RefreshTTL,
		ResetTTL:   app.cfg.ResetTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize token codec: %w", err)
	}

	hasher, err := cryptox.NewHasher(cryptox.HasherOptions{
		Algorithm: cryptox.Algorithm(app.cfg.PasswordAlgorithm),
		Cost:      app.cfg.BcryptCost,
		Workers:   app.cfg.HashWorkers,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize password hasher: %w", err)
	}

	hierarchy := rbac.Default()
	if app.cfg.RoleHierarchyFile != "" {
		hierarchy, err = rbac.LoadHierarchy(app.cfg.RoleHierarchyFile)
		if err != nil {
			return fmt.Errorf("failed to load role hierarchy: %w", err)
		}
		app.logger.Info("role hierarchy loaded", "path", app.cfg.RoleHierarchyFile, "roles", hierarchy.Roles())
	}

	var policy service.Policy = service.AdminPolicy{}
	if app.cfg.PolicyEngine == PolicyRego {
		policy, err = service.LoadRegoPolicy(ctx, app.cfg.PolicyFile)
		if err != nil {
			return fmt.Errorf("failed to load rego policy: %w", err)
		}
		app.logger.Info("rego policy loaded", "path", app.cfg.PolicyFile)
	}

	var registry revocation.Registry
	switch app.cfg.RevocationBackend {
	case RevocationMemory:
		registry = revocation.NewMemory()
		app.logger.Warn("revocations are held in memory and will not survive a restart")
	default:
		registry = revocation.NewStore(app.db)
	}

	app.metrics = metrics.New()

	app.authService = &service.AuthService{
		Store:   app.db,
		Codec:   codec,
		Hasher:  hasher,
		Revoked: registry,
		Metrics: app.metrics,
	}
	app.gate = &service.Gate{
		Hierarchy: hierarchy,
		Policy:    policy,
		Metrics:   app.metrics,
	}

	app.housekeepingService = service.NewHousekeepingService(
		registry,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
	app.housekeepingService.Metrics = app.metrics
	app.housekeepingService.Leeway = codec.Leeway()
	return nil
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(httpapi.RouterOptions{
		Auth:         app.authService,
		Gate:         app.gate,
		Metrics:      app.metrics,
		Ready:        app.db,
		BuildVersion: BuildVersion,
		CORSOrigins:  app.cfg.CORSAllowedOrigins,
		Logger:       app.logger,
	})
	router.ApplyRoutes()
	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
