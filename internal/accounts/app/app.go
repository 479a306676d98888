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

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/events"
	httpapi "github.com/aussiebroadwan/accounts/internal/accounts/http"
	"github.com/aussiebroadwan/accounts/internal/accounts/portal"
	"github.com/aussiebroadwan/accounts/internal/accounts/service"
	"github.com/aussiebroadwan/accounts/internal/accounts/store/drivers/sqldb"
	"github.com/aussiebroadwan/accounts/internal/accounts/usercache"
	"github.com/aussiebroadwan/accounts/pkg/cryptox"
	"github.com/aussiebroadwan/accounts/pkg/otelx"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application encapsulates the accounts service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db    *sqldb.Store
	keys  *sessionKeys
	cache service.UserCache
	pub   events.Publisher

	// Services
	accountService      *service.AccountService
	inviteService       *service.InviteService
	datasourceService   *service.DatasourceService
	sessionService      *service.SessionService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router

	// closers run in reverse order on shutdown
	closers []func(context.Context)
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "accounts",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.Log.Level,
			Format:  cfg.Log.Format,
		}),
	}

	ctx := context.Background()

	cryptox.SetPepperPath(cfg.Auth.PepperFile)

	if err := app.initTracing(ctx); err != nil {
		return nil, err
	}
	if err := app.initDatabase(ctx); err != nil {
		app.close(ctx)
		return nil, err
	}

	keys, err := initSessionKeys(cfg, app.logger)
	if err != nil {
		app.close(ctx)
		return nil, err
	}
	app.keys = keys

	if err := app.initCache(ctx); err != nil {
		app.close(ctx)
		return nil, err
	}
	if err := app.initEvents(); err != nil {
		app.close(ctx)
		return nil, err
	}

	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("accounts service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.housekeepingService.Stop()
			app.close(context.Background())
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

// Shutdown drains in-flight requests, then stops workers and closes every
// connection.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down accounts service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()
	app.close(ctx)

	app.logger.Info("accounts service stopped")
	return nil
}

func (app *Application) onClose(fn func(context.Context)) {
	app.closers = append(app.closers, fn)
}

func (app *Application) close(ctx context.Context) {
	for i := len(app.closers) - 1; i >= 0; i-- {
		app.closers[i](ctx)
	}
	app.closers = nil
}

func (app *Application) initTracing(ctx context.Context) error {
	_, teardown, err := otelx.InitTracing(ctx, app.logger, otelx.Config{
		ServiceName: app.cfg.Tracing.ServiceName,
		Endpoint:    app.cfg.Tracing.Endpoint,
		Probability: app.cfg.Tracing.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	app.onClose(teardown)
	return nil
}

// initDatabase opens the document store and applies migrations.
func (app *Application) initDatabase(ctx context.Context) error {
	dsn := app.cfg.Database.DSN
	if dsn == "" && app.cfg.Database.Driver == sqldb.DriverSQLite {
		dsn = sqldb.SQLiteDSN(app.cfg.Database.File)
	}

	db, err := sqldb.Open(ctx, app.cfg.Database.Driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db
	app.onClose(func(context.Context) {
		if err := db.Close(); err != nil {
			app.logger.Error("error closing database", "error", err)
		}
	})

	if err := db.ApplyMigrations(); err != nil {
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.Database.Driver)
	return nil
}

// initCache picks redis when configured so every replica sees the same
// invalidations, the in-process cache otherwise.
func (app *Application) initCache(ctx context.Context) error {
	load := func(ctx context.Context, tenantID, userID string) (domain.User, error) {
		return app.db.Users().Get(ctx, tenantID, userID)
	}

	if app.cfg.Cache.RedisURL == "" {
		app.cache = usercache.NewLocal(load, app.cfg.Cache.TTL)
		app.logger.Info("user cache: in-process")
		return nil
	}

	rc, err := usercache.NewRedis(ctx, app.cfg.Cache.RedisURL, load, app.cfg.Cache.TTL)
	if err != nil {
		return fmt.Errorf("failed to connect user cache: %w", err)
	}
	app.cache = rc
	app.onClose(func(context.Context) { _ = rc.Close() })
	app.logger.Info("user cache: redis")
	return nil
}

func (app *Application) initEvents() error {
	if app.cfg.Events.NATSURL == "" {
		app.pub = events.LogPublisher{}
		app.logger.Warn("no event bus configured, invitation emails and app sync are only logged")
		return nil
	}

	np, err := events.ConnectNATS(app.cfg.Events.NATSURL, "accounts", app.logger)
	if err != nil {
		return fmt.Errorf("failed to connect event bus: %w", err)
	}
	app.pub = np
	app.onClose(func(context.Context) { np.Close() })
	return nil
}

// initServices initializes all business logic services.
func (app *Application) initServices() {
	sync := &events.AppSync{Pub: app.pub}

	app.sessionService = &service.SessionService{
		Store:  app.db,
		Signer: app.keys.signer,
		Issuer: app.cfg.Auth.Issuer,
		TTL:    app.cfg.Auth.SessionTTL,
	}

	app.accountService = &service.AccountService{
		Store:    app.db,
		Cache:    app.cache,
		Sessions: app.sessionService,
		Sync:     sync,
		Deployment: service.Deployment{
			SelfHosted:   app.cfg.Deployment.SelfHosted,
			MultiTenancy: app.cfg.Deployment.MultiTenancy,
		},
	}
	if app.cfg.AccountPortal.URL != "" {
		app.accountService.Portal = portal.NewClient(app.cfg.AccountPortal.URL, app.cfg.AccountPortal.APIKey)
	}

	app.inviteService = &service.InviteService{
		Store:     app.db,
		Mailer:    &events.Mailer{Pub: app.pub},
		Sync:      sync,
		TTL:       app.cfg.Invites.TTL,
		AcceptURL: app.cfg.Invites.AcceptURL,
	}
	app.datasourceService = &service.DatasourceService{Store: app.db}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keys.keySet,
		app.keys.verifier,
		BuildVersion,
		app.db,
		app.logger,
	)

	router.InternalAPIKey = app.cfg.Auth.InternalAPIKey
	router.AccountService = app.accountService
	router.InviteService = app.inviteService
	router.DatasourceService = app.datasourceService
	router.SessionService = app.sessionService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
