// Package bootstrap wires all dependencies and starts the application:
// config, logger, database, entity registry, dispatcher and HTTP server.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/planora/planora/adapters/auth"
	"github.com/planora/planora/adapters/clock"
	"github.com/planora/planora/adapters/hasher"
	"github.com/planora/planora/adapters/idgen"
	"github.com/planora/planora/adapters/metrics"
	"github.com/planora/planora/adapters/sqlite"
	"github.com/planora/planora/app"
	"github.com/planora/planora/config"
	"github.com/planora/planora/core/registry"
	"github.com/planora/planora/web"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Config
	Holder     *config.Holder
	DB         *sqlite.DB
	Registry   *registry.Registry
	Dispatcher *app.Dispatcher
	Principals *sqlite.PrincipalStore
	Hasher     *hasher.Bcrypt
	Tokens     *auth.TokenService
	Metrics    *metrics.Collector
	HTTPServer *http.Server
}

// New creates and initializes the application from a config file path.
func New(configPath string) (*App, error) {
	holder, err := config.NewHolder(configPath, zerolog.Nop())
	if err != nil {
		return nil, err
	}
	cfg := holder.Get()

	logger := SetupLogger(cfg.Logging)
	logger.Info().Msg("initializing planora")

	a := &App{
		Logger: logger,
		Config: cfg,
		Holder: holder,
	}

	if err := a.initRegistry(); err != nil {
		return nil, fmt.Errorf("init registry: %w", err)
	}
	if err := a.initDatabase(); err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	a.initServices()
	a.initHTTPServer()

	holder.WatchSignals()
	if err := holder.WatchFile(); err != nil {
		logger.Warn().Err(err).Msg("config file watch unavailable")
	}

	return a, nil
}

// SetupLogger builds a zerolog logger from logging configuration.
func SetupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}

	return logger.Level(level).With().Timestamp().Logger()
}

func (a *App) initRegistry() error {
	reg, err := registry.Load(a.Config.Entities.Path)
	if err != nil {
		return err
	}
	a.Registry = reg
	a.Logger.Info().
		Strs("entities", reg.Names()).
		Str("path", a.Config.Entities.Path).
		Msg("entity registry loaded")
	return nil
}

func (a *App) initDatabase() error {
	db, err := sqlite.Open(a.Config.Database.Path)
	if err != nil {
		return err
	}

	if err := db.Init(context.Background(), a.Registry); err != nil {
		db.Close()
		return fmt.Errorf("init schema: %w", err)
	}

	a.DB = db
	a.Logger.Info().Str("path", a.Config.Database.Path).Msg("database initialized")
	return nil
}

func (a *App) initServices() {
	if a.Config.Metrics.Enabled {
		a.Metrics = metrics.New()
		a.Logger.Info().Msg("prometheus metrics enabled")
	}

	a.Principals = sqlite.NewPrincipalStore(a.DB, clock.System{})
	a.Hasher = hasher.NewBcrypt(a.Config.Auth.BcryptCost)
	a.Tokens = auth.NewTokenService(a.Config.Auth.JWTSecret, a.Config.Auth.TokenExpiry)

	records := sqlite.NewRecordStore(a.DB)
	a.Dispatcher = app.NewDispatcher(a.Registry, records, idgen.UUID{}, a.Logger, a.Metrics)
}

func (a *App) initHTTPServer() {
	handler := web.NewHandler(web.Deps{
		Dispatcher: a.Dispatcher,
		Tokens:     a.Tokens,
		Principals: a.Principals,
		Hasher:     a.Hasher,
		Logger:     a.Logger,
		Metrics:    a.Metrics,
	})

	a.HTTPServer = &http.Server{
		Addr:         a.Config.Server.Addr(),
		Handler:      handler.Router(),
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
	}
}

// Run starts the HTTP server and blocks until interrupt or error.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", a.HTTPServer.Addr).Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.Holder != nil {
		a.Holder.Stop()
	}

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}
