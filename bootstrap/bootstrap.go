// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	apihttp "github.com/artpar/typemap/adapters/http"
	"github.com/artpar/typemap/adapters/metrics"
	"github.com/artpar/typemap/config"
	"github.com/artpar/typemap/core/jobs"
	"github.com/artpar/typemap/core/model"
	"github.com/artpar/typemap/core/schema"
	"github.com/artpar/typemap/core/sqltypes"
	"github.com/artpar/typemap/core/typemap"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Version is reported by /version and the CLI. Set at build time.
var Version = "dev"

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Holder
	Metrics    *metrics.Collector
	Database   *Database
	Types      *sqltypes.Map
	Models     *model.Registry
	Queue      jobs.Queue
	Enqueuer   *jobs.Enqueuer
	Dispatcher *jobs.Dispatcher
	Router     http.Handler
	HTTPServer *http.Server

	applyMu sync.Mutex // serializes definition reloads
	cancel  context.CancelFunc
	done    chan struct{}
}

// Options provides optional configuration for application initialization.
type Options struct {
	// ConfigPath is a YAML config file. Missing files fall back to
	// TYPEMAP_* environment variables.
	ConfigPath string

	// Config is used as-is when set; ConfigPath is then ignored.
	Config *config.Config

	// Registry receives the metrics instead of the default registry.
	Registry *prometheus.Registry

	// SkipServer leaves HTTPServer nil, for commands that only need the
	// models.
	SkipServer bool
}

// New creates and initializes the application.
func New(ctx context.Context, opts Options) (*App, error) {
	holder, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	cfg := holder.Get()

	logger := setupLogger(cfg.Logging)
	holder.SetLogger(logger)
	logger.Info().Str("driver", cfg.Database.Driver).Msg("initializing typemap")

	a := &App{
		Logger: logger,
		Config: holder,
	}

	if cfg.Metrics.Enabled {
		if opts.Registry != nil {
			a.Metrics = metrics.NewWithRegistry(opts.Registry)
		} else {
			a.Metrics = metrics.New()
		}
		holder.SetObserver(a.Metrics)
		logger.Info().Msg("prometheus metrics enabled")
	}

	var typeOpts []typemap.Option
	if a.Metrics != nil {
		typeOpts = append(typeOpts, typemap.WithObserver(a.Metrics))
	}

	a.Database, err = OpenDatabase(ctx, cfg.Database, typeOpts...)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	a.Types = a.Database.Types
	a.Models = model.NewRegistry()

	if err := a.applyDefinitions(ctx, cfg); err != nil {
		a.Database.Close()
		return nil, fmt.Errorf("apply definitions: %w", err)
	}

	if err := a.initJobs(ctx, cfg); err != nil {
		a.Database.Close()
		return nil, fmt.Errorf("init jobs: %w", err)
	}

	holder.OnChange(func(newCfg *config.Config) {
		if level, err := zerolog.ParseLevel(newCfg.Logging.Level); err == nil {
			zerolog.SetGlobalLevel(level)
		}
		if err := a.applyDefinitions(context.Background(), newCfg); err != nil {
			a.Logger.Error().Err(err).Msg("re-applying definitions failed, keeping current models")
		}
	})

	a.initRouter(cfg, opts)
	if !opts.SkipServer {
		a.HTTPServer = &http.Server{
			Addr:         cfg.Server.Addr(),
			Handler:      a.Router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
	}

	return a, nil
}

func loadConfig(opts Options) (*config.Holder, error) {
	if opts.Config != nil {
		return config.NewStaticHolder(opts.Config, zerolog.Nop()), nil
	}
	if opts.ConfigPath != "" {
		if _, err := os.Stat(opts.ConfigPath); err == nil {
			return config.NewHolder(opts.ConfigPath, zerolog.Nop())
		}
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, err
	}
	return config.NewStaticHolder(cfg, zerolog.Nop()), nil
}

func (a *App) initJobs(ctx context.Context, cfg *config.Config) error {
	q, err := OpenQueue(ctx, cfg.Queue)
	if err != nil {
		return err
	}
	a.Queue = q

	enqOpts := []jobs.EnqueuerOption{
		jobs.WithQueueName(cfg.Queue.Name),
		jobs.WithEnqueueLogger(a.Logger),
	}
	dispOpts := []jobs.DispatcherOption{
		jobs.WithDispatchQueue(cfg.Queue.Name),
		jobs.WithMaxAttempts(cfg.Queue.MaxAttempts),
		jobs.WithDispatchLogger(a.Logger),
	}
	if a.Metrics != nil {
		enqOpts = append(enqOpts, jobs.WithEnqueueObserver(a.Metrics))
		dispOpts = append(dispOpts, jobs.WithDispatchObserver(a.Metrics))
	}

	a.Enqueuer = jobs.NewEnqueuer(q, enqOpts...)
	a.Dispatcher = jobs.NewDispatcher(q, dispOpts...)
	return a.Dispatcher.Handle(jobs.ReloadSchema, a.reloadSchemaJob)
}

func (a *App) initRouter(cfg *config.Config, opts Options) {
	rc := apihttp.RouterConfig{
		Models:      a.Models,
		Types:       a.Types,
		Driver:      a.Database.Driver,
		Enqueuer:    a.Enqueuer,
		Health:      a.Database,
		Version:     Version,
		MetricsPath: cfg.Metrics.Path,
	}
	if a.Metrics != nil {
		rc.Metrics = a.Metrics
		if opts.Registry != nil {
			rc.MetricsHandler = promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})
		}
	}
	a.Router = apihttp.NewRouter(a.Logger, rc)
}

// Start runs the job dispatcher and, when configured, the config watchers.
// It does not start the HTTP server.
func (a *App) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	a.done = make(chan struct{})

	go func() {
		defer close(a.done)
		if err := a.Dispatcher.Run(ctx); err != nil && !errors.Is(err, jobs.ErrClosed) {
			a.Logger.Error().Err(err).Msg("job dispatcher stopped")
		}
	}()

	if a.Config.Path() == "" {
		return
	}
	a.Config.WatchSignals()
	if a.Config.Get().Schema.Watch {
		if err := a.Config.WatchFile(); err != nil {
			a.Logger.Warn().Err(err).Msg("failed to watch config files")
		}
	}
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
	if a.HTTPServer == nil {
		return fmt.Errorf("run: server not initialized")
	}
	a.Start(context.Background())

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		a.Shutdown()
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

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	a.Config.Stop()

	if a.cancel != nil {
		a.cancel()
		select {
		case <-a.done:
		case <-ctx.Done():
			a.Logger.Warn().Msg("job dispatcher did not stop in time")
		}
	}

	if a.Queue != nil {
		if err := a.Queue.Close(); err != nil && !errors.Is(err, jobs.ErrClosed) {
			a.Logger.Error().Err(err).Msg("queue close error")
		}
	}

	if a.Database != nil {
		if err := a.Database.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

// Model returns a registered model, loading its columns first if nothing
// has loaded them yet.
func (a *App) Model(ctx context.Context, name string) (*model.Model, error) {
	m, err := a.Models.Lookup(name)
	if err != nil {
		return nil, err
	}
	if !m.SchemaLoaded() {
		if err := m.LoadSchema(ctx); err != nil && !errors.Is(err, schema.ErrTableNotFound) {
			return nil, err
		}
	}
	return m, nil
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
