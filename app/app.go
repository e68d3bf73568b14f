// Package app wires configuration, telemetry, report sinks, the tracked
// database connection, the lazy-load interceptor and the debug server into
// one process lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gaborage/go-bricks-lazyload/config"
	"github.com/gaborage/go-bricks-lazyload/database"
	"github.com/gaborage/go-bricks-lazyload/database/types"
	"github.com/gaborage/go-bricks-lazyload/lazyload"
	"github.com/gaborage/go-bricks-lazyload/lifecycle"
	"github.com/gaborage/go-bricks-lazyload/logger"
	"github.com/gaborage/go-bricks-lazyload/observability"
	"github.com/gaborage/go-bricks-lazyload/server"
)

// DefaultShutdownTimeout bounds Shutdown when Run ends.
const DefaultShutdownTimeout = 10 * time.Second

// App is one running process.
type App struct {
	cfg *config.Config
	log logger.Logger

	telemetry   observability.Provider
	sinks       []func(context.Context) error
	reportSinks []lazyload.Sink
	interceptor *lazyload.Interceptor
	db          *database.Connection
	server      *server.Server

	hooks           *lifecycle.Hooks
	signals         lifecycle.SignalHandler
	registry        *lazyload.Registry
	rawDB           types.Interface
	shutdownTimeout time.Duration

	shutdownOnce sync.Once
	shutdownErr  error
}

// Option customizes New, mostly for tests.
type Option func(*App)

// WithHooks fires termination events on h instead of lifecycle.Default().
func WithHooks(h *lifecycle.Hooks) Option {
	return func(a *App) { a.hooks = h }
}

// WithSignalHandler replaces the os/signal backed handler.
func WithSignalHandler(h lifecycle.SignalHandler) Option {
	return func(a *App) { a.signals = h }
}

// WithRegistry registers the interceptor into r instead of the process-wide registry.
func WithRegistry(r *lazyload.Registry) Option {
	return func(a *App) { a.registry = r }
}

// WithDatabase uses conn instead of opening cfg.Database. The connection is
// still wrapped with tracking and the interceptor.
func WithDatabase(conn types.Interface) Option {
	return func(a *App) { a.rawDB = conn }
}

// WithShutdownTimeout bounds the Shutdown triggered by Run.
func WithShutdownTimeout(d time.Duration) Option {
	return func(a *App) {
		if d > 0 {
			a.shutdownTimeout = d
		}
	}
}

// New builds every enabled component. On error, whatever was already opened
// is released.
func New(cfg *config.Config, log logger.Logger, opts ...Option) (*App, error) {
	a := &App{
		cfg:             cfg,
		log:             log,
		hooks:           lifecycle.Default(),
		signals:         lifecycle.OSSignals{},
		shutdownTimeout: DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}

	log.Info().
		Str("app", cfg.App.Name).
		Str("env", cfg.App.Env).
		Str("version", cfg.App.Version).
		Msg("Starting application")

	if err := newBootstrap(a).run(); err != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()
		if closeErr := a.Shutdown(ctx); closeErr != nil {
			log.Error().Err(closeErr).Msg("Failed to release components after startup error")
		}
		return nil, err
	}
	return a, nil
}

// Interceptor returns the lazy-load interceptor, nil when disabled.
func (a *App) Interceptor() *lazyload.Interceptor { return a.interceptor }

// DB returns the tracked connection, nil when no database is configured.
func (a *App) DB() *database.Connection { return a.db }

// Server returns the debug server, nil when disabled.
func (a *App) Server() *server.Server { return a.server }

// Run serves the debug server and blocks until SIGINT or SIGTERM, ctx is
// cancelled, or the server fails. A signal fires lifecycle.EventSignal; any
// other exit fires lifecycle.EventShutdown. Either event makes the
// interceptor write its final report before components are shut down.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if a.server != nil {
		g.Go(func() error {
			if err := a.server.Start(); err != nil {
				return fmt.Errorf("debug server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		if sig := a.hooks.WaitForSignal(gctx, a.signals, syscall.SIGINT, syscall.SIGTERM); sig != nil {
			a.log.Info().Str("signal", sig.String()).Msg("Shutdown requested via signal")
		} else {
			a.hooks.Fire(lifecycle.EventShutdown)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()
		return a.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Shutdown releases components in reverse start order. It does not write a
// lazy-load report; Run fires the termination hooks first. Only the first
// call has an effect.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownOnce.Do(func() {
		var errs []error

		if a.server != nil {
			if err := a.server.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("debug server: %w", err))
			}
		}
		if a.interceptor != nil {
			a.interceptor.Close()
		}
		if a.db != nil {
			if err := a.db.Close(); err != nil {
				errs = append(errs, fmt.Errorf("database: %w", err))
			}
		}
		for _, closeSink := range a.sinks {
			if err := closeSink(ctx); err != nil {
				errs = append(errs, fmt.Errorf("report sink: %w", err))
			}
		}
		if a.telemetry != nil {
			if err := a.telemetry.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("observability: %w", err))
			}
		}

		a.shutdownErr = errors.Join(errs...)
		if a.shutdownErr != nil {
			a.log.Error().Err(a.shutdownErr).Msg("Application shutdown completed with errors")
			return
		}
		a.log.Info().Msg("Application shutdown complete")
	})
	return a.shutdownErr
}
