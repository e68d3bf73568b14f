package app

import (
	"context"
	"fmt"

	"github.com/gaborage/go-bricks-lazyload/config"
	"github.com/gaborage/go-bricks-lazyload/database"
	"github.com/gaborage/go-bricks-lazyload/database/types"
	"github.com/gaborage/go-bricks-lazyload/lazyload"
	"github.com/gaborage/go-bricks-lazyload/observability"
	"github.com/gaborage/go-bricks-lazyload/reportsink"
	"github.com/gaborage/go-bricks-lazyload/server"
)

// bootstrap runs the startup sequence. Each step records what it opened on
// the App so a failing later step can release it.
type bootstrap struct {
	a *App
}

func newBootstrap(a *App) *bootstrap {
	return &bootstrap{a: a}
}

func (b *bootstrap) run() error {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"observability", b.telemetry},
		{"report sinks", b.reportSinks},
		{"lazy-load interceptor", b.lazyLoad},
		{"database", b.database},
		{"debug server", b.debugServer},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return fmt.Errorf("failed to initialize %s: %w", step.name, err)
		}
	}
	return nil
}

func (b *bootstrap) telemetry() error {
	p, err := observability.NewProvider(&b.a.cfg.Observability, b.a.cfg.App, observability.WithLogger(b.a.log))
	if err != nil {
		return err
	}
	b.a.telemetry = p
	return nil
}

func (b *bootstrap) reportSinks() error {
	cfg := &b.a.cfg.Sinks
	service := b.a.cfg.App.Name

	if cfg.AMQP.URL != "" {
		sink, err := reportsink.DialAMQP(&cfg.AMQP, service, b.a.log)
		if err != nil {
			return err
		}
		b.a.sinks = append(b.a.sinks, func(context.Context) error { return sink.Close() })
		b.a.reportSinks = append(b.a.reportSinks, sink)
	}

	if cfg.Mongo.URI != "" {
		sink, err := reportsink.ConnectMongo(context.Background(), &cfg.Mongo, service, b.a.log)
		if err != nil {
			return err
		}
		b.a.sinks = append(b.a.sinks, sink.Close)
		b.a.reportSinks = append(b.a.reportSinks, sink)
	}

	if cfg.Redis.Address != "" {
		sink, err := reportsink.ConnectRedis(&cfg.Redis, service, b.a.log)
		if err != nil {
			return err
		}
		b.a.sinks = append(b.a.sinks, func(context.Context) error { return sink.Close() })
		b.a.reportSinks = append(b.a.reportSinks, sink)
	}
	return nil
}

func (b *bootstrap) lazyLoad() error {
	if !b.a.cfg.LazyLoad.Enabled {
		b.a.log.Info().Msg("Lazy-load detection disabled")
		return nil
	}

	opts := []lazyload.Option{
		lazyload.WithTerminationHooks(b.a.hooks),
		lazyload.WithMeterProvider(b.a.telemetry.MeterProvider()),
		lazyload.WithSinks(b.a.reportSinks...),
	}
	if b.a.registry != nil {
		opts = append(opts, lazyload.WithRegistry(b.a.registry))
	}
	b.a.interceptor = lazyload.NewFromConfig(&b.a.cfg.LazyLoad, b.a.log, opts...)
	return nil
}

func (b *bootstrap) database() error {
	var interceptors []types.CommandInterceptor
	if b.a.interceptor != nil {
		interceptors = append(interceptors, b.a.interceptor)
	}

	if b.a.rawDB != nil {
		b.a.db = database.Wrap(b.a.rawDB, b.a.log, &b.a.cfg.Database, interceptors...)
		return nil
	}
	if !config.IsDatabaseConfigured(&b.a.cfg.Database) {
		b.a.log.Info().Msg("No database configured")
		return nil
	}

	conn, err := database.NewConnection(&b.a.cfg.Database, b.a.log, interceptors...)
	if err != nil {
		return err
	}
	b.a.db = conn
	return nil
}

func (b *bootstrap) debugServer() error {
	if !b.a.cfg.Debug.Enabled {
		return nil
	}

	// A nil *Connection must reach the server as a nil interface.
	var db types.Interface
	if b.a.db != nil {
		db = b.a.db
	}
	b.a.server = server.New(&b.a.cfg.Debug, b.a.log, b.a.interceptor, db)
	if db != nil {
		registerDemoRoutes(b.a.server.Echo(), db)
	}
	return nil
}
