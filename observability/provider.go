// Package observability installs the OpenTelemetry trace and meter providers
// that carry database spans and lazy-load metrics to stdout or an OTLP
// collector.
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.32.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/gaborage/go-bricks-lazyload/config"
	"github.com/gaborage/go-bricks-lazyload/logger"
)

// EndpointStdout selects the stdout exporters.
const EndpointStdout = "stdout"

// Provider owns the SDK providers and their exporters.
type Provider interface {
	TracerProvider() trace.TracerProvider
	MeterProvider() metric.MeterProvider

	// Shutdown flushes pending telemetry and releases exporters.
	Shutdown(ctx context.Context) error
	ForceFlush(ctx context.Context) error
}

// Option customizes NewProvider.
type Option func(*options)

type options struct {
	stdout  io.Writer
	globals bool
	log     logger.Logger
}

// WithStdoutWriter redirects the stdout exporters, mostly for tests.
func WithStdoutWriter(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.stdout = w
		}
	}
}

// WithoutGlobals keeps the providers out of the otel globals.
func WithoutGlobals() Option {
	return func(o *options) { o.globals = false }
}

// WithLogger reports provider setup through log.
func WithLogger(log logger.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

type provider struct {
	cfg  config.ObservabilityConfig
	app  config.AppConfig
	opts options

	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	mu             sync.Mutex
}

// NewProvider builds providers for the enabled signals. When cfg.Enabled is
// false a no-op provider is returned and the globals are left alone.
func NewProvider(cfg *config.ObservabilityConfig, app config.AppConfig, opts ...Option) (Provider, error) {
	o := options{stdout: os.Stdout, globals: true, log: logger.New("disabled", false)}
	for _, opt := range opts {
		opt(&o)
	}

	if cfg == nil || !cfg.Enabled {
		return noopProvider{}, nil
	}
	if app.Name == "" {
		return nil, ErrMissingServiceName
	}

	p := &provider{cfg: *cfg, app: app, opts: o}

	res, err := p.resource()
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	if cfg.Trace.Enabled {
		if err := p.initTracing(res); err != nil {
			return nil, fmt.Errorf("failed to initialize trace provider: %w", err)
		}
	}
	if cfg.Metrics.Enabled {
		if err := p.initMetrics(res); err != nil {
			p.shutdownTracing()
			return nil, fmt.Errorf("failed to initialize meter provider: %w", err)
		}
	}

	if o.globals {
		if p.tracerProvider != nil {
			otel.SetTracerProvider(p.tracerProvider)
		}
		if p.meterProvider != nil {
			otel.SetMeterProvider(p.meterProvider)
		}
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))
	}

	o.log.Info().
		Str("protocol", cfg.Protocol).
		Bool("traces", p.tracerProvider != nil).
		Bool("metrics", p.meterProvider != nil).
		Msg("Observability provider initialized")

	return p, nil
}

func (p *provider) resource() (*resource.Resource, error) {
	custom, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(p.app.Name),
			semconv.ServiceVersion(p.app.Version),
			semconv.DeploymentEnvironmentName(p.app.Env),
		),
	)
	if err != nil {
		return nil, err
	}
	return resource.Merge(resource.Default(), custom)
}

func (p *provider) initTracing(res *resource.Resource) error {
	exporter, err := p.traceExporter()
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	p.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(p.cfg.Trace.SampleRate))),
	)
	return nil
}

func (p *provider) initMetrics(res *resource.Resource) error {
	exporter, err := p.metricExporter()
	if err != nil {
		return fmt.Errorf("failed to create metric exporter: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if p.cfg.Metrics.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(p.cfg.Metrics.Interval))
	}

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
	)
	return nil
}

func (p *provider) shutdownTracing() {
	if p.tracerProvider == nil {
		return
	}
	if err := p.tracerProvider.Shutdown(context.Background()); err != nil {
		p.opts.log.Warn().Err(err).Msg("Failed to shut down trace provider after setup error")
	}
}

// TracerProvider returns the SDK tracer provider, or a no-op one when traces are off.
func (p *provider) TracerProvider() trace.TracerProvider {
	if p.tracerProvider == nil {
		return tracenoop.NewTracerProvider()
	}
	return p.tracerProvider
}

// MeterProvider returns the SDK meter provider, or a no-op one when metrics are off.
func (p *provider) MeterProvider() metric.MeterProvider {
	if p.meterProvider == nil {
		return metricnoop.NewMeterProvider()
	}
	return p.meterProvider
}

func (p *provider) Shutdown(ctx context.Context) error {
	return p.each(ctx, "shutdown",
		func(ctx context.Context) error { return p.tracerProvider.Shutdown(ctx) },
		func(ctx context.Context) error { return p.meterProvider.Shutdown(ctx) },
	)
}

func (p *provider) ForceFlush(ctx context.Context) error {
	return p.each(ctx, "flush",
		func(ctx context.Context) error { return p.tracerProvider.ForceFlush(ctx) },
		func(ctx context.Context) error { return p.meterProvider.ForceFlush(ctx) },
	)
}

// each runs the trace then the metric step, skipping providers that were not built.
func (p *provider) each(ctx context.Context, op string, traceFn, metricFn func(context.Context) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.tracerProvider != nil {
		if err := traceFn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("trace provider %s: %w", op, err))
		}
	}
	if p.meterProvider != nil {
		if err := metricFn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider %s: %w", op, err))
		}
	}
	return errors.Join(errs...)
}
