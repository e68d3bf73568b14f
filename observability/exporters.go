package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	ProtocolHTTP = "http"
	ProtocolGRPC = "grpc"
)

func (p *provider) traceExporter() (sdktrace.SpanExporter, error) {
	endpoint := p.cfg.Trace.Endpoint
	if endpoint == EndpointStdout {
		return stdouttrace.New(stdouttrace.WithWriter(p.opts.stdout), stdouttrace.WithPrettyPrint())
	}

	ctx := context.Background()
	switch p.cfg.Protocol {
	case ProtocolHTTP:
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
		if p.cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		if len(p.cfg.Headers) > 0 {
			opts = append(opts, otlptracehttp.WithHeaders(p.cfg.Headers))
		}
		return otlptracehttp.New(ctx, opts...)
	case ProtocolGRPC:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
		if p.cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
		}
		if len(p.cfg.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(p.cfg.Headers))
		}
		return otlptracegrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("trace protocol '%s': %w", p.cfg.Protocol, ErrInvalidProtocol)
	}
}

func (p *provider) metricExporter() (sdkmetric.Exporter, error) {
	endpoint := p.cfg.Metrics.Endpoint
	if endpoint == EndpointStdout {
		return stdoutmetric.New(stdoutmetric.WithWriter(p.opts.stdout), stdoutmetric.WithPrettyPrint())
	}

	ctx := context.Background()
	switch p.cfg.Protocol {
	case ProtocolHTTP:
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(endpoint)}
		if p.cfg.Insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		if len(p.cfg.Headers) > 0 {
			opts = append(opts, otlpmetrichttp.WithHeaders(p.cfg.Headers))
		}
		return otlpmetrichttp.New(ctx, opts...)
	case ProtocolGRPC:
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(endpoint)}
		if p.cfg.Insecure {
			opts = append(opts, otlpmetricgrpc.WithTLSCredentials(insecure.NewCredentials()))
		}
		if len(p.cfg.Headers) > 0 {
			opts = append(opts, otlpmetricgrpc.WithHeaders(p.cfg.Headers))
		}
		return otlpmetricgrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("metrics protocol '%s': %w", p.cfg.Protocol, ErrInvalidProtocol)
	}
}
