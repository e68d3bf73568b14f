package lazyload

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "go-bricks-lazyload/lazyload"

	metricDetected = "lazyload.detected"
	metricDuration = "lazyload.duration"
	metricSites    = "lazyload.sites.pending"

	attrEntity   = "lazyload.entity"
	attrProperty = "lazyload.property"
	attrFailed   = "lazyload.failed"
)

type instruments struct {
	detected     metric.Int64Counter
	duration     metric.Float64Histogram
	registration metric.Registration
}

// newInstruments creates the lazy-load instruments on provider. Creation
// errors leave the affected instrument nil; recording then becomes a no-op.
func newInstruments(provider metric.MeterProvider, runtimes *Runtimes) *instruments {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterName)
	in := &instruments{}

	if c, err := meter.Int64Counter(metricDetected,
		metric.WithDescription("Number of deferred navigation-property loads"),
		metric.WithUnit("{load}"),
	); err == nil {
		in.detected = c
	}

	if h, err := meter.Float64Histogram(metricDuration,
		metric.WithDescription("Duration of deferred navigation-property loads"),
		metric.WithUnit("ms"),
	); err == nil {
		in.duration = h
	}

	if g, err := meter.Int64ObservableGauge(metricSites,
		metric.WithDescription("Call sites waiting for the next report"),
		metric.WithUnit("{site}"),
	); err == nil {
		if reg, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
			o.ObserveInt64(g, int64(runtimes.Len()))
			return nil
		}, g); err == nil {
			in.registration = reg
		}
	}

	return in
}

func (in *instruments) record(ctx context.Context, site CallSite, elapsed time.Duration, failed bool) {
	attrs := metric.WithAttributes(
		attribute.String(attrEntity, site.Entity),
		attribute.String(attrProperty, site.Property),
		attribute.Bool(attrFailed, failed),
	)
	if in.detected != nil {
		in.detected.Add(ctx, 1, attrs)
	}
	if in.duration != nil {
		in.duration.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
	}
}

func (in *instruments) close() {
	if in.registration != nil {
		_ = in.registration.Unregister()
	}
}
