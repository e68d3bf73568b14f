// Package lazyload detects deferred navigation-property loads issued through
// the tracked database connection and aggregates their latency per call site.
//
// An Interceptor is attached to a tracking.Connection as a
// types.CommandInterceptor. When a statement starts it inspects the calling
// goroutine's stack; if a proxy getter is on it, the statement is a lazy load
// and its duration is recorded under the getter's caller location. Recorded
// samples are summarized by a Reporter on a timer and when the process ends.
package lazyload

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/gaborage/go-bricks-lazyload/config"
	"github.com/gaborage/go-bricks-lazyload/database/types"
	"github.com/gaborage/go-bricks-lazyload/lifecycle"
	"github.com/gaborage/go-bricks-lazyload/logger"
)

// DefaultFlushInterval is the period of the summary report.
const DefaultFlushInterval = config.DefaultFlushInterval

type options struct {
	flushInterval     time.Duration
	logDuringLazyLoad bool
	registry          *Registry
	classifier        *Classifier
	hooks             *lifecycle.Hooks
	meterProvider     metric.MeterProvider
	sinks             []Sink
}

// Option configures an Interceptor.
type Option func(*options)

// WithFlushInterval sets the summary period. Zero or negative disables the
// periodic report.
func WithFlushInterval(d time.Duration) Option {
	return func(o *options) { o.flushInterval = d }
}

// WithLogDuringLazyLoad logs one line per detected load with running totals.
func WithLogDuringLazyLoad(enabled bool) Option {
	return func(o *options) { o.logDuringLazyLoad = enabled }
}

// WithRegistry registers the interceptor into r instead of DefaultRegistry.
func WithRegistry(r *Registry) Option {
	return func(o *options) {
		if r != nil {
			o.registry = r
		}
	}
}

// WithClassifier replaces the default call-site classifier.
func WithClassifier(c *Classifier) Option {
	return func(o *options) {
		if c != nil {
			o.classifier = c
		}
	}
}

// WithTerminationHooks subscribes the final flush to h instead of lifecycle.Default.
func WithTerminationHooks(h *lifecycle.Hooks) Option {
	return func(o *options) {
		if h != nil {
			o.hooks = h
		}
	}
}

// WithMeterProvider records metrics on mp instead of the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// WithSinks publishes every non-empty flushed report to sinks after it is logged.
func WithSinks(sinks ...Sink) Option {
	return func(o *options) {
		for _, s := range sinks {
			if s != nil {
				o.sinks = append(o.sinks, s)
			}
		}
	}
}

type inFlight struct {
	site    CallSite
	started time.Time
}

// Interceptor is the lazy-load detector. It is safe for concurrent use by any
// number of statement goroutines.
type Interceptor struct {
	id                string
	log               logger.Logger
	runtimes          *Runtimes
	classifier        *Classifier
	reporter          *Reporter
	logDuringLazyLoad bool
	metrics           *instruments
	key               *types.StateKey[inFlight]

	registry   *Registry
	hooks      *lifecycle.Hooks
	hookID     lifecycle.Registration
	registered bool

	closeOnce sync.Once
}

var _ types.CommandInterceptor = (*Interceptor)(nil)

// New creates an interceptor and arms its report timer.
//
// The first interceptor created against a registry becomes its registered
// instance and subscribes a final flush to the termination hooks. Further
// interceptors against the same registry still detect and report on their own
// timer, but are not reachable through the registry and are not flushed on
// termination.
func New(log logger.Logger, opts ...Option) *Interceptor {
	o := options{flushInterval: DefaultFlushInterval}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = DefaultRegistry()
	}
	if o.classifier == nil {
		o.classifier = NewClassifier()
	}
	if o.hooks == nil {
		o.hooks = lifecycle.Default()
	}

	id := uuid.NewString()
	runtimes := NewRuntimes()
	i := &Interceptor{
		id:                id,
		log:               log.WithFields(map[string]any{"component": "lazyload", "interceptor_id": id}),
		runtimes:          runtimes,
		classifier:        o.classifier,
		logDuringLazyLoad: o.logDuringLazyLoad,
		metrics:           newInstruments(o.meterProvider, runtimes),
		key:               types.NewStateKey[inFlight]("lazyload.inflight"),
		registry:          o.registry,
		hooks:             o.hooks,
	}
	i.reporter = NewReporter(runtimes, i.log, o.flushInterval, o.sinks...)

	if o.registry.register(i) {
		i.registered = true
		i.hookID = o.hooks.Register("lazyload.flush."+id, func(lifecycle.Event) {
			i.reporter.Flush()
		})
		i.log.Info().Dur("flush_interval", o.flushInterval).Msg("Registered lazy-load interceptor")
	} else {
		i.log.Warn().Msg("A lazy-load interceptor is already registered; this instance runs unregistered")
	}

	i.reporter.Start()
	return i
}

// NewFromConfig builds an interceptor from the lazyload configuration section.
// Options passed explicitly take precedence over the configuration.
func NewFromConfig(cfg *config.LazyLoadConfig, log logger.Logger, opts ...Option) *Interceptor {
	if cfg == nil {
		return New(log, opts...)
	}

	var classifierOpts []ClassifierOption
	if cfg.ProxyPackage != "" {
		classifierOpts = append(classifierOpts, WithProxyMatcher(InPackage(cfg.ProxyPackage)))
	}
	if cfg.GetterPrefix != "" {
		classifierOpts = append(classifierOpts, WithGetterPrefix(cfg.GetterPrefix))
	}

	base := []Option{
		WithFlushInterval(cfg.FlushInterval),
		WithLogDuringLazyLoad(cfg.LogDuringLazyLoad),
		WithClassifier(NewClassifier(classifierOpts...)),
	}
	return New(log, append(base, opts...)...)
}

// ID returns the instance identifier attached to every log line of this interceptor.
func (i *Interceptor) ID() string {
	return i.id
}

// Runtimes exposes the aggregator for inspection.
func (i *Interceptor) Runtimes() *Runtimes {
	return i.runtimes
}

// Reporter exposes the summary reporter, mainly to flush on demand.
func (i *Interceptor) Reporter() *Reporter {
	return i.reporter
}

// Registered reports whether this instance is (or was, before Close) the
// registered instance of its registry.
func (i *Interceptor) Registered() bool {
	return i.registered
}

// ReaderExecuting classifies the statement by inspecting the calling stack.
func (i *Interceptor) ReaderExecuting(_ context.Context, _ *types.Command, ic *types.InterceptionContext) {
	site, ok := i.classifier.Classify(CaptureStack(1))
	if !ok {
		return
	}
	types.SetState(ic, i.key, inFlight{site: site, started: time.Now()})
}

// ReaderExecuted records the duration of a statement classified as a lazy load.
func (i *Interceptor) ReaderExecuted(ctx context.Context, _ *types.Command, ic *types.InterceptionContext) {
	tok, ok := types.TakeState(ic, i.key)
	if !ok {
		return
	}

	elapsed := time.Since(tok.started)
	location := tok.site.String()
	samples := i.runtimes.Add(location, elapsed.Milliseconds())

	logger.IncrementLazyLoadCounter(ctx)
	i.metrics.record(ctx, tok.site, elapsed, ic.Err != nil)

	if i.logDuringLazyLoad {
		site := SiteRuntime{Location: location, Samples: samples}
		i.log.Info().
			Str("site", location).
			Int64("took_ms", elapsed.Milliseconds()).
			Int("count", site.Count()).
			Int64("total_ms", site.Total()).
			Float64("avg_ms", site.Mean()).
			Msgf("%s - took %d ms - total so far of %d times with %d ms for average of %s ms",
				location, elapsed.Milliseconds(), site.Count(), site.Total(), formatMillis(site.Mean()))
	}
}

// Close stops the report timer. If this is the registered instance it also
// unregisters itself and drops its termination hook. Close does not flush and
// does not detach the interceptor from connections. It is idempotent.
func (i *Interceptor) Close() {
	i.closeOnce.Do(func() {
		i.reporter.Stop()
		i.metrics.close()

		if !i.registered || !i.registry.unregister(i) {
			return
		}
		i.hooks.Unregister(i.hookID)
		i.log.Info().Msg("Unregistered lazy-load interceptor")
	})
}

// formatMillis renders a fractional millisecond value with the fewest digits
// that round-trip, so whole values print without a decimal point.
func formatMillis(ms float64) string {
	return strconv.FormatFloat(ms, 'f', -1, 64)
}
