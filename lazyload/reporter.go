package lazyload

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gaborage/go-bricks-lazyload/logger"
)

// Report is the content of one flush, sites ordered by descending total.
type Report struct {
	Sites   []SiteRuntime
	Loads   int
	TotalMs int64
}

// SinkTimeout bounds one Sink.Publish call.
const SinkTimeout = 5 * time.Second

// Sink receives flushed reports in addition to the log.
type Sink interface {
	Publish(ctx context.Context, report Report) error
}

// Reporter drains a Runtimes periodically and writes the summary to a logger.
type Reporter struct {
	runtimes *Runtimes
	log      logger.Logger
	interval time.Duration
	sinks    []Sink

	mu     sync.Mutex
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewReporter creates a reporter; call Start to arm the timer.
func NewReporter(runtimes *Runtimes, log logger.Logger, interval time.Duration, sinks ...Sink) *Reporter {
	return &Reporter{runtimes: runtimes, log: log, interval: interval, sinks: sinks}
}

// Start arms the periodic flush. A non-positive interval leaves the reporter
// disarmed; Flush can still be called directly. Starting twice is a no-op.
func (r *Reporter) Start() {
	if r.interval <= 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopCh != nil {
		return
	}
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})

	go r.loop(r.interval, r.stopCh, r.doneCh)
}

// Stop disarms the timer and waits for an in-progress periodic flush to
// return. It is safe to call any number of times.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if r.stopCh == nil {
		r.mu.Unlock()
		return
	}
	close(r.stopCh)
	done := r.doneCh
	r.stopCh, r.doneCh = nil, nil
	r.mu.Unlock()

	<-done
}

// Running reports whether the periodic timer is armed.
func (r *Reporter) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopCh != nil
}

func (r *Reporter) loop(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Flush()
		case <-stop:
			return
		}
	}
}

// Flush drains everything recorded so far and logs it. Nothing is logged when
// there is nothing to report.
func (r *Reporter) Flush() Report {
	report := Summarize(r.runtimes.Drain())
	if len(report.Sites) == 0 {
		return report
	}

	r.log.Info().
		Int("locations", len(report.Sites)).
		Int("lazy_loads", report.Loads).
		Int64("total_ms", report.TotalMs).
		Msgf("%d locations discovered performing %d lazy loads for total of %d ms",
			len(report.Sites), report.Loads, report.TotalMs)

	for _, site := range report.Sites {
		r.log.Info().
			Str("site", site.Location).
			Int("count", site.Count()).
			Int64("total_ms", site.Total()).
			Int64("avg_ms", site.Average()).
			Msgf("%s - happened %d times for a total of %d ms with average of %d ms",
				site.Location, site.Count(), site.Total(), site.Average())
	}

	r.publish(report)
	return report
}

// publish hands report to every sink. A failing sink is logged and skipped;
// the samples are already drained and are not retried.
func (r *Reporter) publish(report Report) {
	for _, sink := range r.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), SinkTimeout)
		if err := sink.Publish(ctx, report); err != nil {
			r.log.Warn().Err(err).Msg("Failed to publish lazy-load report")
		}
		cancel()
	}
}

// Summarize totals sites and orders them by descending total latency, ties
// broken by location. sites is sorted in place.
func Summarize(sites []SiteRuntime) Report {
	report := Report{Sites: sites}
	for _, s := range sites {
		report.Loads += s.Count()
		report.TotalMs += s.Total()
	}
	sort.SliceStable(report.Sites, func(i, j int) bool {
		ti, tj := report.Sites[i].Total(), report.Sites[j].Total()
		if ti != tj {
			return ti > tj
		}
		return report.Sites[i].Location < report.Sites[j].Location
	})
	return report
}
