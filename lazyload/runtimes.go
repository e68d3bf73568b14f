package lazyload

import "sync"

// SiteRuntime is the latency history of one call site, in milliseconds and in
// the order the samples were recorded.
type SiteRuntime struct {
	Location string
	Samples  []int64
}

// Count returns the number of deferred loads recorded for the site.
func (s SiteRuntime) Count() int {
	return len(s.Samples)
}

// Total returns the summed latency in milliseconds.
func (s SiteRuntime) Total() int64 {
	var total int64
	for _, v := range s.Samples {
		total += v
	}
	return total
}

// Average returns the mean latency in milliseconds, rounded toward zero.
func (s SiteRuntime) Average() int64 {
	if len(s.Samples) == 0 {
		return 0
	}
	return s.Total() / int64(len(s.Samples))
}

// Mean returns the unrounded mean latency in milliseconds.
func (s SiteRuntime) Mean() float64 {
	if len(s.Samples) == 0 {
		return 0
	}
	return float64(s.Total()) / float64(len(s.Samples))
}

// Runtimes maps call-site descriptions to their latency samples. A single mutex
// guards the whole map; the critical sections only touch small slices.
type Runtimes struct {
	mu    sync.Mutex
	sites map[string][]int64
}

// NewRuntimes returns an empty aggregator.
func NewRuntimes() *Runtimes {
	return &Runtimes{sites: make(map[string][]int64)}
}

// Add appends ms to the samples of location, creating the entry on first use,
// and returns a copy of the samples recorded so far. Negative values are
// recorded as 0.
func (r *Runtimes) Add(location string, ms int64) []int64 {
	if ms < 0 {
		ms = 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	samples := append(r.sites[location], ms)
	r.sites[location] = samples
	return append([]int64(nil), samples...)
}

// Drain returns everything recorded so far and leaves the aggregator empty.
// Concurrent Add calls land either in the returned data or in the next drain,
// never in both. The order of the result is unspecified.
func (r *Runtimes) Drain() []SiteRuntime {
	r.mu.Lock()
	sites := r.sites
	r.sites = make(map[string][]int64)
	r.mu.Unlock()

	out := make([]SiteRuntime, 0, len(sites))
	for location, samples := range sites {
		out = append(out, SiteRuntime{Location: location, Samples: samples})
	}
	return out
}

// Snapshot returns a copy of the current contents without clearing them.
func (r *Runtimes) Snapshot() []SiteRuntime {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]SiteRuntime, 0, len(r.sites))
	for location, samples := range r.sites {
		out = append(out, SiteRuntime{Location: location, Samples: append([]int64(nil), samples...)})
	}
	return out
}

// Get returns a copy of the samples recorded for location.
func (r *Runtimes) Get(location string) ([]int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	samples, ok := r.sites[location]
	if !ok {
		return nil, false
	}
	return append([]int64(nil), samples...), true
}

// Clear discards everything recorded so far.
func (r *Runtimes) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sites = make(map[string][]int64)
}

// Len returns the number of distinct call sites.
func (r *Runtimes) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sites)
}
