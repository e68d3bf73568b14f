package lazyload

import "sync"

// Registry holds at most one registered Interceptor.
type Registry struct {
	mu      sync.Mutex
	current *Interceptor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry used when New is called
// without WithRegistry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Current returns the registered interceptor, if any.
func (r *Registry) Current() (*Interceptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current, r.current != nil
}

// Reset closes the registered interceptor, leaving the registry empty. Tests
// use it to isolate the process-wide registry.
func (r *Registry) Reset() {
	r.mu.Lock()
	cur := r.current
	r.mu.Unlock()

	if cur != nil {
		cur.Close()
	}

	r.mu.Lock()
	if r.current == cur {
		r.current = nil
	}
	r.mu.Unlock()
}

func (r *Registry) register(i *Interceptor) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil {
		return false
	}
	r.current = i
	return true
}

func (r *Registry) unregister(i *Interceptor) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != i {
		return false
	}
	r.current = nil
	return true
}
