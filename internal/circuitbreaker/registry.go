package circuitbreaker

import (
	"sync"
	"time"
)

// Registry hands out one breaker per upstream name.
type Registry struct {
	mutex     sync.RWMutex
	breakers  map[string]*CircuitBreaker
	threshold int
	timeout   time.Duration
	onChange  ChangeFunc
}

func NewRegistry(threshold int, timeout time.Duration) *Registry {
	return &Registry{
		breakers:  make(map[string]*CircuitBreaker),
		threshold: threshold,
		timeout:   timeout,
	}
}

// OnStateChange installs fn on every breaker created afterwards.
func (r *Registry) OnStateChange(fn ChangeFunc) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.onChange = fn
}

func (r *Registry) GetBreaker(name string) *CircuitBreaker {
	r.mutex.RLock()
	cb, exists := r.breakers[name]
	r.mutex.RUnlock()

	if exists {
		return cb
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	// Double-check: another goroutine may have created it
	if cb, exists = r.breakers[name]; exists {
		return cb
	}

	cb = newNamedBreaker(name, r.threshold, r.timeout, r.onChange)
	r.breakers[name] = cb
	return cb
}

// Stats returns the current state of every breaker handed out so far.
func (r *Registry) Stats() map[string]State {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stats := make(map[string]State, len(r.breakers))
	for name, cb := range r.breakers {
		stats[name] = cb.State()
	}
	return stats
}
