package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned by callers that were refused by an open breaker.
var ErrOpen = errors.New("circuit breaker is open")

type State int

const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Refusing calls
	StateHalfOpen              // Letting trial calls through
)

// ChangeFunc observes state transitions. It runs outside the breaker lock.
type ChangeFunc func(name string, from, to State)

type CircuitBreaker struct {
	mutex            sync.Mutex
	name             string
	state            State
	failures         int
	lastFailure      time.Time
	failureThreshold int
	resetTimeout     time.Duration
	onChange         ChangeFunc
}

func NewCircuitBreaker(threshold int, timeout time.Duration) *CircuitBreaker {
	return newNamedBreaker("", threshold, timeout, nil)
}

func newNamedBreaker(name string, threshold int, timeout time.Duration, onChange ChangeFunc) *CircuitBreaker {
	if threshold < 1 {
		threshold = 1
	}

	return &CircuitBreaker{
		name:             name,
		state:            StateClosed,
		failureThreshold: threshold,
		resetTimeout:     timeout,
		onChange:         onChange,
	}
}

// Allow reports whether a call may proceed. An open breaker whose reset
// timeout has elapsed moves to half-open and lets the call through.
func (cb *CircuitBreaker) Allow() bool {
	cb.mutex.Lock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFailure) < cb.resetTimeout {
			cb.mutex.Unlock()
			return false
		}
		from := cb.setState(StateHalfOpen)
		cb.mutex.Unlock()
		cb.notify(from, StateHalfOpen)
		return true
	default:
		cb.mutex.Unlock()
		return true
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mutex.Lock()

	cb.failures++
	cb.lastFailure = time.Now()

	from := cb.state
	if cb.state == StateHalfOpen || cb.failures >= cb.failureThreshold {
		from = cb.setState(StateOpen)
	}
	to := cb.state
	cb.mutex.Unlock()

	cb.notify(from, to)
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mutex.Lock()

	cb.failures = 0
	from := cb.setState(StateClosed)
	cb.mutex.Unlock()

	cb.notify(from, StateClosed)
}

func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

// setState must be called with the lock held; it returns the previous state.
func (cb *CircuitBreaker) setState(to State) State {
	from := cb.state
	cb.state = to
	return from
}

func (cb *CircuitBreaker) notify(from, to State) {
	if from == to || cb.onChange == nil {
		return
	}
	cb.onChange(cb.name, from, to)
}

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}
