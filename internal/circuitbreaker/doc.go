// Package circuitbreaker implements the circuit breaker pattern for outbound
// calls to third-party upstreams.
//
// A breaker stops the service from waiting on an upstream that keeps failing.
// It has three states:
//
//   - CLOSED: normal operation, calls pass through
//   - OPEN: upstream failing, calls are refused with ErrOpen
//   - HALF-OPEN: reset timeout elapsed, trial calls are let through
//
// A refused call is just another failure to the caller, so the fact and
// image handlers fall through to their next tier without waiting for a
// timeout.
//
// Usage:
//
//	registry := circuitbreaker.NewRegistry(5, 30*time.Second)
//	cb := registry.GetBreaker("catalog")
//	if !cb.Allow() {
//	    return circuitbreaker.ErrOpen
//	}
//	if err := call(); err != nil {
//	    cb.RecordFailure()
//	} else {
//	    cb.RecordSuccess()
//	}
package circuitbreaker
