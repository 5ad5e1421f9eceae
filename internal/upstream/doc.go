// Package upstream implements the outbound side of the service: one Client
// per third-party API, each with a per-call timeout, a bounded body read, a
// circuit breaker and metric events for every completed call.
//
// Bodies are always fully read and closed before a call returns, so callers
// never hold a connection past the call that opened it.
package upstream
