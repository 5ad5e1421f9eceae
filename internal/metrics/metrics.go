package metrics

import (
	"sort"
	"sync"
	"time"
)

const maxSamples = 1000

type Metrics struct {
	mutex       sync.RWMutex
	routes      map[string]*series
	upstreams   map[string]*series
	breakerOpen map[string]bool
	fallbacks   map[string]int64
	startTime   time.Time
}

type Snapshot struct {
	TotalRequests int64                      `json:"total_requests"`
	Uptime        time.Duration              `json:"uptime"`
	Routes        map[string]RouteMetrics    `json:"routes"`
	Upstreams     map[string]UpstreamMetrics `json:"upstreams"`
	Fallbacks     map[string]int64           `json:"fallbacks"`
}

type RouteMetrics struct {
	Requests    int64         `json:"requests"`
	AvgResponse time.Duration `json:"avg_response"`
	P50Response time.Duration `json:"p50_response"`
	P95Response time.Duration `json:"p95_response"`
	P99Response time.Duration `json:"p99_response"`
	StatusCodes map[int]int64 `json:"status_codes"`
}

type UpstreamMetrics struct {
	Calls       int64         `json:"calls"`
	Failures    int64         `json:"failures"`
	BreakerOpen bool          `json:"breaker_open"`
	AvgResponse time.Duration `json:"avg_response"`
	P50Response time.Duration `json:"p50_response"`
	P95Response time.Duration `json:"p95_response"`
	P99Response time.Duration `json:"p99_response"`
	StatusCodes map[int]int64 `json:"status_codes"`
}

// series keeps the counters and the most recent latencies of one route or
// upstream.
type series struct {
	count       int64
	failures    int64
	durations   []time.Duration
	statusCodes map[int]int64
}

func (s *series) record(duration time.Duration, statusCode int, failed bool) {
	s.count++
	if failed {
		s.failures++
	}

	s.durations = append(s.durations, duration)
	if len(s.durations) > maxSamples {
		s.durations = s.durations[1:]
	}

	// 0 means the call never produced a response
	if statusCode != 0 {
		if s.statusCodes == nil {
			s.statusCodes = make(map[int]int64)
		}
		s.statusCodes[statusCode]++
	}
}

func (s *series) latencies() (avg, p50, p95, p99 time.Duration) {
	if len(s.durations) == 0 {
		return 0, 0, 0, 0
	}

	sorted := make([]time.Duration, len(s.durations))
	copy(sorted, s.durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	return average(sorted), percentile(sorted, 0.50), percentile(sorted, 0.95), percentile(sorted, 0.99)
}

func (s *series) statusCopy() map[int]int64 {
	out := make(map[int]int64, len(s.statusCodes))
	for code, n := range s.statusCodes {
		out[code] = n
	}
	return out
}

func seriesFor(m map[string]*series, key string) *series {
	s, ok := m[key]
	if !ok {
		s = &series{}
		m[key] = s
	}
	return s
}

func (m *Metrics) RecordRequest(route string, duration time.Duration, statusCode int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	seriesFor(m.routes, route).record(duration, statusCode, statusCode >= 500)
}

func (m *Metrics) RecordUpstreamCall(upstream string, duration time.Duration, statusCode int, failed bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	seriesFor(m.upstreams, upstream).record(duration, statusCode, failed)
}

func (m *Metrics) RecordFallback(tier string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.fallbacks[tier]++
}

func (m *Metrics) UpdateBreakerState(upstream string, open bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.breakerOpen[upstream] = open
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		Uptime:    time.Since(m.startTime),
		Routes:    make(map[string]RouteMetrics, len(m.routes)),
		Upstreams: make(map[string]UpstreamMetrics),
		Fallbacks: make(map[string]int64, len(m.fallbacks)),
	}

	for route, s := range m.routes {
		snap.TotalRequests += s.count

		rm := RouteMetrics{
			Requests:    s.count,
			StatusCodes: s.statusCopy(),
		}
		rm.AvgResponse, rm.P50Response, rm.P95Response, rm.P99Response = s.latencies()
		snap.Routes[route] = rm
	}

	// An upstream may have a breaker state before its first completed call
	allUpstreams := make(map[string]bool)
	for name := range m.upstreams {
		allUpstreams[name] = true
	}
	for name := range m.breakerOpen {
		allUpstreams[name] = true
	}

	for name := range allUpstreams {
		um := UpstreamMetrics{
			BreakerOpen: m.breakerOpen[name],
			StatusCodes: map[int]int64{},
		}
		if s, ok := m.upstreams[name]; ok {
			um.Calls = s.count
			um.Failures = s.failures
			um.StatusCodes = s.statusCopy()
			um.AvgResponse, um.P50Response, um.P95Response, um.P99Response = s.latencies()
		}
		snap.Upstreams[name] = um
	}

	for tier, n := range m.fallbacks {
		snap.Fallbacks[tier] = n
	}

	return snap
}

func NewMetrics() *Metrics {
	return &Metrics{
		routes:      make(map[string]*series),
		upstreams:   make(map[string]*series),
		breakerOpen: make(map[string]bool),
		fallbacks:   make(map[string]int64),
		startTime:   time.Now(),
	}
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
