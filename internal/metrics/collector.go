package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventRequestServed     EventType = "request_served"
	EventUpstreamCompleted EventType = "upstream_completed"
	EventFallbackUsed      EventType = "fallback_used"
	EventBreakerChanged    EventType = "breaker_changed"
)

type MetricEvent struct {
	Type       EventType
	Timestamp  time.Time
	Route      string
	Upstream   string
	Tier       string
	Duration   time.Duration
	StatusCode int
	Failed     bool
	Open       bool
}

type Collector struct {
	eventCh chan MetricEvent
	metrics *Metrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan MetricEvent, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

func (c *Collector) EventChannel() chan<- MetricEvent {
	return c.eventCh
}

// Emit queues event without blocking. It is safe to call on a nil Collector.
func (c *Collector) Emit(event MetricEvent) {
	if c == nil {
		return
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case c.eventCh <- event:
	default:
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Info("Metrics collector started")
	defer c.logger.Info("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			// Drain remaining events before shutdown
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventRequestServed:
		c.metrics.RecordRequest(event.Route, event.Duration, event.StatusCode)

	case EventUpstreamCompleted:
		c.metrics.RecordUpstreamCall(event.Upstream, event.Duration, event.StatusCode, event.Failed)

	case EventFallbackUsed:
		c.metrics.RecordFallback(event.Tier)

	case EventBreakerChanged:
		c.metrics.UpdateBreakerState(event.Upstream, event.Open)
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}
