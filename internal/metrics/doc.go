// Package metrics provides in-process metrics for the cat-facts service.
//
// It uses a channel-based event pipeline to asynchronously collect:
//   - Request counts, status codes and latencies per route
//   - Call counts, failures, status codes and latencies per upstream
//   - Circuit breaker state per upstream
//   - How often each fallback tier had to serve a response
//
// The collector runs in a dedicated goroutine and folds events without
// blocking the request path. Emit never blocks: when the buffer is full the
// event is dropped.
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	collector.Emit(metrics.MetricEvent{
//		Type:       metrics.EventUpstreamCompleted,
//		Upstream:   "fact",
//		Duration:   150 * time.Millisecond,
//		StatusCode: 200,
//	})
//
//	snapshot := collector.Snapshot()
//
// The collector drains buffered events on shutdown.
package metrics
