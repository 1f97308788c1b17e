package observability

import (
	"context"
	"log/slog"
	"time"
)

// Timer measures one run of an operation and records it as a timing
// under a fixed metric name.
type Timer struct {
	metrics Metrics
	name    string
	start   time.Time
}

// StartTimer starts timing. A nil metrics records nothing.
func StartTimer(metrics Metrics, name string) *Timer {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	return &Timer{metrics: metrics, name: name, start: time.Now()}
}

// Stop records the elapsed time with tags and returns it.
func (t *Timer) Stop(tags ...Tag) time.Duration {
	elapsed := time.Since(t.start)
	t.metrics.Timing(t.name, elapsed, tags...)
	return elapsed
}

// TimeOperation runs fn and records its duration, a call count and, when
// fn fails, an error count, all tagged with the operation name. Failures
// are logged at error level when logger is set.
func TimeOperation[R any](ctx context.Context, logger *slog.Logger, metrics Metrics, operation string, fn func(context.Context) (R, error)) (R, error) {
	timer := StartTimer(metrics, MetricOperationDuration)
	result, err := fn(ctx)

	tag := T("operation", operation)
	elapsed := timer.Stop(tag)
	timer.metrics.Counter(MetricOperationTotal, 1, tag)
	if err != nil {
		timer.metrics.Counter(MetricOperationErrors, 1, tag)
		if logger != nil {
			logger.Error("operation failed",
				"operation", operation,
				"duration_ms", elapsed.Milliseconds(),
				"error", err,
			)
		}
	}
	return result, err
}
