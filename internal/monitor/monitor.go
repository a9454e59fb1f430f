package monitor

import (
	"context"
	"log/slog"

	"github.com/nvallejo/weft/internal/logging"
)

// MetricKind classifies a recorded metric.
type MetricKind string

const (
	MetricCounter MetricKind = "counter"
	MetricGauge   MetricKind = "gauge"
	MetricTimer   MetricKind = "timer"
)

// Monitor is the observability collaborator called by node execution and the
// dispatcher on every state transition. Implementations must be best-effort:
// a failing monitor never aborts execution, so neither method returns an error.
type Monitor interface {
	Log(ctx context.Context, level slog.Level, channel, message string, fields map[string]any)
	RecordMetric(ctx context.Context, name string, kind MetricKind, value float64, tags map[string]string)
}

// SlogMonitor implements Monitor on top of a slog.Logger. Metrics are
// emitted as debug-level log records; a metrics backend can replace this
// implementation without touching callers.
type SlogMonitor struct {
	logger *slog.Logger
}

// NewSlogMonitor creates a Monitor backed by the given logger.
// A nil logger falls back to slog.Default().
func NewSlogMonitor(logger *slog.Logger) *SlogMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogMonitor{logger: logger}
}

func (m *SlogMonitor) Log(ctx context.Context, level slog.Level, channel, message string, fields map[string]any) {
	logger := logging.LogWith(ctx, m.logger).With(slog.String("channel", channel))
	attrs := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		attrs = append(attrs, k, v)
	}
	logger.Log(ctx, level, message, attrs...)
}

func (m *SlogMonitor) RecordMetric(ctx context.Context, name string, kind MetricKind, value float64, tags map[string]string) {
	logger := logging.LogWith(ctx, m.logger)
	attrs := []any{
		slog.String("metric", name),
		slog.String("kind", string(kind)),
		slog.Float64("value", value),
	}
	for k, v := range tags {
		attrs = append(attrs, slog.String(k, v))
	}
	logger.Log(ctx, slog.LevelDebug, "metric", attrs...)
}

// Nop is a Monitor that discards everything. Useful in tests and as a
// default when observability is disabled.
type Nop struct{}

func (Nop) Log(ctx context.Context, level slog.Level, channel, message string, fields map[string]any) {
}

func (Nop) RecordMetric(ctx context.Context, name string, kind MetricKind, value float64, tags map[string]string) {
}

var (
	_ Monitor = (*SlogMonitor)(nil)
	_ Monitor = Nop{}
)
