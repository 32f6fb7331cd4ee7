package exporters

import (
	"context"
	"sync/atomic"

	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
)

// LogExporter writes finished spans to the application logger at debug
// level. Used when no collector is configured.
type LogExporter struct {
	logger  ectologger.Logger
	stopped atomic.Bool
}

// NewLogExporter creates an exporter that logs spans through logger
func NewLogExporter(logger ectologger.Logger) *LogExporter {
	return &LogExporter{logger: logger}
}

func (e *LogExporter) ExportSpans(ctx context.Context, spans []trace.ReadOnlySpan) error {
	if e.stopped.Load() {
		return nil
	}

	for _, span := range spans {
		fields := map[string]any{
			"span":        span.Name(),
			"trace_id":    span.SpanContext().TraceID().String(),
			"span_id":     span.SpanContext().SpanID().String(),
			"duration_ms": span.EndTime().Sub(span.StartTime()).Milliseconds(),
		}
		if parent := span.Parent(); parent.IsValid() {
			fields["parent_span_id"] = parent.SpanID().String()
		}

		log := e.logger.WithContext(ctx).WithFields(fields)
		if status := span.Status(); status.Code == codes.Error {
			log.WithFields(map[string]any{"status": status.Description}).Warn("Span failed")
			continue
		}
		log.Debug("Span finished")
	}
	return nil
}

// Shutdown stops further exports
func (e *LogExporter) Shutdown(ctx context.Context) error {
	e.stopped.Store(true)
	return nil
}
