package observability

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopTracer returns a tracer whose spans are never recorded.
func NoopTracer(name string) trace.Tracer {
	return noop.NewTracerProvider().Tracer(name)
}

// NoopMetrics discards everything. Use it when metrics are disabled.
type NoopMetrics struct{}

var _ Metrics = NoopMetrics{}

func (NoopMetrics) RecordMessage(_ string)                                  {}
func (NoopMetrics) RecordDropped(_ string)                                  {}
func (NoopMetrics) RecordDelta(_ string)                                    {}
func (NoopMetrics) RecordStream(_ time.Duration, _ string, _ error)         {}
func (NoopMetrics) RecordHTTPRequest(_, _ string, _ int, _ time.Duration) {}

// Handler returns 404 for every request.
func (NoopMetrics) Handler() http.Handler {
	return http.NotFoundHandler()
}

// OrNoop returns m, or NoopMetrics when m is nil.
func OrNoop(m Metrics) Metrics {
	if m == nil {
		return NoopMetrics{}
	}
	return m
}
