package observability

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

var (
	globalMetrics Metrics
	metricsMu     sync.RWMutex
)

// Metrics records translation and streaming activity.
type Metrics interface {
	RecordMessage(kind string)
	RecordDropped(reason string)
	RecordDelta(deltaType string)
	RecordStream(duration time.Duration, state string, err error)
	RecordHTTPRequest(method, route string, status int, duration time.Duration)
	Handler() http.Handler
}

// PrometheusMetrics implements Metrics on the OTel SDK. Methods are no-ops
// on a nil or disabled receiver.
type PrometheusMetrics struct {
	provider *sdkmetric.MeterProvider
	handler  http.Handler

	messagesTotal  metric.Int64Counter
	droppedTotal   metric.Int64Counter
	deltasTotal    metric.Int64Counter
	streamDuration metric.Float64Histogram
	streamErrors   metric.Int64Counter
	httpDuration   metric.Float64Histogram
}

var _ Metrics = (*PrometheusMetrics)(nil)

func (m *PrometheusMetrics) RecordMessage(kind string) {
	if m == nil || m.messagesTotal == nil {
		return
	}
	m.messagesTotal.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(AttrKind, kind)))
}

func (m *PrometheusMetrics) RecordDropped(reason string) {
	if m == nil || m.droppedTotal == nil {
		return
	}
	m.droppedTotal.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(AttrReason, reason)))
}

func (m *PrometheusMetrics) RecordDelta(deltaType string) {
	if m == nil || m.deltasTotal == nil {
		return
	}
	m.deltasTotal.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(AttrDeltaType, deltaType)))
}

func (m *PrometheusMetrics) RecordStream(duration time.Duration, state string, err error) {
	if m == nil || m.streamDuration == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String(AttrTaskState, state))
	m.streamDuration.Record(context.Background(), duration.Seconds(), attrs)

	if err != nil && m.streamErrors != nil {
		m.streamErrors.Add(context.Background(), 1, attrs)
	}
}

func (m *PrometheusMetrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if m == nil || m.httpDuration == nil {
		return
	}
	m.httpDuration.Record(context.Background(), duration.Seconds(), metric.WithAttributes(
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrHTTPRoute, route),
		attribute.String(AttrHTTPStatus, strconv.Itoa(status)),
	))
}

// Shutdown flushes and stops the meter provider.
func (m *PrometheusMetrics) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

func SetGlobalMetrics(m Metrics) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = m
}

// GetGlobalMetrics returns the installed Metrics, or NoopMetrics.
func GetGlobalMetrics() Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	if globalMetrics == nil {
		return NoopMetrics{}
	}
	return globalMetrics
}
