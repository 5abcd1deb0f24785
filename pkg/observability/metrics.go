package observability

import (
	"fmt"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsConfig configures Prometheus metrics collection.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
}

// SetDefaults fills unset fields.
func (c *MetricsConfig) SetDefaults() {
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
}

// InitMetrics builds the OTel meter provider backed by a private Prometheus
// registry. Disabled config yields an inert PrometheusMetrics.
func InitMetrics(cfg MetricsConfig) (*PrometheusMetrics, error) {
	if !cfg.Enabled {
		return &PrometheusMetrics{}, nil
	}
	cfg.SetDefaults()

	registry := promclient.NewRegistry()
	promExporter, err := prometheus.New(
		prometheus.WithRegisterer(registry),
		prometheus.WithNamespace(cfg.Namespace),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(promExporter))
	meter := provider.Meter(DefaultServiceName)

	m := &PrometheusMetrics{
		provider: provider,
		handler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}

	if m.messagesTotal, err = meter.Int64Counter(
		"messages_translated_total",
		metric.WithDescription("Chat messages produced by translation, by kind"),
	); err != nil {
		return nil, fmt.Errorf("failed to create messages counter: %w", err)
	}

	if m.droppedTotal, err = meter.Int64Counter(
		"fragments_dropped_total",
		metric.WithDescription("Fragments that produced no chat message, by reason"),
	); err != nil {
		return nil, fmt.Errorf("failed to create dropped counter: %w", err)
	}

	if m.deltasTotal, err = meter.Int64Counter(
		"deltas_emitted_total",
		metric.WithDescription("Streaming deltas emitted, by type"),
	); err != nil {
		return nil, fmt.Errorf("failed to create deltas counter: %w", err)
	}

	if m.streamDuration, err = meter.Float64Histogram(
		"stream_duration_seconds",
		metric.WithDescription("Remote agent stream duration in seconds"),
	); err != nil {
		return nil, fmt.Errorf("failed to create stream duration histogram: %w", err)
	}

	if m.streamErrors, err = meter.Int64Counter(
		"stream_errors_total",
		metric.WithDescription("Remote agent streams that ended with a transport error"),
	); err != nil {
		return nil, fmt.Errorf("failed to create stream errors counter: %w", err)
	}

	if m.httpDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	); err != nil {
		return nil, fmt.Errorf("failed to create http duration histogram: %w", err)
	}

	return m, nil
}

// Handler serves the Prometheus scrape endpoint.
func (m *PrometheusMetrics) Handler() http.Handler {
	if m == nil || m.handler == nil {
		return http.NotFoundHandler()
	}
	return m.handler
}
