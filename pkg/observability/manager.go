package observability

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/trace"
)

// Config groups the observability sections of the configuration file.
type Config struct {
	Tracing TracerConfig  `yaml:"tracing" json:"tracing"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// Manager holds the process-wide tracer provider and metrics. A zero
// Manager hands out no-op implementations.
type Manager struct {
	tp      trace.TracerProvider
	metrics *PrometheusMetrics

	once sync.Once
}

// Start builds tracing and metrics from cfg and installs the metrics as the
// global recorder. On error nothing is left running.
func Start(ctx context.Context, cfg Config) (*Manager, error) {
	tp, err := InitGlobalTracer(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	metrics, err := InitMetrics(cfg.Metrics)
	if err != nil {
		_ = shutdownProvider(ctx, tp)
		return nil, fmt.Errorf("metrics: %w", err)
	}
	SetGlobalMetrics(metrics)
	return &Manager{tp: tp, metrics: metrics}, nil
}

// Tracer returns a named tracer.
func (m *Manager) Tracer(name string) trace.Tracer {
	if m == nil || m.tp == nil {
		return NoopTracer(name)
	}
	return m.tp.Tracer(name)
}

// Metrics returns the recorder, never nil.
func (m *Manager) Metrics() Metrics {
	if m == nil || m.metrics == nil {
		return NoopMetrics{}
	}
	return m.metrics
}

// Shutdown flushes pending spans and stops the meter provider. Calls after
// the first are no-ops.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	var err error
	m.once.Do(func() {
		err = errors.Join(shutdownProvider(ctx, m.tp), m.metrics.Shutdown(ctx))
	})
	return err
}

func shutdownProvider(ctx context.Context, tp trace.TracerProvider) error {
	if s, ok := tp.(interface{ Shutdown(context.Context) error }); ok {
		return s.Shutdown(ctx)
	}
	return nil
}
