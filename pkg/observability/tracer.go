package observability

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerConfig configures span export for remote agent streams.
type TracerConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`

	// Exporter is "otlp" or "stdout".
	Exporter     string  `yaml:"exporter,omitempty" json:"exporter,omitempty"`
	Endpoint     string  `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	SamplingRate float64 `yaml:"sampling_rate,omitempty" json:"sampling_rate,omitempty"`
	ServiceName  string  `yaml:"service_name,omitempty" json:"service_name,omitempty"`
}

// SetDefaults fills unset fields.
func (c *TracerConfig) SetDefaults() {
	if c.Exporter == "" {
		c.Exporter = "otlp"
	}
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4317"
	}
	if c.SamplingRate == 0 {
		c.SamplingRate = 1.0
	}
	if c.ServiceName == "" {
		c.ServiceName = DefaultServiceName
	}
}

// Validate checks the tracer configuration.
func (c *TracerConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Exporter {
	case "otlp", "stdout":
	default:
		return fmt.Errorf("unknown trace exporter %q (want otlp or stdout)", c.Exporter)
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("sampling_rate must be within [0, 1], got %v", c.SamplingRate)
	}
	return nil
}

// InitGlobalTracer installs a tracer provider. Disabled config installs
// nothing and returns a no-op provider.
func InitGlobalTracer(ctx context.Context, cfg TracerConfig) (trace.TracerProvider, error) {
	if !cfg.Enabled {
		return noop.NewTracerProvider(), nil
	}
	cfg.SetDefaults()

	var exporter sdktrace.SpanExporter
	var err error
	switch cfg.Exporter {
	case "stdout":
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(os.Stderr), stdouttrace.WithPrettyPrint())
	default:
		exporter, err = otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithInsecure(),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s exporter: %w", cfg.Exporter, err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SamplingRate)),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	return tp, nil
}

func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
