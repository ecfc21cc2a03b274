// Package tracing installs the OpenTelemetry tracer provider for the binary.
//
// Spans go to an OTLP/HTTP collector when an endpoint is configured and to
// stderr otherwise. stdout is never used because it carries the MCP stream.
package tracing

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"

	"github.com/dshills/campaignsearch/internal/config"
	"github.com/dshills/campaignsearch/internal/logger"
)

// DefaultServiceName is reported when Config.ServiceName is empty
const DefaultServiceName = "campaignsearch"

// Config selects the exporter and sampling
type Config struct {
	Enabled     bool
	ServiceName string
	Version     string
	Endpoint    string // OTLP/HTTP host:port; empty means stderr
	Insecure    bool
	SampleRatio float64
}

// ConfigFrom copies the tracing settings out of the process config
func ConfigFrom(c config.Config, version string) Config {
	return Config{
		Enabled:     c.TracingEnabled,
		ServiceName: DefaultServiceName,
		Version:     version,
		Endpoint:    c.OTLPEndpoint,
		Insecure:    c.OTLPInsecure,
		SampleRatio: c.TraceSampleRatio,
	}
}

// Shutdown flushes and stops the tracer provider
type Shutdown func(context.Context) error

func noopShutdown(context.Context) error { return nil }

// Init installs a global tracer provider. When tracing is disabled the
// global no-op provider stays in place and the returned Shutdown does nothing.
func Init(ctx context.Context, cfg Config, log *logger.Logger) (Shutdown, error) {
	if log == nil {
		log = logger.Nop()
	}
	if !cfg.Enabled {
		return noopShutdown, nil
	}

	exporter, err := newExporter(ctx, cfg, os.Stderr)
	if err != nil {
		return noopShutdown, fmt.Errorf("create trace exporter: %w", err)
	}

	tp := NewProvider(cfg, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)))
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info("tracing initialized",
		"service", serviceName(cfg),
		"endpoint", cfg.Endpoint,
		"sample_ratio", cfg.SampleRatio,
	)
	return tp.Shutdown, nil
}

// NewProvider builds a tracer provider with the service resource and a
// parent-based ratio sampler. Extra options attach processors or exporters.
func NewProvider(cfg Config, opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName(cfg)),
		semconv.ServiceVersionKey.String(cfg.Version),
	)

	ratio := cfg.SampleRatio
	if ratio < 0 || ratio > 1 {
		ratio = 1
	}

	base := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	}
	return sdktrace.NewTracerProvider(append(base, opts...)...)
}

func newExporter(ctx context.Context, cfg Config, w io.Writer) (sdktrace.SpanExporter, error) {
	if cfg.Endpoint == "" {
		return stdouttrace.New(stdouttrace.WithWriter(w))
	}
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return otlptracehttp.New(ctx, opts...)
}

func serviceName(cfg Config) string {
	if cfg.ServiceName == "" {
		return DefaultServiceName
	}
	return cfg.ServiceName
}
