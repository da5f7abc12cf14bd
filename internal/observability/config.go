// Package observability wires OpenTelemetry tracing and metrics into query
// execution. Every provider is optional; missing ones fall back to no-op
// implementations so instrumented code never checks for nil.
package observability

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const (
	// DefaultServiceName is reported when no service name is configured.
	DefaultServiceName = "condbuilder"

	instrumentationName = "github.com/nlstn/go-condbuilder"
)

// Config holds the telemetry providers used by repositories.
type Config struct {
	tracerProvider    trace.TracerProvider
	meterProvider     metric.MeterProvider
	serviceName       string
	serviceVersion    string
	logger            *slog.Logger
	detailedDBTracing bool

	tracer  *Tracer
	metrics *Metrics
}

// Option configures a Config.
type Option func(*Config)

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Config) { c.tracerProvider = tp }
}

// WithMeterProvider sets the meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(c *Config) { c.meterProvider = mp }
}

// WithServiceName sets the service name attribute.
func WithServiceName(name string) Option {
	return func(c *Config) { c.serviceName = name }
}

// WithServiceVersion sets the service version attribute.
func WithServiceVersion(version string) Option {
	return func(c *Config) { c.serviceVersion = version }
}

// WithLogger sets the logger used to report instrumentation failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) { c.logger = logger }
}

// WithDetailedDBTracing enables a span per statement executed through gorm.
func WithDetailedDBTracing() Option {
	return func(c *Config) { c.detailedDBTracing = true }
}

// NewConfig applies opts over no-op defaults.
func NewConfig(opts ...Option) *Config {
	c := &Config{serviceName: DefaultServiceName}
	for _, opt := range opts {
		opt(c)
	}
	if c.tracerProvider == nil {
		c.tracerProvider = tracenoop.NewTracerProvider()
	}
	if c.meterProvider == nil {
		c.meterProvider = metricnoop.NewMeterProvider()
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Initialize creates the tracer and the metric instruments.
func (c *Config) Initialize() error {
	c.tracer = newTracer(c.tracerProvider.Tracer(instrumentationName, trace.WithInstrumentationVersion(c.serviceVersion)), c.serviceName)
	metrics, err := newMetrics(c.meterProvider.Meter(instrumentationName, metric.WithInstrumentationVersion(c.serviceVersion)))
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}
	c.metrics = metrics
	return nil
}

// Tracer returns the query tracer. A nil or uninitialized Config yields a
// no-op tracer.
func (c *Config) Tracer() *Tracer {
	if c == nil || c.tracer == nil {
		return newTracer(tracenoop.NewTracerProvider().Tracer(instrumentationName), DefaultServiceName)
	}
	return c.tracer
}

// Metrics returns the query metrics. A nil or uninitialized Config yields
// no-op instruments.
func (c *Config) Metrics() *Metrics {
	if c == nil || c.metrics == nil {
		m, _ := newMetrics(metricnoop.NewMeterProvider().Meter(instrumentationName))
		return m
	}
	return c.metrics
}

// ServiceName returns the configured service name.
func (c *Config) ServiceName() string {
	if c == nil {
		return DefaultServiceName
	}
	return c.serviceName
}

// DetailedDBTracing reports whether per-statement gorm spans are enabled.
func (c *Config) DetailedDBTracing() bool {
	return c != nil && c.detailedDBTracing
}
