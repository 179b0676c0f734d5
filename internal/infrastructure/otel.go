package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"

	"meterfill/pkg/contracts"
	"meterfill/pkg/contracts/domain"
)

const (
	// ServiceName identifies this service in telemetry
	ServiceName = "meterfill"
	// MeterName is the instrumentation scope for domain metrics
	MeterName = "meterfill"
)

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	EnableTracing  bool // stdout trace exporter, development use
	EnableMetrics  bool // Prometheus metric exporter
}

// DefaultOTelConfig returns the default observability configuration:
// Prometheus metrics on, stdout tracing off.
func DefaultOTelConfig() *OTelConfig {
	return &OTelConfig{
		ServiceName:    ServiceName,
		ServiceVersion: contracts.Version,
		Environment:    "production",
		EnableTracing:  false,
		EnableMetrics:  true,
	}
}

// OTelProviders holds the initialized OpenTelemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	logger         *slog.Logger
}

// InitializeOTel sets up tracing and metrics per config and installs
// the global providers and propagators.
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		cfg = DefaultOTelConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx := context.Background()

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironmentName(cfg.Environment),
	)

	providers := &OTelProviders{logger: logger}

	if cfg.EnableTracing {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
		)
		providers.TracerProvider = tp
		providers.Tracer = tp.Tracer(ServiceName)
		otel.SetTracerProvider(tp)
	}

	if cfg.EnableMetrics {
		exporter, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)
		providers.MeterProvider = mp
		providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))
		providers.PrometheusHTTP = promhttp.Handler()
		otel.SetMeterProvider(mp)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.InfoContext(ctx, "OpenTelemetry initialized",
		slog.String("service", cfg.ServiceName),
		slog.Bool("tracing", cfg.EnableTracing),
		slog.Bool("metrics", cfg.EnableMetrics),
	)

	return providers, nil
}

// Shutdown flushes and stops the providers.
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var firstErr error
	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// EngineMetrics bundles the gap-fill domain instruments.
type EngineMetrics struct {
	ResolutionsTotal metric.Int64Counter
	GapsTotal        metric.Int64Counter
	BatchDuration    metric.Float64Histogram
	RecordsLoaded    metric.Int64Counter
}

// CreateEngineMetrics registers the gap-fill domain instruments on the
// given meter.
func CreateEngineMetrics(meter metric.Meter) (*EngineMetrics, error) {
	resolutions, err := meter.Int64Counter(
		"gapfill_resolutions_total",
		metric.WithDescription("Gap-fill evaluations that produced a value, by rule"),
	)
	if err != nil {
		return nil, err
	}

	gaps, err := meter.Int64Counter(
		"gapfill_gaps_total",
		metric.WithDescription("Gap-fill evaluations that ended in a terminal gap"),
	)
	if err != nil {
		return nil, err
	}

	batchDuration, err := meter.Float64Histogram(
		"gapfill_batch_duration_seconds",
		metric.WithDescription("Wall-clock duration of batch evaluations in seconds"),
	)
	if err != nil {
		return nil, err
	}

	recordsLoaded, err := meter.Int64Counter(
		"readings_records_loaded_total",
		metric.WithDescription("Consumption records loaded from readings files"),
	)
	if err != nil {
		return nil, err
	}

	return &EngineMetrics{
		ResolutionsTotal: resolutions,
		GapsTotal:        gaps,
		BatchDuration:    batchDuration,
		RecordsLoaded:    recordsLoaded,
	}, nil
}

// RecordResolution records the outcome of a single evaluation. Nil
// receivers are no-ops so callers without metrics wiring stay clean.
func (m *EngineMetrics) RecordResolution(ctx context.Context, resolution domain.Resolution) {
	if m == nil {
		return
	}
	if resolution.IsResolved() {
		m.ResolutionsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("rule", resolution.Rule.String()),
		))
		return
	}
	reason := ""
	if n := len(resolution.Attempts); n > 0 {
		reason = string(resolution.Attempts[n-1].Reason)
	}
	m.GapsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
	))
}

// RecordBatch records the duration and size of a batch run.
func (m *EngineMetrics) RecordBatch(ctx context.Context, pairs int, duration time.Duration) {
	if m == nil {
		return
	}
	m.BatchDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.Int("pairs", pairs),
	))
}

// RecordLoad records a completed readings load.
func (m *EngineMetrics) RecordLoad(ctx context.Context, records int) {
	if m == nil {
		return
	}
	m.RecordsLoaded.Add(ctx, int64(records))
}
