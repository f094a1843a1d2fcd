package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/kpkanth7/pdfbook/internal/config"
)

// NewLogger builds the process-wide JSON logger at the configured level.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// Metrics carries the pipeline instruments. A nil *Metrics is valid and
// drops every observation, so callers never branch on whether metrics are
// enabled.
type Metrics struct {
	chunksSynthesized metric.Int64Counter
	chunksFailed      metric.Int64Counter
	synthDuration     metric.Float64Histogram
}

// Setup wires the otel meter provider with a Prometheus exporter and serves
// it on cfg.PrometheusBind. An empty bind disables metrics entirely, which
// is the default for one-shot runs; long conversions can opt in.
func Setup(cfg config.TelemetryConfig, appName string, logger *slog.Logger) (*Metrics, func(context.Context) error, error) {
	if strings.TrimSpace(cfg.PrometheusBind) == "" {
		return nil, func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			semconv.ServiceName(appName),
			attribute.String("component", "pipeline"),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, nil, err
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	meter := provider.Meter("pdfbook")
	m := &Metrics{}
	if m.chunksSynthesized, err = meter.Int64Counter("pdfbook_chunks_synthesized_total",
		metric.WithDescription("Chunks successfully synthesized")); err != nil {
		return nil, nil, err
	}
	if m.chunksFailed, err = meter.Int64Counter("pdfbook_chunks_failed_total",
		metric.WithDescription("Chunk synthesis failures")); err != nil {
		return nil, nil, err
	}
	if m.synthDuration, err = meter.Float64Histogram("pdfbook_synthesis_duration_seconds",
		metric.WithDescription("Per-chunk synthesis latency")); err != nil {
		return nil, nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              cfg.PrometheusBind,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", slog.String("error", err.Error()))
		}
	}()
	logger.Info("metrics exposed", slog.String("addr", cfg.PrometheusBind))

	shutdown := func(ctx context.Context) error {
		var errs []error
		if err := server.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		if err := provider.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	}
	return m, shutdown, nil
}

// ObserveSynthesis records one synthesis attempt.
func (m *Metrics) ObserveSynthesis(ctx context.Context, took time.Duration, ok bool) {
	if m == nil {
		return
	}
	m.synthDuration.Record(ctx, took.Seconds())
	if ok {
		m.chunksSynthesized.Add(ctx, 1)
	} else {
		m.chunksFailed.Add(ctx, 1)
	}
}
