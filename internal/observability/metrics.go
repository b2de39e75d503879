package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sandeepkv93/credential-auth/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/exemplar"
)

const meterName = "credential-auth"

type AppMetrics struct {
	authLoginCounter         metric.Int64Counter
	passwordVerifyCounter    metric.Int64Counter
	passwordHashDuration     metric.Float64Histogram
	passwordRehashCounter    metric.Int64Counter
	repositoryOpCounter      metric.Int64Counter
	healthCheckResultCounter metric.Int64Counter
	toolCommandCounter       metric.Int64Counter
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := newResource(ctx, cfg, "metric")
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
		sdkmetric.WithExemplarFilter(exemplar.TraceBasedFilter),
		sdkmetric.WithView(sdkmetric.NewView(
			sdkmetric.Instrument{Name: "password.hash.duration"},
			sdkmetric.Stream{
				Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
					Boundaries: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
				},
			},
		)),
	)
	otel.SetMeterProvider(mp)

	m, err := newAppMetrics(mp.Meter(meterName))
	if err != nil {
		return nil, err
	}
	metricsMu.Lock()
	appMetrics = m
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func newAppMetrics(meter metric.Meter) (*AppMetrics, error) {
	loginCounter, err := meter.Int64Counter("auth.login.attempts")
	if err != nil {
		return nil, err
	}
	verifyCounter, err := meter.Int64Counter("password.verify.outcomes")
	if err != nil {
		return nil, err
	}
	hashDuration, err := meter.Float64Histogram(
		"password.hash.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of password key derivations in seconds"),
	)
	if err != nil {
		return nil, err
	}
	rehashCounter, err := meter.Int64Counter("password.rehash.events")
	if err != nil {
		return nil, err
	}
	repositoryCounter, err := meter.Int64Counter("repository.operations")
	if err != nil {
		return nil, err
	}
	healthCounter, err := meter.Int64Counter("health.check.results")
	if err != nil {
		return nil, err
	}
	toolCounter, err := meter.Int64Counter("tool.command.runs")
	if err != nil {
		return nil, err
	}
	return &AppMetrics{
		authLoginCounter:         loginCounter,
		passwordVerifyCounter:    verifyCounter,
		passwordHashDuration:     hashDuration,
		passwordRehashCounter:    rehashCounter,
		repositoryOpCounter:      repositoryCounter,
		healthCheckResultCounter: healthCounter,
		toolCommandCounter:       toolCounter,
	}, nil
}

func currentMetrics() *AppMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appMetrics
}

func RecordAuthLogin(ctx context.Context, provider, status string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.authLoginCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("status", status),
		),
	)
}

func RecordPasswordVerification(ctx context.Context, algorithm, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.passwordVerifyCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("algorithm", algorithm),
			attribute.String("outcome", outcome),
		),
	)
}

func RecordPasswordHashDuration(ctx context.Context, operation string, duration time.Duration) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.passwordHashDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.String("operation", operation)),
	)
}

func RecordPasswordRehash(ctx context.Context, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.passwordRehashCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

func RecordRepositoryOperation(ctx context.Context, repository, operation, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.repositoryOpCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("repository", repository),
			attribute.String("operation", operation),
			attribute.String("outcome", outcome),
		),
	)
}

func RecordHealthCheckResult(ctx context.Context, check, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.healthCheckResultCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("check", check),
			attribute.String("outcome", outcome),
		),
	)
}

func RecordToolCommandRun(ctx context.Context, tool, command, status string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.toolCommandCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("command", command),
			attribute.String("status", status),
		),
	)
}
