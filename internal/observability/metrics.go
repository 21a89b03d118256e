package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sandeepkv93/credential-session-core/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "credential-session-core"

type AppMetrics struct {
	credentialCounter metric.Int64Counter
	sessionCounter    metric.Int64Counter
	repositoryCounter metric.Int64Counter
	sweepPurged       metric.Int64Counter
	rateLimitCounter  metric.Int64Counter
	authnCounter      metric.Int64Counter
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		if err := registerMetrics(mp.Meter(meterName)); err != nil {
			return nil, err
		}
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

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)

	if err := registerMetrics(mp.Meter(meterName)); err != nil {
		return nil, err
	}
	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func registerMetrics(meter metric.Meter) error {
	credentialCounter, err := meter.Int64Counter("credential.operations")
	if err != nil {
		return err
	}
	sessionCounter, err := meter.Int64Counter("session.operations")
	if err != nil {
		return err
	}
	repositoryCounter, err := meter.Int64Counter("repository.operations")
	if err != nil {
		return err
	}
	sweepPurged, err := meter.Int64Counter("session.sweep.purged")
	if err != nil {
		return err
	}
	rateLimitCounter, err := meter.Int64Counter("http.rate_limit.decisions")
	if err != nil {
		return err
	}
	authnCounter, err := meter.Int64Counter("http.session_authentications")
	if err != nil {
		return err
	}

	metricsMu.Lock()
	appMetrics = &AppMetrics{
		credentialCounter: credentialCounter,
		sessionCounter:    sessionCounter,
		repositoryCounter: repositoryCounter,
		sweepPurged:       sweepPurged,
		rateLimitCounter:  rateLimitCounter,
		authnCounter:      authnCounter,
	}
	metricsMu.Unlock()
	return nil
}

func currentMetrics() *AppMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appMetrics
}

func RecordCredentialOperation(ctx context.Context, op, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.credentialCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	))
}

func RecordSessionOperation(ctx context.Context, op, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.sessionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	))
}

func RecordRepositoryOperation(ctx context.Context, repo, op, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.repositoryCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("repository", repo),
		attribute.String("op", op),
		attribute.String("outcome", outcome),
	))
}

func RecordSweepPurged(ctx context.Context, purged int64) {
	m := currentMetrics()
	if m == nil || purged <= 0 {
		return
	}
	m.sweepPurged.Add(ctx, purged)
}

func RecordRateLimitDecision(ctx context.Context, scope, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.rateLimitCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("outcome", outcome),
	))
}

// RecordSessionAuthentication counts middleware token checks by where the
// token came from (cookie, bearer, none).
func RecordSessionAuthentication(ctx context.Context, outcome, source string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.authnCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("source", source),
	))
}
