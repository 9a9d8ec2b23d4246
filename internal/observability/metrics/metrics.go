// Package metrics wires the OTEL meter provider and access-control counters.
package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the meter provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
	ExportInterval   time.Duration
}

// NewProvider configures and registers the global meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	interval := cfg.ExportInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}

	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.DeploymentEnvironment(cfg.Environment),
	))
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	return provider, nil
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// Metrics exposes counters for routing decisions and permission checks.
type Metrics struct {
	decisions           metric.Int64Counter
	crossTenantRedirect metric.Int64Counter
	permissionDenials   metric.Int64Counter
	lookupFailures      metric.Int64Counter
	rateLimit           metric.Int64Counter
}

// New registers the access-control instruments on the meter provider.
func New(provider *sdkmetric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter("lokera/access")

	decisions, err := meter.Int64Counter("access_decisions_total",
		metric.WithDescription("Routing decisions grouped by outcome and reason"))
	if err != nil {
		return nil, err
	}
	crossTenant, err := meter.Int64Counter("cross_tenant_redirects_total",
		metric.WithDescription("Requests redirected to the principal's own organization host"))
	if err != nil {
		return nil, err
	}
	denials, err := meter.Int64Counter("permission_denials_total",
		metric.WithDescription("Permission checks that resolved to deny"))
	if err != nil {
		return nil, err
	}
	lookupFailures, err := meter.Int64Counter("access_lookup_failures_total",
		metric.WithDescription("Directory, subscription, or catalog lookups that failed"))
	if err != nil {
		return nil, err
	}
	rateLimit, err := meter.Int64Counter("rate_limit_decisions_total",
		metric.WithDescription("Rate limiter allow and deny outcomes"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		decisions:           decisions,
		crossTenantRedirect: crossTenant,
		permissionDenials:   denials,
		lookupFailures:      lookupFailures,
		rateLimit:           rateLimit,
	}, nil
}

// RecordDecision counts a routing decision. Outcome and reason are
// low-cardinality labels; never pass request paths or identifiers.
func (m *Metrics) RecordDecision(ctx context.Context, outcome, reason string) {
	if m == nil {
		return
	}
	m.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("reason", reason),
	))
}

// RecordCrossTenantRedirect counts a cross-organization redirect.
func (m *Metrics) RecordCrossTenantRedirect(ctx context.Context) {
	if m == nil {
		return
	}
	m.crossTenantRedirect.Add(ctx, 1)
}

// RecordPermissionDenial counts a denied permission check per object type.
func (m *Metrics) RecordPermissionDenial(ctx context.Context, objectType, action string) {
	if m == nil {
		return
	}
	m.permissionDenials.Add(ctx, 1, metric.WithAttributes(
		attribute.String("object_type", objectType),
		attribute.String("action", action),
	))
}

// RecordLookupFailure counts an upstream lookup failure per source.
func (m *Metrics) RecordLookupFailure(ctx context.Context, source string) {
	if m == nil {
		return
	}
	m.lookupFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
	))
}

// RecordRateLimit counts an allow or deny from the login limiter.
func (m *Metrics) RecordRateLimit(ctx context.Context, allowed bool) {
	if m == nil {
		return
	}
	m.rateLimit.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("allowed", allowed),
	))
}
