package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

type Config struct {
	ServiceName  string
	Environment  string
	OTLPEndpoint string // host:port; empty keeps metrics in-process only
	OTLPInsecure bool
	Interval     time.Duration
}

// Metrics holds the settlement instruments.
type Metrics struct {
	HTTPRequests        metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram

	Checkouts         metric.Int64Counter
	OrdersCreated     metric.Int64Counter
	OrderTransitions  metric.Int64Counter
	WalletCredits     metric.Int64Counter
	WalletCreditValue metric.Float64Counter
	Withdrawals       metric.Int64Counter
	OutboxPublished   metric.Int64Counter
}

// Init builds a meter provider, exporting over OTLP/HTTP when an endpoint is
// configured, and registers it globally.
func Init(ctx context.Context, cfg Config) (*Metrics, *sdkmetric.MeterProvider, error) {
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("deployment.environment", cfg.Environment),
	))
	if err != nil {
		return nil, nil, fmt.Errorf("metrics resource: %w", err)
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	if cfg.OTLPEndpoint != "" {
		expOpts := []otlpmetrichttp.Option{
			otlpmetrichttp.WithEndpoint(cfg.OTLPEndpoint),
			otlpmetrichttp.WithURLPath("/v1/metrics"),
		}
		if cfg.OTLPInsecure {
			expOpts = append(expOpts, otlpmetrichttp.WithInsecure())
		}
		exporter, err := otlpmetrichttp.New(ctx, expOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("otlp exporter: %w", err)
		}
		interval := cfg.Interval
		if interval <= 0 {
			interval = 10 * time.Second
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))))
	}

	provider := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(provider)

	m, err := New(provider.Meter(cfg.ServiceName))
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, nil, err
	}
	return m, provider, nil
}

// Noop returns instruments that record nothing.
func Noop() *Metrics {
	m, _ := New(noop.NewMeterProvider().Meter("noop"))
	return m
}

func New(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	buckets := []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

	if m.HTTPRequests, err = meter.Int64Counter("http.server.request.count",
		metric.WithDescription("HTTP requests served"), metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("http requests counter: %w", err)
	}
	if m.HTTPRequestDuration, err = meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"), metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(buckets...)); err != nil {
		return nil, fmt.Errorf("http duration histogram: %w", err)
	}
	if m.Checkouts, err = meter.Int64Counter("checkouts_total",
		metric.WithDescription("Checkout attempts by method and result"), metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("checkouts counter: %w", err)
	}
	if m.OrdersCreated, err = meter.Int64Counter("orders_created_total",
		metric.WithDescription("Seller orders created"), metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("orders counter: %w", err)
	}
	if m.OrderTransitions, err = meter.Int64Counter("order_transitions_total",
		metric.WithDescription("Order state changes by target status"), metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("transitions counter: %w", err)
	}
	if m.WalletCredits, err = meter.Int64Counter("wallet_credits_total",
		metric.WithDescription("Seller wallet credits"), metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("wallet credits counter: %w", err)
	}
	if m.WalletCreditValue, err = meter.Float64Counter("wallet_credit_amount_total",
		metric.WithDescription("Net amount credited to seller wallets")); err != nil {
		return nil, fmt.Errorf("wallet credit value counter: %w", err)
	}
	if m.Withdrawals, err = meter.Int64Counter("withdrawals_total",
		metric.WithDescription("Withdrawal state changes by status"), metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("withdrawals counter: %w", err)
	}
	if m.OutboxPublished, err = meter.Int64Counter("outbox_published_total",
		metric.WithDescription("Outbox events relayed to Kafka"), metric.WithUnit("1")); err != nil {
		return nil, fmt.Errorf("outbox counter: %w", err)
	}
	return &m, nil
}

func (m *Metrics) Checkout(ctx context.Context, method, result string) {
	m.Checkouts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("payment.method", method),
		attribute.String("result", result),
	))
}

func (m *Metrics) Transition(ctx context.Context, to string) {
	m.OrderTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", to)))
}

func (m *Metrics) Credit(ctx context.Context, net float64) {
	m.WalletCredits.Add(ctx, 1)
	m.WalletCreditValue.Add(ctx, net)
}

func (m *Metrics) Withdrawal(ctx context.Context, status string) {
	m.Withdrawals.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

func (m *Metrics) HTTP(ctx context.Context, method, route string, status int, start time.Time) {
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
	)
	m.HTTPRequests.Add(ctx, 1, attrs)
	m.HTTPRequestDuration.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
}
