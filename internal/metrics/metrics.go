package metrics

import (
	"context"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Result labels for recorded operations
const (
	ResultOK    = "ok"
	ResultFalse = "false"
	ResultError = "error"
)

type Metrics struct {
	Operations        metric.Int64Counter
	OperationDuration metric.Float64Histogram
	Evictions         metric.Int64Counter
	ImportRows        metric.Int64Counter

	registry *promclient.Registry
	provider *sdkmetric.MeterProvider
}

// Setup wires OpenTelemetry instruments to a private Prometheus registry.
// The process is short-lived, so the registry is pushed rather than scraped.
func Setup(serviceName string) (*Metrics, error) {
	registry := promclient.NewRegistry()

	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	m := &Metrics{registry: registry, provider: provider}

	m.Operations, err = meter.Int64Counter(
		"hugo_operations",
		metric.WithDescription("Total number of store operations by kind and result"),
	)
	if err != nil {
		return nil, err
	}

	m.OperationDuration, err = meter.Float64Histogram(
		"hugo_operation_duration_seconds",
		metric.WithDescription("Store operation duration in seconds"),
	)
	if err != nil {
		return nil, err
	}

	m.Evictions, err = meter.Int64Counter(
		"hugo_evictions",
		metric.WithDescription("Expired records deleted, by lazy read or gc sweep"),
	)
	if err != nil {
		return nil, err
	}

	m.ImportRows, err = meter.Int64Counter(
		"hugo_import_rows",
		metric.WithDescription("Rows replayed by import, by result"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) RecordOperation(ctx context.Context, op, result string, duration time.Duration) {
	labels := metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("result", result),
	)

	m.Operations.Add(ctx, 1, labels)
	m.OperationDuration.Record(ctx, duration.Seconds(), labels)
}

func (m *Metrics) RecordEviction(ctx context.Context, reason string, n int64) {
	if n <= 0 {
		return
	}
	m.Evictions.Add(ctx, n, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *Metrics) RecordImportRow(ctx context.Context, ok bool) {
	result := ResultOK
	if !ok {
		result = ResultFalse
	}
	m.ImportRows.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// Gatherer exposes the registry holding every recorded series
func (m *Metrics) Gatherer() promclient.Gatherer {
	return m.registry
}

// Push sends the collected series to a Prometheus Pushgateway under job
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	return push.New(url, job).Gatherer(m.registry).PushContext(ctx)
}

func (m *Metrics) Shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}

// ResultOf maps an operation outcome onto a result label
func ResultOf(ok bool, err error) string {
	switch {
	case err != nil:
		return ResultError
	case ok:
		return ResultOK
	default:
		return ResultFalse
	}
}
