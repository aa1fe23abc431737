package ygggo_mysqlpool

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricsInstrumentationName = "github.com/yggai/ygggo_mysqlpool"
)

// Metrics holds all the metric instruments
type Metrics struct {
	connectionsCheckedOut metric.Int64UpDownCounter
	connectionsAcquired   metric.Int64Counter
	connectionsDiscarded  metric.Int64Counter
	acquireWait           metric.Float64Histogram
	connectionHeld        metric.Float64Histogram

	queriesTotal  metric.Int64Counter
	queryDuration metric.Float64Histogram
}

// EnableMetrics enables or disables metrics collection for this manager
func (m *Manager) EnableMetrics(enabled bool) {
	if m == nil { return }
	m.metricsEnabled = enabled
	if enabled && m.metrics == nil {
		m.initMetrics()
	}
}

// SetMeterProvider sets a custom meter provider for metrics
func (m *Manager) SetMeterProvider(provider metric.MeterProvider) {
	if m == nil { return }
	m.meterProvider = provider
	if m.metricsEnabled {
		m.initMetrics()
	}
}

// initMetrics initializes all metric instruments
func (m *Manager) initMetrics() {
	var meter metric.Meter
	if m.meterProvider != nil {
		meter = m.meterProvider.Meter(metricsInstrumentationName)
	} else {
		meter = otel.Meter(metricsInstrumentationName)
	}

	mt := &Metrics{}
	mt.connectionsCheckedOut, _ = meter.Int64UpDownCounter(
		"ygggo_mysqlpool_connections_checked_out",
		metric.WithDescription("Number of connections currently lent to callers"),
	)
	mt.connectionsAcquired, _ = meter.Int64Counter(
		"ygggo_mysqlpool_connections_acquired_total",
		metric.WithDescription("Total number of successful connection acquisitions"),
	)
	mt.connectionsDiscarded, _ = meter.Int64Counter(
		"ygggo_mysqlpool_connections_discarded_total",
		metric.WithDescription("Connections removed from the pool after a connection-fatal error"),
	)
	mt.acquireWait, _ = meter.Float64Histogram(
		"ygggo_mysqlpool_acquire_wait_seconds",
		metric.WithDescription("Time spent waiting for a pooled connection"),
		metric.WithUnit("s"),
	)
	mt.connectionHeld, _ = meter.Float64Histogram(
		"ygggo_mysqlpool_connection_held_seconds",
		metric.WithDescription("Time a connection stayed checked out"),
		metric.WithUnit("s"),
	)
	mt.queriesTotal, _ = meter.Int64Counter(
		"ygggo_mysqlpool_queries_total",
		metric.WithDescription("Total number of queries"),
	)
	mt.queryDuration, _ = meter.Float64Histogram(
		"ygggo_mysqlpool_query_duration_seconds",
		metric.WithDescription("Duration of queries including connection acquisition"),
		metric.WithUnit("s"),
	)
	m.metrics = mt
}

func (m *Manager) metricsOn() bool { return m != nil && m.metricsEnabled && m.metrics != nil }

// recordConnectionAcquired records when a connection is acquired
func (m *Manager) recordConnectionAcquired(ctx context.Context, wait time.Duration) {
	if !m.metricsOn() { return }
	m.metrics.connectionsCheckedOut.Add(ctx, 1)
	m.metrics.connectionsAcquired.Add(ctx, 1)
	m.metrics.acquireWait.Record(ctx, wait.Seconds())
}

// recordConnectionReleased records when a connection is given back or discarded
func (m *Manager) recordConnectionReleased(ctx context.Context, held time.Duration) {
	if !m.metricsOn() { return }
	m.metrics.connectionsCheckedOut.Add(ctx, -1)
	m.metrics.connectionHeld.Record(ctx, held.Seconds())
}

func (m *Manager) recordConnectionDiscarded(ctx context.Context) {
	if !m.metricsOn() { return }
	m.metrics.connectionsDiscarded.Add(ctx, 1)
}

// recordQuery records query execution metrics
func (m *Manager) recordQuery(ctx context.Context, operation string, duration time.Duration, err error) {
	if !m.metricsOn() { return }

	status := "success"
	attrs := []attribute.KeyValue{attribute.String("operation", operation)}
	if err != nil {
		status = "error"
		attrs = append(attrs, attribute.String("error_kind", Classify(err).String()))
	}
	attrs = append(attrs, attribute.String("status", status))

	m.metrics.queriesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.metrics.queryDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
