package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ConnectionMetrics tracks long-lived client connections, such as LDAP sessions.
type ConnectionMetrics interface {
	ConnectionOpened(ctx context.Context, protocol string)
	ConnectionClosed(ctx context.Context, protocol string, duration time.Duration)
}

type connectionMetrics struct {
	active   metric.Int64UpDownCounter
	total    metric.Int64Counter
	duration metric.Float64Histogram
}

// NewConnectionMetrics creates ConnectionMetrics backed by the meter provider.
func NewConnectionMetrics(meterProvider metric.MeterProvider, namespace string) (ConnectionMetrics, error) {
	meter := meterProvider.Meter(namespace)

	active, err := meter.Int64UpDownCounter(
		fmt.Sprintf("%s_active_connections", namespace),
		metric.WithDescription("Number of open client connections"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active connections counter: %w", err)
	}

	total, err := meter.Int64Counter(
		fmt.Sprintf("%s_connections_total", namespace),
		metric.WithDescription("Total number of accepted client connections"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create connections counter: %w", err)
	}

	duration, err := meter.Float64Histogram(
		fmt.Sprintf("%s_connection_duration_seconds", namespace),
		metric.WithDescription("Lifetime of client connections in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection duration histogram: %w", err)
	}

	return &connectionMetrics{active: active, total: total, duration: duration}, nil
}

func (c *connectionMetrics) ConnectionOpened(ctx context.Context, protocol string) {
	attrs := metric.WithAttributes(attribute.String("protocol", protocol))
	c.active.Add(ctx, 1, attrs)
	c.total.Add(ctx, 1, attrs)
}

func (c *connectionMetrics) ConnectionClosed(ctx context.Context, protocol string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("protocol", protocol))
	c.active.Add(ctx, -1, attrs)
	c.duration.Record(ctx, duration.Seconds(), attrs)
}

// NoOpConnectionMetrics discards every measurement.
type NoOpConnectionMetrics struct{}

// NewNoOpConnectionMetrics creates a no-op ConnectionMetrics implementation.
func NewNoOpConnectionMetrics() ConnectionMetrics {
	return &NoOpConnectionMetrics{}
}

func (n *NoOpConnectionMetrics) ConnectionOpened(ctx context.Context, protocol string) {}

func (n *NoOpConnectionMetrics) ConnectionClosed(ctx context.Context, protocol string, duration time.Duration) {
}
