package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/codinglab/eduhub"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	AuthzDecisionsTotal   metric.Int64Counter
	ResourcesCreatedTotal metric.Int64Counter
	ResourcesDeletedTotal metric.Int64Counter
	EnrollmentsTotal      metric.Int64Counter
	LoginsTotal           metric.Int64Counter
	HousekeepingDeleted   metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary.
// Instruments bind to the global meter provider current at first use.
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.AuthzDecisionsTotal, _ = meter.Int64Counter(
		"eduhub.authz.decisions.total",
		metric.WithDescription("Access policy decisions by action and outcome"),
		metric.WithUnit("{decision}"),
	)

	m.ResourcesCreatedTotal, _ = meter.Int64Counter(
		"eduhub.resources.created.total",
		metric.WithDescription("Resources created by kind"),
		metric.WithUnit("{resource}"),
	)

	m.ResourcesDeletedTotal, _ = meter.Int64Counter(
		"eduhub.resources.deleted.total",
		metric.WithDescription("Resources deleted by kind"),
		metric.WithUnit("{resource}"),
	)

	m.EnrollmentsTotal, _ = meter.Int64Counter(
		"eduhub.enrollments.total",
		metric.WithDescription("Class enrollment attempts by outcome"),
		metric.WithUnit("{enrollment}"),
	)

	m.LoginsTotal, _ = meter.Int64Counter(
		"eduhub.logins.total",
		metric.WithDescription("Password logins by outcome"),
		metric.WithUnit("{login}"),
	)

	m.HousekeepingDeleted, _ = meter.Int64Counter(
		"eduhub.housekeeping.deleted.total",
		metric.WithDescription("Expired records removed by housekeeping"),
		metric.WithUnit("{record}"),
	)

	return m
}

// RecordDecision counts one access policy decision.
func (m *Metrics) RecordDecision(ctx context.Context, action, outcome string) {
	m.AuthzDecisionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("outcome", outcome),
	))
}

func (m *Metrics) RecordCreated(ctx context.Context, kind string) {
	m.ResourcesCreatedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) RecordDeleted(ctx context.Context, kind string) {
	m.ResourcesDeletedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) RecordEnrollment(ctx context.Context, outcome string) {
	m.EnrollmentsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) RecordLogin(ctx context.Context, outcome string) {
	m.LoginsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) RecordHousekeeping(ctx context.Context, record string, n int) {
	m.HousekeepingDeleted.Add(ctx, int64(n), metric.WithAttributes(attribute.String("record", record)))
}
