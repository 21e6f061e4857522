package checkout

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "verdantlabs.checkout"

// telemetry bundles the tracer and counters for the payment completion flow.
// Without a configured OTel SDK these resolve to no-ops.
type telemetry struct {
	tracer trace.Tracer

	completed       metric.Int64Counter
	rejected        metric.Int64Counter
	persistFailures metric.Int64Counter
}

func newTelemetry() telemetry {
	meter := otel.Meter(instrumentationName)

	completed, _ := meter.Int64Counter("checkout.payments.completed",
		metric.WithDescription("Payments verified and persisted as orders"))
	rejected, _ := meter.Int64Counter("checkout.payments.rejected",
		metric.WithDescription("Payments the gateway rejected or could not confirm"))
	persistFailures, _ := meter.Int64Counter("checkout.payments.persist_failures",
		metric.WithDescription("Verified payments that failed to persist"))

	return telemetry{
		tracer:          otel.Tracer(instrumentationName),
		completed:       completed,
		rejected:        rejected,
		persistFailures: persistFailures,
	}
}

func providerAttr(provider string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("provider", provider))
}
