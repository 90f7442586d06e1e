package dispatch

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "taskplane-dispatch"

type instruments struct {
	claimed        metric.Int64Counter
	emptyClaims    metric.Int64Counter
	reported       metric.Int64Counter
	exportFailures metric.Int64Counter
}

// newInstruments registers the engine's counters on the global meter
// provider. Registration failures fall back to no-op counters.
func newInstruments() *instruments {
	meter := otel.Meter(meterName)
	fallback := noop.NewMeterProvider().Meter(meterName)

	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			c, _ = fallback.Int64Counter(name)
		}
		return c
	}

	return &instruments{
		claimed:        counter("taskplane.tasks.claimed", "Tasks handed to agents"),
		emptyClaims:    counter("taskplane.claims.empty", "Claim requests that found no task"),
		reported:       counter("taskplane.tasks.reported", "Terminal status reports by status"),
		exportFailures: counter("taskplane.export.failures", "Failed result exports"),
	}
}

func (m *instruments) recordReport(ctx context.Context, status string) {
	m.reported.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}
