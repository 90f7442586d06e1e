package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Sampler returns the current value of a gauge.
type Sampler func(ctx context.Context) (int64, error)

// Gauges are observable gauges read only when metrics are scraped.
type Gauges struct {
	QueueDepth   Sampler // pending task ids across runnable jobs
	AgentsOnline Sampler // agents inside the liveness window
}

// RegisterGauges registers g on the global meter provider. A failing sampler
// skips its observation instead of failing the scrape.
func RegisterGauges(meterName string, g Gauges, logger *slog.Logger) error {
	meter := otel.Meter(meterName)

	register := func(name, desc string, sample Sampler) error {
		if sample == nil {
			return nil
		}
		_, err := meter.Int64ObservableGauge(name,
			metric.WithDescription(desc),
			metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
				n, err := sample(ctx)
				if err != nil {
					logger.Warn("failed to sample gauge", "gauge", name, "error", err)
					return nil
				}
				obs.Observe(n)
				return nil
			}),
		)
		return err
	}

	if err := register("taskplane.queue.depth", "Pending task ids across runnable jobs", g.QueueDepth); err != nil {
		return err
	}
	return register("taskplane.agents.online", "Agents seen within the liveness window", g.AgentsOnline)
}
