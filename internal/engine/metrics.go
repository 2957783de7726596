package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"qircuitsim/internal/simerr"
)

// Metrics collects per-run simulation metrics.
type Metrics struct {
	runsCounter       metric.Int64Counter
	failuresCounter   metric.Int64Counter
	durationHistogram metric.Float64Histogram
	qubitsHistogram   metric.Int64Histogram
}

// NewMetrics registers the engine instruments on provider, or on the global
// meter provider when provider is nil.
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter("qircuitsim/engine")

	runsCounter, err := meter.Int64Counter(
		"qsim.runs",
		metric.WithDescription("Total number of simulation runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	failuresCounter, err := meter.Int64Counter(
		"qsim.runs.failed",
		metric.WithDescription("Total number of simulation runs that failed"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	durationHistogram, err := meter.Float64Histogram(
		"qsim.run.duration",
		metric.WithDescription("Duration of a simulation run in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	qubitsHistogram, err := meter.Int64Histogram(
		"qsim.run.qubits",
		metric.WithDescription("Register width of simulated circuits"),
		metric.WithUnit("{qubit}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		runsCounter:       runsCounter,
		failuresCounter:   failuresCounter,
		durationHistogram: durationHistogram,
		qubitsHistogram:   qubitsHistogram,
	}, nil
}

// RecordRun records one finished run. A nil err counts as success.
func (m *Metrics) RecordRun(ctx context.Context, qubits, shots int, duration time.Duration, err error) {
	mode := "analytic"
	if shots > 0 {
		mode = "sampled"
	}
	status := "completed"
	if err != nil {
		status = "failed"
	}

	attrs := metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("status", status),
	)
	m.runsCounter.Add(ctx, 1, attrs)
	m.durationHistogram.Record(ctx, duration.Seconds(), attrs)
	m.qubitsHistogram.Record(ctx, int64(qubits), metric.WithAttributes(attribute.String("mode", mode)))

	if err != nil {
		kind := "canceled"
		if k := simerr.KindOf(err); k != 0 {
			kind = k.String()
		}
		m.failuresCounter.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("mode", mode),
				attribute.String("error.kind", kind),
			),
		)
	}
}
