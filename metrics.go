package fiberflow

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/fiberflow/fiberflow"

// instruments carries the OpenTelemetry counters of one pipeline.
// With the default (global, uninstalled) meter provider every method is
// a no-op.
type instruments struct {
	emitted  metric.Int64Counter
	consumed metric.Int64Counter
	parks    metric.Int64Counter
	attrs    metric.MeasurementOption
}

func newInstruments(mp metric.MeterProvider, op string) *instruments {
	m := mp.Meter(instrumentationName)
	emitted, _ := m.Int64Counter("fiberflow.items.emitted",
		metric.WithDescription("Items delivered to the downstream subscriber."))
	consumed, _ := m.Int64Counter("fiberflow.items.consumed",
		metric.WithDescription("Items taken from the upstream buffer."))
	parks, _ := m.Int64Counter("fiberflow.worker.parks",
		metric.WithDescription("Times the worker fiber parked on a latch."))
	return &instruments{
		emitted:  emitted,
		consumed: consumed,
		parks:    parks,
		attrs:    metric.WithAttributes(attribute.String("operator", op)),
	}
}

func (in *instruments) addEmitted() {
	in.emitted.Add(context.Background(), 1, in.attrs)
}

func (in *instruments) addConsumed() {
	in.consumed.Add(context.Background(), 1, in.attrs)
}

func (in *instruments) addPark() {
	in.parks.Add(context.Background(), 1, in.attrs)
}
