package fiberflow

import (
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// DefaultPrefetch is the queue capacity and upstream demand unit used by
// pipelines that are not given one explicitly.
const DefaultPrefetch = 128

// An Option configures a [Create] or [Transform] pipeline.
type Option func(*options)

type options struct {
	prefetch  int
	scheduler Scheduler
	logger    zerolog.Logger
	meters    metric.MeterProvider
}

func makeOptions(opts []Option) options {
	o := options{
		prefetch:  DefaultPrefetch,
		scheduler: DefaultScheduler,
		logger:    zerolog.Nop(),
		meters:    otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithPrefetch sets the capacity of the upstream buffer of a [Transform]
// pipeline, which is also the unit of upstream demand: prefetch items are
// requested at subscription time and three quarters of it per refill.
// Values of 2 or more are recommended. Panics if n is not positive.
//
// [Create] pipelines have no upstream and ignore this option.
func WithPrefetch(n int) Option {
	if n < 1 {
		panic("fiberflow: non-positive prefetch")
	}
	return func(o *options) { o.prefetch = n }
}

// WithScheduler sets the [Scheduler] the pipeline reserves its worker from.
// The default is [DefaultScheduler].
func WithScheduler(s Scheduler) Option {
	if s == nil {
		panic("fiberflow: nil scheduler")
	}
	return func(o *options) { o.scheduler = s }
}

// WithLogger attaches a logger to the pipeline. Every subscription logs
// under its own flow id. The default logger discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMeterProvider sets the OpenTelemetry provider for the pipeline's
// instrument counters. The default is the otel global provider, which is
// a no-op unless an SDK has been installed.
func WithMeterProvider(mp metric.MeterProvider) Option {
	if mp == nil {
		panic("fiberflow: nil meter provider")
	}
	return func(o *options) { o.meters = mp }
}
