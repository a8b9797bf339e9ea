// Package fiberflow bridges a reactive-streams dataflow model with
// fiber-style cooperative execution.
//
// A fiber, in this library, is a piece of user code running on a dedicated
// cooperative task spawned from a [Scheduler] worker. Since Go has already
// done a great job in making goroutines cheap to park and resume, a fiber is
// simply a goroutine that blocks on a [Latch]; parking releases the carrier
// thread to the runtime, so any number of pipelines can share a scheduler.
//
// The library offers two operators:
//
//   - [Create] runs a user [Generator] on a fiber and lets it push items to
//     a downstream [Subscriber], suspending the fiber whenever downstream
//     demand is exhausted.
//   - [Transform] consumes an upstream [Publisher] through a bounded
//     single-producer/single-consumer queue, runs a user [Transformer] per
//     item on a fiber, and pushes results downstream with the same
//     suspension discipline.
//
// # Backpressure Without Callbacks
//
// Reactive code ordinarily has to be written inside out: emission happens in
// callbacks, and honoring demand means saving state between them. A fiber
// turns this around. The [Emitter.Emit] call simply does not return until
// the downstream has demand for the item (or the pipeline is cancelled), so
// a generator is plain sequential code:
//
//	fiberflow.Create(func(e fiberflow.Emitter[int]) error {
//		for i := 1; ; i++ {
//			if err := e.Emit(i); err != nil {
//				return err // Cancelled; unwind without side effects.
//			}
//		}
//	})
//
// The error returned by Emit on cancellation is an internal sentinel. It
// must be propagated up unmodified (wrapping is fine); the worker recognizes
// it and exits silently instead of signaling downstream.
//
// # The Suspension Protocol
//
// Two independent rates meet in a transform pipeline: the upstream produces
// at its own pace into a bounded queue, and the downstream consumes by
// raising demand. The worker fiber couples them with two [Latch]es. It parks
// on one when the queue runs empty while the upstream is still live, and
// inside Emit on the other when demand runs out. Upstream signals and
// downstream Request calls are wait-free; they only flip a latch.
//
// Queue occupancy never exceeds the configured prefetch: the pipeline
// requests prefetch items up front and then re-requests in batches of
// three quarters of it as items are consumed.
//
// # Cancellation
//
// Cancel is idempotent and non-blocking. It resumes both latches so that
// a parked worker wakes promptly, cancels the spawned fiber through an
// atomically swapped handle (which also covers the race where cancellation
// arrives before the handle is stored), and disposes the scheduler worker
// exactly once. After Cancel returns, at most the one item currently being
// delivered reaches the downstream, and no terminal signal follows.
//
// # Observability
//
// Pipelines are silent by default. An attached [zerolog.Logger] (see
// [WithLogger]) reports subscription lifecycle under a per-subscription
// flow id, and OpenTelemetry counters for emitted items, consumed items and
// worker parks are published through the configured meter provider (see
// [WithMeterProvider]); with no SDK installed these are no-ops.
package fiberflow
