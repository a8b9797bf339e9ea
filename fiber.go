package fiberflow

import (
	"errors"
	"reflect"
	"sync/atomic"
)

// ErrNilItem is returned by [Emitter.Emit] when the item is nil.
// Nil items cannot be delivered to a [Subscriber].
var ErrNilItem = errors.New("fiberflow: nil item")

// errStop unwinds a generator or transformer after the pipeline has been
// cancelled. It is recognized by identity and never reaches a downstream
// subscriber.
var errStop = errors.New("fiberflow: downstream cancelled")

// An Emitter delivers items to the downstream of a pipeline on behalf of
// user code running on the fiber.
type Emitter[T any] interface {
	// Emit delivers item downstream. If downstream demand is exhausted,
	// Emit parks the fiber until more is requested or the pipeline is
	// cancelled.
	//
	// A non-nil error means the item was not delivered. The error must be
	// propagated out of the generator or transformer (wrapped or not);
	// returning it is how a cancelled fiber unwinds without side effects.
	Emit(item T) error
}

// A Generator is user code run once on the fiber of a [Create] pipeline.
// It may emit any number of items and then return: nil completes the flow,
// any other error fails it, and an error propagated from
// [Emitter.Emit] unwinds silently after cancellation.
type Generator[T any] func(e Emitter[T]) error

// A Transformer is user code run on the fiber of a [Transform] pipeline,
// once per upstream item. It may emit zero or more resulting items.
// Returning a non-nil error (other than one propagated from
// [Emitter.Emit] after cancellation) cancels the upstream and fails the
// flow.
type Transformer[T, R any] func(v T, e Emitter[R]) error

// Apply subscribes t to source, returning the transformed flow.
// It is shorthand for [Transform] for use in operator chains.
func (t Transformer[T, R]) Apply(source Publisher[T], opts ...Option) Publisher[R] {
	return Transform(source, t, opts...)
}

// A Fiber is a cancel-capable handle to a task spawned on a [Worker].
type Fiber interface {
	// Cancel prevents a pending task from starting. A task already
	// running is not preempted; pipelines unwind it cooperatively.
	Cancel()
}

// fiberSlot resolves the race between spawning a task and a cancellation
// or terminal signal arriving before the handle is stored. It is a tagged
// slot holding either nothing, a live handle, or the terminated tag.
type fiberSlot struct {
	v atomic.Pointer[fiberCell]
}

type fiberCell struct {
	f Fiber
}

// terminatedFiber tags a slot whose pipeline reached a terminal state.
// Any handle stored afterwards must cancel itself.
var terminatedFiber = new(fiberCell)

// set installs f, or cancels it immediately if the slot was already
// terminated.
func (s *fiberSlot) set(f Fiber) {
	if s.v.CompareAndSwap(nil, &fiberCell{f: f}) {
		return
	}
	if s.v.Load() == terminatedFiber {
		f.Cancel()
	}
}

// terminate marks the slot terminated and returns the handle it held,
// if any. Only the first call can return a handle.
func (s *fiberSlot) terminate() Fiber {
	old := s.v.Swap(terminatedFiber)
	if old != nil && old != terminatedFiber {
		return old.f
	}
	return nil
}

// abortSlot latches the first protocol error of a subscription, for
// delivery by the worker. Only the first set wins.
type abortSlot struct {
	v atomic.Pointer[errbox]
}

type errbox struct {
	err error
}

func (a *abortSlot) set(err error) {
	a.v.CompareAndSwap(nil, &errbox{err: err})
}

func (a *abortSlot) get() error {
	if b := a.v.Load(); b != nil {
		return b.err
	}
	return nil
}

// isNilItem reports whether v boxes a nil value of a nilable kind.
func isNilItem(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
		return rv.IsNil()
	}
	return false
}
