package fiberflow

import "math"

// Unbounded is the demand amount that disables backpressure accounting for
// a subscription. Requesting it (or saturating up to it) lets the emitter
// run freely without parking.
const Unbounded int64 = math.MaxInt64

// A Publisher is a provider of a potentially unbounded number of sequenced
// items, publishing them according to the demand received from its
// [Subscriber].
//
// Subscribe can be called any number of times; each call starts an
// independent [Subscription].
type Publisher[T any] interface {
	Subscribe(s Subscriber[T])
}

// A Subscriber receives a call to OnSubscribe once after being passed to
// [Publisher.Subscribe]; the provided [Subscription] lets it request items
// from the Publisher.
//
// OnNext, OnError and OnComplete calls are serialized: no two of them ever
// run concurrently for one subscription, and no signal follows a terminal
// one.
type Subscriber[T any] interface {
	OnSubscribe(s Subscription)
	OnNext(v T)
	OnError(err error)
	OnComplete()
}

// A Subscription represents the one-to-one lifecycle of a [Subscriber]
// subscribing to a [Publisher].
//
// Both methods are non-blocking and safe for concurrent use from any
// goroutine.
type Subscription interface {
	// Request asks the Publisher for n more items.
	// Demand is additive and saturates at [Unbounded].
	Request(n int64)

	// Cancel stops the flow of items. Cancel is idempotent.
	Cancel()
}

// SubscriberFuncs assembles a [Subscriber] from optional functions.
// Nil fields are filled in with no-ops.
type SubscriberFuncs[T any] struct {
	Subscribe func(Subscription)
	Next      func(T)
	Error     func(error)
	Complete  func()
}

// Build returns a [Subscriber] backed by the functions of sf.
func (sf SubscriberFuncs[T]) Build() Subscriber[T] {
	if sf.Subscribe == nil {
		sf.Subscribe = func(Subscription) {}
	}
	if sf.Next == nil {
		sf.Next = func(T) {}
	}
	if sf.Error == nil {
		sf.Error = func(error) {}
	}
	if sf.Complete == nil {
		sf.Complete = func() {}
	}
	return &funcSubscriber[T]{sf}
}

type funcSubscriber[T any] struct {
	f SubscriberFuncs[T]
}

func (s *funcSubscriber[T]) OnSubscribe(sub Subscription) { s.f.Subscribe(sub) }
func (s *funcSubscriber[T]) OnNext(v T)                   { s.f.Next(v) }
func (s *funcSubscriber[T]) OnError(err error)            { s.f.Error(err) }
func (s *funcSubscriber[T]) OnComplete()                  { s.f.Complete() }
