package fiberflow

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Transform returns a [Publisher] that, for each subscription, consumes
// source through a bounded buffer of prefetch items, runs transform per
// item on a fiber spawned from a scheduler worker, and signals the items
// it emits, honoring downstream backpressure by parking the fiber.
//
// Items are delivered downstream in upstream order. See [Transformer] and
// [Emitter] for the contract of transform.
func Transform[T, R any](source Publisher[T], transform Transformer[T, R], opts ...Option) Publisher[R] {
	if source == nil {
		panic("fiberflow: nil source")
	}
	if transform == nil {
		panic("fiberflow: nil transformer")
	}
	return &transformPublisher[T, R]{source: source, transform: transform, opts: makeOptions(opts)}
}

type transformPublisher[T, R any] struct {
	source    Publisher[T]
	transform Transformer[T, R]
	opts      options
}

func (p *transformPublisher[T, R]) Subscribe(s Subscriber[R]) {
	worker := p.opts.scheduler.NewWorker()
	sub := &transformSubscription[T, R]{
		downstream:    s,
		transform:     p.transform,
		prefetch:      p.opts.prefetch,
		queue:         NewSPSCQueue[T](p.opts.prefetch),
		producerReady: NewLatch(),
		consumerReady: NewLatch(),
		cleanup:       sync.OnceFunc(worker.Dispose),
		log:           pipelineLogger(p.opts.logger, "transform"),
		inst:          newInstruments(p.opts.meters, "transform"),
	}
	p.source.Subscribe(sub)
	sub.fiber.set(worker.Schedule(sub.run))
}

// transformSubscription is the subscriber attached to the upstream of a
// [Transform] pipeline, the subscription handed to its downstream, the
// emitter handed to its transformer, and the task body run by its fiber.
//
// The upstream thread only writes into the queue and bumps wip; the fiber
// is the sole consumer of the queue and the sole source of downstream
// signals.
type transformSubscription[T, R any] struct {
	downstream    Subscriber[R]
	transform     Transformer[T, R]
	prefetch      int
	queue         *SPSCQueue[T]
	requested     demand
	produced      int64 // Owned by the fiber.
	wip           atomic.Int64
	producerReady *Latch
	consumerReady *Latch
	upstream      atomic.Pointer[upstreamRef]
	done          atomic.Bool
	err           error // Written before done; read after observing done.
	cancelled     atomic.Bool
	abort         abortSlot
	fiber         fiberSlot
	cleanup       func()
	log           zerolog.Logger
	inst          *instruments
}

type upstreamRef struct {
	s Subscription
}

func (s *transformSubscription[T, R]) OnSubscribe(up Subscription) {
	if !s.upstream.CompareAndSwap(nil, &upstreamRef{s: up}) {
		up.Cancel() // Already subscribed once.
		return
	}
	s.downstream.OnSubscribe(s)
	s.log.Debug().Int("prefetch", s.prefetch).Msg("subscribed")
	if s.cancelled.Load() {
		up.Cancel()
		return
	}
	up.Request(int64(s.prefetch))
}

func (s *transformSubscription[T, R]) OnNext(v T) {
	if !s.queue.Offer(v) {
		// The upstream overran its prefetch allowance.
		s.log.Error().Msg("buffer overrun, item dropped")
		return
	}
	if s.wip.Add(1) == 1 {
		s.producerReady.Resume()
	}
}

func (s *transformSubscription[T, R]) OnError(err error) {
	s.err = err
	s.terminal()
}

func (s *transformSubscription[T, R]) OnComplete() {
	s.terminal()
}

func (s *transformSubscription[T, R]) terminal() {
	s.done.Store(true)
	if s.wip.Add(1) == 1 {
		s.producerReady.Resume()
	}
}

func (s *transformSubscription[T, R]) Request(n int64) {
	if n <= 0 {
		s.abort.set(fmt.Errorf("fiberflow: non-positive request amount: %d", n))
		s.consumerReady.Resume()
		if s.wip.Add(1) == 1 {
			s.producerReady.Resume()
		}
		return
	}
	s.requested.add(n)
	s.consumerReady.Resume()
}

func (s *transformSubscription[T, R]) Cancel() {
	s.cancelled.Store(true)
	if f := s.fiber.terminate(); f != nil {
		f.Cancel()
	}
	if up := s.upstream.Load(); up != nil {
		up.s.Cancel()
	}
	s.cleanup()
	s.producerReady.Resume()
	s.consumerReady.Resume()
	s.log.Debug().Msg("cancelled")
}

func (s *transformSubscription[T, R]) Emit(item R) error {
	if isNilItem(item) {
		return ErrNilItem
	}
	p := s.produced
	for s.requested.get() == p && !s.cancelled.Load() && s.abort.get() == nil {
		s.inst.addPark()
		s.consumerReady.Await()
	}
	if s.cancelled.Load() {
		return errStop
	}
	if err := s.abort.get(); err != nil {
		return err
	}
	s.downstream.OnNext(item)
	s.produced = p + 1
	s.inst.addEmitted()
	return nil
}

// run is the fiber task body: drain the queue, transform, and refill the
// upstream at the three-quarter watermark.
func (s *transformSubscription[T, R]) run() {
	defer func() {
		s.queue.Clear()
		s.fiber.terminate()
		s.cleanup()
	}()

	consumed := 0
	limit := s.prefetch - s.prefetch>>2
	var wip int64

	for !s.cancelled.Load() {
		if err := s.abort.get(); err != nil {
			s.cancelUpstream()
			s.downstream.OnError(err)
			return
		}

		d := s.done.Load()
		v, ok := s.queue.Poll()

		if d && !ok {
			if err := s.err; err != nil {
				s.log.Debug().Err(err).Msg("upstream failed")
				s.downstream.OnError(err)
			} else {
				s.log.Debug().Msg("completed")
				s.downstream.OnComplete()
			}
			return
		}

		if ok {
			s.inst.addConsumed()
			if consumed++; consumed == limit {
				consumed = 0
				s.requestUpstream(int64(limit))
			}
			if err := s.transformItem(v); err != nil {
				if !errors.Is(err, errStop) && !s.cancelled.Load() {
					s.log.Debug().Err(err).Msg("transformer failed")
					s.cancelUpstream()
					s.downstream.OnError(err)
				}
				return
			}
			continue
		}

		// Retire the handoffs observed so far; park only if no new
		// ones arrived in the meantime.
		if wip = s.wip.Add(-wip); wip == 0 {
			s.inst.addPark()
			s.producerReady.Await()
		}
	}
}

func (s *transformSubscription[T, R]) transformItem(v T) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("fiberflow: transformer panic: %v", p)
		}
	}()
	return s.transform(v, s)
}

func (s *transformSubscription[T, R]) requestUpstream(n int64) {
	if up := s.upstream.Load(); up != nil {
		up.s.Request(n)
	}
}

func (s *transformSubscription[T, R]) cancelUpstream() {
	if up := s.upstream.Load(); up != nil {
		up.s.Cancel()
	}
}
