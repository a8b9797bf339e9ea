package fiberflow

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Create returns a [Publisher] that, for each subscription, runs generate
// on a fiber spawned from a scheduler worker and signals the items it
// emits, honoring downstream backpressure by parking the fiber.
//
// See [Generator] and [Emitter] for the contract of generate.
func Create[T any](generate Generator[T], opts ...Option) Publisher[T] {
	if generate == nil {
		panic("fiberflow: nil generator")
	}
	return &createPublisher[T]{generate: generate, opts: makeOptions(opts)}
}

type createPublisher[T any] struct {
	generate Generator[T]
	opts     options
}

func (p *createPublisher[T]) Subscribe(s Subscriber[T]) {
	worker := p.opts.scheduler.NewWorker()
	sub := &createSubscription[T]{
		downstream:    s,
		generate:      p.generate,
		consumerReady: NewLatch(),
		cleanup:       sync.OnceFunc(worker.Dispose),
		log:           pipelineLogger(p.opts.logger, "create"),
		inst:          newInstruments(p.opts.meters, "create"),
	}
	s.OnSubscribe(sub)
	sub.log.Debug().Msg("subscribed")
	sub.fiber.set(worker.Schedule(sub.run))
}

// createSubscription is the subscription handed to the downstream of a
// [Create] pipeline, the emitter handed to its generator, and the task
// body run by its fiber.
type createSubscription[T any] struct {
	downstream    Subscriber[T]
	generate      Generator[T]
	requested     demand
	produced      int64 // Owned by the fiber.
	consumerReady *Latch
	cancelled     atomic.Bool
	abort         abortSlot
	fiber         fiberSlot
	cleanup       func()
	log           zerolog.Logger
	inst          *instruments
}

func (s *createSubscription[T]) Request(n int64) {
	if n <= 0 {
		s.abort.set(fmt.Errorf("fiberflow: non-positive request amount: %d", n))
		s.consumerReady.Resume()
		return
	}
	s.requested.add(n)
	s.consumerReady.Resume()
}

func (s *createSubscription[T]) Cancel() {
	s.cancelled.Store(true)
	if f := s.fiber.terminate(); f != nil {
		f.Cancel()
	}
	s.cleanup()
	s.consumerReady.Resume()
	s.log.Debug().Msg("cancelled")
}

func (s *createSubscription[T]) Emit(item T) error {
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

// run is the fiber task body.
func (s *createSubscription[T]) run() {
	defer func() {
		s.fiber.terminate()
		s.cleanup()
	}()
	if err := s.runGenerator(); err != nil {
		if !errors.Is(err, errStop) && !s.cancelled.Load() {
			s.log.Debug().Err(err).Msg("generator failed")
			s.downstream.OnError(err)
		}
		return
	}
	if s.cancelled.Load() {
		return
	}
	if err := s.abort.get(); err != nil {
		s.downstream.OnError(err)
		return
	}
	s.log.Debug().Msg("completed")
	s.downstream.OnComplete()
}

func (s *createSubscription[T]) runGenerator() (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("fiberflow: generator panic: %v", v)
		}
	}()
	return s.generate(s)
}
