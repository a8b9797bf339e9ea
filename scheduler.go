package fiberflow

import (
	"sync"
	"sync/atomic"
)

// A Scheduler hands out disposable [Worker]s. Each pipeline reserves one
// worker and spawns exactly one cooperative task on it.
type Scheduler interface {
	NewWorker() Worker
}

// A Worker runs submitted tasks sequentially, in submission order (FIFO).
//
// Disposing a worker cancels tasks that have not started yet and releases
// the worker's goroutine; the task currently running, if any, runs to
// completion.
type Worker interface {
	// Schedule submits task for execution and returns a handle to it.
	// A task scheduled on a disposed worker never runs; its handle is
	// already cancelled.
	Schedule(task func()) Fiber

	// Dispose is idempotent.
	Dispose()
}

// A GoroutineScheduler backs every [Worker] with a dedicated goroutine
// that drains a FIFO backlog. It is the default scheduler of this package.
//
// The zero value is ready for use.
type GoroutineScheduler struct{}

// DefaultScheduler is the [Scheduler] used by pipelines that are not given
// one explicitly.
var DefaultScheduler Scheduler = GoroutineScheduler{}

// NewWorker creates a [Worker] and starts its goroutine.
func (GoroutineScheduler) NewWorker() Worker {
	w := &goWorker{
		tasks: make(chan *goFiber, 8),
		quit:  make(chan struct{}),
	}
	go w.loop()
	return w
}

type goWorker struct {
	tasks chan *goFiber
	quit  chan struct{}
	once  sync.Once
}

func (w *goWorker) loop() {
	for {
		// Disposal wins over a non-empty backlog.
		select {
		case <-w.quit:
			return
		default:
		}
		select {
		case <-w.quit:
			return
		case f := <-w.tasks:
			f.run()
		}
	}
}

func (w *goWorker) Schedule(task func()) Fiber {
	f := &goFiber{task: task}
	select {
	case <-w.quit:
		f.cancelled.Store(true)
		return f
	default:
	}
	select {
	case <-w.quit:
		f.cancelled.Store(true)
	case w.tasks <- f:
	}
	return f
}

func (w *goWorker) Dispose() {
	w.once.Do(func() { close(w.quit) })
}

type goFiber struct {
	task      func()
	cancelled atomic.Bool
}

func (f *goFiber) Cancel() {
	f.cancelled.Store(true)
}

func (f *goFiber) run() {
	if !f.cancelled.Load() {
		f.task()
	}
}
