package fiberflow_test

import (
	"sync"
	"testing"
	"time"

	"github.com/fiberflow/fiberflow"
)

// collector is a Subscriber that records everything it receives.
type collector[T any] struct {
	mu          sync.Mutex
	items       []T
	err         error
	completed   bool
	terminals   int
	sub         fiberflow.Subscription
	autoRequest int64
	onItem      func(n int, sub fiberflow.Subscription)
	terminated  chan struct{}
}

func newCollector[T any](autoRequest int64) *collector[T] {
	return &collector[T]{
		autoRequest: autoRequest,
		terminated:  make(chan struct{}),
	}
}

func (c *collector[T]) OnSubscribe(s fiberflow.Subscription) {
	c.mu.Lock()
	c.sub = s
	c.mu.Unlock()
	if c.autoRequest != 0 {
		s.Request(c.autoRequest)
	}
}

func (c *collector[T]) OnNext(v T) {
	c.mu.Lock()
	c.items = append(c.items, v)
	n := len(c.items)
	hook := c.onItem
	sub := c.sub
	c.mu.Unlock()
	if hook != nil {
		hook(n, sub)
	}
}

func (c *collector[T]) OnError(err error) {
	c.mu.Lock()
	c.err = err
	c.terminals++
	c.mu.Unlock()
	close(c.terminated)
}

func (c *collector[T]) OnComplete() {
	c.mu.Lock()
	c.completed = true
	c.terminals++
	c.mu.Unlock()
	close(c.terminated)
}

func (c *collector[T]) Sub() fiberflow.Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sub
}

func (c *collector[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := make([]T, len(c.items))
	copy(items, c.items)
	return items
}

func (c *collector[T]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *collector[T]) Completed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed
}

func (c *collector[T]) Terminals() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.terminals
}

func (c *collector[T]) waitTerminated(t *testing.T) {
	t.Helper()
	select {
	case <-c.terminated:
	case <-time.After(5 * time.Second):
		t.Fatal("no terminal signal in time")
	}
}

func (c *collector[T]) waitItems(t *testing.T, n int) {
	t.Helper()
	waitUntil(t, func() bool { return len(c.Items()) >= n })
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// testSource is a Publisher[int] emitting 1..n with strict demand
// accounting: items are only emitted against outstanding requests.
// It optionally ends with an error, or stays silent after the last item.
type testSource struct {
	n        int
	failWith error // Terminal error instead of completion.
	silent   bool  // No terminal signal at all.

	mu        sync.Mutex
	requests  []int64
	cancelled bool
	next      int
	credit    int64
}

func (src *testSource) Subscribe(s fiberflow.Subscriber[int]) {
	src.mu.Lock()
	src.next = 1
	src.mu.Unlock()
	s.OnSubscribe(&testSourceSub{src: src, down: s})
}

func (src *testSource) Requests() []int64 {
	src.mu.Lock()
	defer src.mu.Unlock()
	rs := make([]int64, len(src.requests))
	copy(rs, src.requests)
	return rs
}

func (src *testSource) RequestTotal() int64 {
	var total int64
	for _, n := range src.Requests() {
		total += n
	}
	return total
}

func (src *testSource) Cancelled() bool {
	src.mu.Lock()
	defer src.mu.Unlock()
	return src.cancelled
}

type testSourceSub struct {
	src      *testSource
	down     fiberflow.Subscriber[int]
	emitting bool
	finished bool
}

func (u *testSourceSub) Request(n int64) {
	src := u.src
	src.mu.Lock()
	src.requests = append(src.requests, n)
	if src.credit += n; src.credit < 0 {
		src.credit = fiberflow.Unbounded
	}
	if u.emitting || src.cancelled {
		src.mu.Unlock()
		return
	}
	u.emitting = true
	for src.next <= src.n && src.credit > 0 && !src.cancelled {
		v := src.next
		src.next++
		if src.credit != fiberflow.Unbounded {
			src.credit--
		}
		src.mu.Unlock()
		u.down.OnNext(v)
		src.mu.Lock()
	}
	fin := src.next > src.n && !u.finished && !src.cancelled && !src.silent
	if fin {
		u.finished = true
	}
	u.emitting = false
	src.mu.Unlock()
	if fin {
		if src.failWith != nil {
			u.down.OnError(src.failWith)
		} else {
			u.down.OnComplete()
		}
	}
}

func (u *testSourceSub) Cancel() {
	u.src.mu.Lock()
	u.src.cancelled = true
	u.src.mu.Unlock()
}

// testScheduler wraps the default scheduler and observes worker disposal.
type testScheduler struct {
	mu      sync.Mutex
	workers []*testWorker
}

func (s *testScheduler) NewWorker() fiberflow.Worker {
	w := &testWorker{
		Worker: fiberflow.GoroutineScheduler{}.NewWorker(),
		done:   make(chan struct{}),
	}
	s.mu.Lock()
	s.workers = append(s.workers, w)
	s.mu.Unlock()
	return w
}

func (s *testScheduler) worker(t *testing.T, i int) *testWorker {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= len(s.workers) {
		t.Fatalf("no worker %d", i)
	}
	return s.workers[i]
}

type testWorker struct {
	fiberflow.Worker
	mu       sync.Mutex
	disposed int
	done     chan struct{}
}

func (w *testWorker) Dispose() {
	w.mu.Lock()
	w.disposed++
	if w.disposed == 1 {
		close(w.done)
	}
	w.mu.Unlock()
	w.Worker.Dispose()
}

func (w *testWorker) Disposed() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.disposed
}

func (w *testWorker) waitDisposed(t *testing.T) {
	t.Helper()
	select {
	case <-w.done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker not disposed in time")
	}
}
