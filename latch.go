package fiberflow

import "sync/atomic"

const (
	latchEmpty int32 = iota
	latchArmed
	latchPermit
)

// A Latch is a one-shot-reusable park/unpark primitive with a single
// waiter: one goroutine calls Await to block until another party calls
// Resume. A Resume that precedes an Await makes the next Await non-blocking
// exactly once; a permit is a boolean, not a count.
//
// Any number of goroutines may call Resume, but only one goroutine must
// ever call Await. Any write that happens before a Resume is observable
// after the Await it releases returns.
type Latch struct {
	state atomic.Int32
	ch    chan struct{}
}

// NewLatch creates a [Latch] with no permit available.
func NewLatch() *Latch {
	return &Latch{ch: make(chan struct{}, 1)}
}

// Await blocks the calling goroutine until a permit is available, and
// consumes it. Parking releases the carrier thread to the Go runtime.
func (l *Latch) Await() {
	for {
		switch s := l.state.Load(); s {
		case latchPermit:
			if l.state.CompareAndSwap(s, latchEmpty) {
				return
			}
		case latchEmpty:
			if l.state.CompareAndSwap(s, latchArmed) {
				<-l.ch
				return
			}
		default:
			panic("fiberflow(Latch): concurrent Await")
		}
	}
}

// Resume makes a permit available. If the waiter is parked, Resume unparks
// it; otherwise the permit is consumed by the next Await. Calling Resume
// while a permit is already available has no effect.
func (l *Latch) Resume() {
	for {
		switch s := l.state.Load(); s {
		case latchEmpty:
			if l.state.CompareAndSwap(s, latchPermit) {
				return
			}
		case latchArmed:
			if l.state.CompareAndSwap(s, latchEmpty) {
				l.ch <- struct{}{}
				return
			}
		case latchPermit:
			return
		}
	}
}
