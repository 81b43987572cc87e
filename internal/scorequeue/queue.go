// Package scorequeue serializes score persistence per room. Two
// players' score updates can arrive close together, and each one is a
// read-modify-write of the room snapshot; funnelling them through one
// ordered queue per room is what prevents the lost-update race.
package scorequeue

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Op is one unit of score-mutation work. Ops report their own domain
// failures; an error returned here is logged and the queue moves on.
type Op func(ctx context.Context) error

// drainSignal is the one-shot completion of a single drain cycle.
// aborted is written before the channel closes, so readers observing
// the close see it consistently.
type drainSignal struct {
	ch      chan struct{}
	aborted bool
}

// Queue runs enqueued ops strictly in arrival order, one at a time.
// An empty queue starts draining on the first Add; ops added while
// draining join the same cycle. When the last op finishes, the cycle's
// drained signal fires exactly once.
type Queue struct {
	mu  sync.Mutex
	ops []Op
	sig *drainSignal // non-nil while draining
}

// New creates an idle queue.
func New() *Queue {
	return &Queue{}
}

// Add enqueues an op. If the queue was idle, draining begins
// immediately; otherwise the op waits for all earlier ops to finish.
func (q *Queue) Add(op Op) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.ops = append(q.ops, op)
	if q.sig == nil {
		sig := &drainSignal{ch: make(chan struct{})}
		q.sig = sig
		go q.drain(sig)
	}
}

// Busy reports whether a drain cycle is in progress.
func (q *Queue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sig != nil
}

// AwaitDrained invokes fn once the current drain cycle completes, or
// immediately if the queue is idle. If the queue is cleared before the
// cycle completes, fn is never invoked and the waiter goroutine
// exits. fn runs at most once per call.
func (q *Queue) AwaitDrained(fn func()) {
	q.mu.Lock()
	sig := q.sig
	q.mu.Unlock()

	if sig == nil {
		fn()
		return
	}

	go func() {
		<-sig.ch
		if sig.aborted {
			return
		}
		fn()
	}()
}

// Clear drops all pending ops without running them and aborts the
// current drain cycle without firing drained. The op currently
// executing, if any, still runs to completion. Safe on an idle queue.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.ops = nil
	if q.sig != nil {
		q.sig.aborted = true
		close(q.sig.ch)
		q.sig = nil
	}
}

func (q *Queue) drain(sig *drainSignal) {
	for {
		q.mu.Lock()
		if q.sig != sig {
			// Cleared mid-drain; the signal was already closed as
			// aborted. Stop without touching whatever replaced us.
			q.mu.Unlock()
			return
		}
		if len(q.ops) == 0 {
			q.sig = nil
			q.mu.Unlock()
			close(sig.ch)
			return
		}
		op := q.ops[0]
		q.ops = q.ops[1:]
		q.mu.Unlock()

		if err := op(context.Background()); err != nil {
			// Failure of one op never halts the queue.
			log.Error().Err(err).Msg("score update operation failed")
		}
	}
}
