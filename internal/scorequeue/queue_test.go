package scorequeue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type opRecorder struct {
	mu   sync.Mutex
	seen []int
}

func (r *opRecorder) op(n int) Op {
	return func(ctx context.Context) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.seen = append(r.seen, n)
		return nil
	}
}

func (r *opRecorder) snapshot() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.seen...)
}

func waitSignal(t *testing.T, ch <-chan struct{}, msg string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal(msg)
	}
}

func TestQueue_RunsOpsInArrivalOrder(t *testing.T) {
	q := New()
	rec := &opRecorder{}

	release := make(chan struct{})
	q.Add(func(ctx context.Context) error {
		<-release
		return rec.op(1)(ctx)
	})
	q.Add(rec.op(2))
	q.Add(rec.op(3))

	require.True(t, q.Busy())

	drained := make(chan struct{})
	q.AwaitDrained(func() { close(drained) })

	close(release)
	waitSignal(t, drained, "queue never drained")

	assert.Equal(t, []int{1, 2, 3}, rec.snapshot())
	assert.False(t, q.Busy())
}

func TestQueue_AwaitDrainedOnIdleQueueFiresImmediately(t *testing.T) {
	q := New()

	fired := false
	q.AwaitDrained(func() { fired = true })
	assert.True(t, fired)
}

func TestQueue_OpFailureDoesNotHaltDraining(t *testing.T) {
	q := New()
	rec := &opRecorder{}

	q.Add(func(ctx context.Context) error { return errors.New("boom") })
	q.Add(rec.op(1))

	drained := make(chan struct{})
	q.AwaitDrained(func() { close(drained) })
	waitSignal(t, drained, "queue never drained past failing op")

	assert.Equal(t, []int{1}, rec.snapshot())
}

func TestQueue_ClearDropsPendingAndSuppressesDrained(t *testing.T) {
	q := New()
	rec := &opRecorder{}

	release := make(chan struct{})
	started := make(chan struct{})
	q.Add(func(ctx context.Context) error {
		close(started)
		<-release
		return rec.op(1)(ctx)
	})
	q.Add(rec.op(2))

	waitSignal(t, started, "first op never started")

	drainedFired := make(chan struct{})
	q.AwaitDrained(func() { close(drainedFired) })

	q.Clear()
	assert.False(t, q.Busy())

	// The in-flight op still runs to completion; the pending one is
	// dropped and drained never fires.
	close(release)
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, []int{1}, rec.snapshot())
	select {
	case <-drainedFired:
		t.Fatal("drained fired after clear")
	default:
	}
}

func TestQueue_UsableAfterClear(t *testing.T) {
	q := New()
	rec := &opRecorder{}

	q.Clear()

	q.Add(rec.op(1))

	drained := make(chan struct{})
	q.AwaitDrained(func() { close(drained) })
	waitSignal(t, drained, "queue never drained after clear")

	assert.Equal(t, []int{1}, rec.snapshot())
}

func TestQueue_SecondCycleAfterDrain(t *testing.T) {
	q := New()
	rec := &opRecorder{}

	q.Add(rec.op(1))
	first := make(chan struct{})
	q.AwaitDrained(func() { close(first) })
	waitSignal(t, first, "first cycle never drained")

	q.Add(rec.op(2))
	second := make(chan struct{})
	q.AwaitDrained(func() { close(second) })
	waitSignal(t, second, "second cycle never drained")

	assert.Equal(t, []int{1, 2}, rec.snapshot())
}

func TestRegistry_GetOrCreateReturnsSameQueue(t *testing.T) {
	reg := NewRegistry()

	first := reg.GetOrCreate("room-1")
	second := reg.GetOrCreate("room-1")
	assert.Same(t, first, second)
	assert.NotSame(t, first, reg.GetOrCreate("room-2"))
}

func TestRegistry_RemoveClearsQueue(t *testing.T) {
	reg := NewRegistry()
	rec := &opRecorder{}

	q := reg.GetOrCreate("room-1")
	release := make(chan struct{})
	started := make(chan struct{})
	q.Add(func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	q.Add(rec.op(2))

	waitSignal(t, started, "first op never started")
	reg.Remove("room-1")
	close(release)

	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
	assert.Nil(t, reg.Get("room-1"))

	// Removing an absent room is safe.
	reg.Remove("room-1")
}
