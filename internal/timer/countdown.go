package timer

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Countdown is a restartable, cancelable one-second ticker counting a
// phase down to zero.
//
// Start fires onTick synchronously with the full initial value, then
// once per second with the post-decrement remainder. When the
// remainder reaches zero, onComplete fires exactly once and the
// countdown stops; zero itself is never ticked. Stop is idempotent
// and safe to call whether or not the countdown is running.
type Countdown struct {
	clock clockwork.Clock

	mu   sync.Mutex
	stop chan struct{} // non-nil while running
}

// NewCountdown creates a stopped countdown driven by the given clock.
func NewCountdown(clock clockwork.Clock) *Countdown {
	return &Countdown{clock: clock}
}

// Start begins ticking from initialSec. A countdown already running
// is replaced: the old run is stopped before the new one begins and
// its completion never fires.
func (c *Countdown) Start(initialSec int, onTick func(leftSec int), onComplete func()) {
	c.mu.Lock()
	if c.stop != nil {
		close(c.stop)
	}
	stop := make(chan struct{})
	c.stop = stop
	c.mu.Unlock()

	if initialSec <= 0 {
		c.finish(stop, onComplete)
		return
	}
	if onTick != nil {
		onTick(initialSec)
	}

	go c.run(initialSec, stop, onTick, onComplete)
}

// Stop cancels the countdown. Calling it when not running, or more
// than once, is a no-op. No callback fires after the cancellation is
// observed by the run loop.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

// Running reports whether a countdown is in flight.
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop != nil
}

func (c *Countdown) run(leftSec int, stop chan struct{}, onTick func(int), onComplete func()) {
	ticker := c.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			// A stop racing the tick wins: drop the tick.
			select {
			case <-stop:
				return
			default:
			}

			leftSec--
			if leftSec <= 0 {
				c.finish(stop, onComplete)
				return
			}
			if onTick != nil {
				onTick(leftSec)
			}
		}
	}
}

// finish clears the running state, provided this run still owns it,
// and fires completion once.
func (c *Countdown) finish(stop chan struct{}, onComplete func()) {
	c.mu.Lock()
	if c.stop == stop {
		c.stop = nil
	}
	c.mu.Unlock()

	if onComplete != nil {
		onComplete()
	}
}
