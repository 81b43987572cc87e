package timer

import "github.com/jonboulle/clockwork"

// RoomTimer owns the two countdown phases of a match: the short
// before-game countdown and the configured game-end countdown. The
// phases never overlap in time but are independently cancelable, since
// a disconnect can interrupt either one.
type RoomTimer struct {
	beforeGame *Countdown
	gameEnd    *Countdown
}

// NewRoomTimer creates a room timer with both phases stopped.
func NewRoomTimer(clock clockwork.Clock) *RoomTimer {
	return &RoomTimer{
		beforeGame: NewCountdown(clock),
		gameEnd:    NewCountdown(clock),
	}
}

// StartBeforeGameCountdown arms the pre-match countdown.
func (t *RoomTimer) StartBeforeGameCountdown(sec int, onTick func(leftSec int), onComplete func()) {
	t.beforeGame.Start(sec, onTick, onComplete)
}

// ClearBeforeGameCountdown cancels the pre-match countdown. Idempotent.
func (t *RoomTimer) ClearBeforeGameCountdown() {
	t.beforeGame.Stop()
}

// StartGameEndCountdown arms the match-duration countdown.
func (t *RoomTimer) StartGameEndCountdown(sec int, onTick func(leftSec int), onComplete func()) {
	t.gameEnd.Start(sec, onTick, onComplete)
}

// ClearGameEndCountdown cancels the match-duration countdown. Idempotent.
func (t *RoomTimer) ClearGameEndCountdown() {
	t.gameEnd.Stop()
}

// Clear cancels both phases unconditionally. Used on room deletion,
// disconnect-triggered interrupts and resets.
func (t *RoomTimer) Clear() {
	t.beforeGame.Stop()
	t.gameEnd.Stop()
}
