package gateway

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/blockduel/blockduel/internal/room"
	"github.com/blockduel/blockduel/internal/scorequeue"
	"github.com/blockduel/blockduel/internal/timer"
)

// DefaultBeforeGameSec is the fixed length of the pre-match countdown.
const DefaultBeforeGameSec = 3

// Coordinator drives the room lifecycle from session events: readiness
// and the two countdown phases, score serialization, reset, and the
// leave protocol. It owns the per-room timer and score-queue
// registries; both are created lazily on admission and torn down
// synchronously with their room.
//
// Every handler follows the same containment pattern: a failure is
// acked to the caller and/or broadcast as error_occur, logged, and
// never allowed to take the connection down.
type Coordinator struct {
	repo          room.Repository
	broadcaster   Broadcaster
	timers        *timer.Registry
	queues        *scorequeue.Registry
	beforeGameSec int
}

// NewCoordinator wires the coordinator. beforeGameSec falls back to
// the default pre-match countdown when zero.
func NewCoordinator(repo room.Repository, b Broadcaster, timers *timer.Registry, queues *scorequeue.Registry, beforeGameSec int) *Coordinator {
	if beforeGameSec <= 0 {
		beforeGameSec = DefaultBeforeGameSec
	}
	return &Coordinator{
		repo:          repo,
		broadcaster:   b,
		timers:        timers,
		queues:        queues,
		beforeGameSec: beforeGameSec,
	}
}

// HandleConnect arms the room's timer and score queue if this is the
// first connection to need them.
func (c *Coordinator) HandleConnect(ctx context.Context, sess Session) {
	c.timers.GetOrCreate(sess.RoomID)
	c.queues.GetOrCreate(sess.RoomID)

	log.Info().
		Str("player", sess.PlayerName).
		Str("room_id", sess.RoomID).
		Msg("player joined room session")
}

// HandleEvent routes one inbound event to its handler.
func (c *Coordinator) HandleEvent(ctx context.Context, sess Session, env Envelope) {
	switch env.Type {
	case EventReady:
		c.handleReady(ctx, sess, env)
	case EventGameDataUpdated:
		c.handleGameData(ctx, sess, env)
	case EventResetRoom:
		c.handleReset(ctx, sess, env)
	case EventRoomConfig:
		c.handleRoomConfig(ctx, sess, env)
	case EventPing:
		c.ackSuccess(sess, env, nil)
	default:
		log.Warn().
			Str("event", string(env.Type)).
			Str("connection_id", sess.ConnID).
			Msg("unknown event")
		if env.RequestID != "" {
			c.ackFailed(sess, env, errors.New("unknown event"))
		}
	}
}

// handleReady flips the caller's ready flag. When the flip makes a
// full room unanimously ready, the room moves to GAME_START and the
// pre-match countdown begins.
func (c *Coordinator) handleReady(ctx context.Context, sess Session, env Envelope) {
	rm, err := c.repo.Get(ctx, sess.RoomID)
	if err != nil {
		c.ackFailed(sess, env, err)
		c.reportRoomError(sess.RoomID, err)
		return
	}
	if rm.State != room.StateCreated {
		c.ackFailed(sess, env, room.ErrInvalidStateTransition)
		return
	}

	next := rm.WithPlayerReady(sess.PlayerID)
	if !next.AllPlayersReady() {
		if err := c.repo.Update(ctx, next); err != nil {
			c.ackFailed(sess, env, err)
			c.reportRoomError(sess.RoomID, err)
			return
		}
		c.ackSuccess(sess, env, nil)
		return
	}

	if err := c.repo.Update(ctx, next.WithState(room.StateGameStart)); err != nil {
		c.ackFailed(sess, env, err)
		c.reportRoomError(sess.RoomID, err)
		return
	}
	c.ackSuccess(sess, env, map[string]any{"players": next.Players})

	log.Info().Str("room_id", sess.RoomID).Msg("room is about to start game")
	c.startBeforeGameCountdown(sess.RoomID)
}

func (c *Coordinator) startBeforeGameCountdown(roomID string) {
	rt := c.timers.GetOrCreate(roomID)
	rt.StartBeforeGameCountdown(c.beforeGameSec,
		func(leftSec int) {
			c.broadcaster.EmitToRoom(roomID, EventBeforeStartGame, leftSec)
		},
		func() {
			c.handleGameStart(roomID)
		},
	)
}

// handleGameStart fires when the pre-match countdown completes: the
// match begins and the game-end countdown is armed with the room's
// configured duration.
func (c *Coordinator) handleGameStart(roomID string) {
	ctx := context.Background()

	rm, err := c.repo.Get(ctx, roomID)
	if err != nil {
		c.reportRoomError(roomID, err)
		return
	}
	rt := c.timers.Get(roomID)
	if rt == nil {
		// Room torn down between the two phases.
		return
	}
	rt.ClearBeforeGameCountdown()

	c.broadcaster.EmitToRoom(roomID, EventGameStart, rm.Players)
	rt.StartGameEndCountdown(rm.Config.MatchSec,
		func(leftSec int) {
			c.broadcaster.EmitToRoom(roomID, EventGameLeftSec, leftSec)
		},
		func() {
			c.handleGameEnd(roomID)
		},
	)
}

// handleGameEnd fires when the match clock runs out. Result
// computation is deferred until every in-flight score write has
// applied, so the final snapshot is never stale.
func (c *Coordinator) handleGameEnd(roomID string) {
	if rt := c.timers.Get(roomID); rt != nil {
		rt.ClearGameEndCountdown()
	}

	q := c.queues.Get(roomID)
	if q == nil {
		c.finishGame(roomID)
		return
	}
	if q.Busy() {
		log.Debug().Str("room_id", roomID).Msg("waiting for score queue to drain before ending game")
	}
	q.AwaitDrained(func() {
		c.finishGame(roomID)
	})
}

func (c *Coordinator) finishGame(roomID string) {
	ctx := context.Background()

	rm, err := c.repo.Get(ctx, roomID)
	if errors.Is(err, room.ErrNotFound) {
		// Torn down while waiting on the drain.
		return
	}
	if err != nil {
		c.reportRoomError(roomID, err)
		return
	}

	result := room.ComputeResult(rm)
	c.broadcaster.EmitToRoom(roomID, EventGameOver, result)
	log.Info().
		Str("room_id", roomID).
		Bool("is_tie", result.IsTie).
		Str("winner_id", result.WinnerID).
		Str("loser_id", result.LoserID).
		Msg("game over")

	if err := c.repo.Update(ctx, rm.WithState(room.StateGameEnd).WithZeroScores()); err != nil {
		c.reportRoomError(roomID, err)
	}
}

// handleGameData relays the whole batch to the other room members and
// funnels score deltas through the room's serializer. Only score
// deltas are persisted.
func (c *Coordinator) handleGameData(ctx context.Context, sess Session, env Envelope) {
	var deltas []GameDelta
	if err := json.Unmarshal(env.Data, &deltas); err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", sess.ConnID).
			Msg("dropping malformed game data batch")
		return
	}

	c.broadcaster.EmitToOthers(sess.RoomID, sess.ConnID, EventOtherGameDataUpdated, deltas)

	q := c.queues.Get(sess.RoomID)
	if q == nil {
		c.reportRoomError(sess.RoomID, errors.New("score queue not found"))
		return
	}

	roomID, playerID := sess.RoomID, sess.PlayerID
	for _, d := range deltas {
		if d.Kind != DeltaScore {
			continue
		}
		score, err := d.ScoreValue()
		if err != nil {
			log.Warn().Err(err).Str("room_id", roomID).Msg("dropping malformed score delta")
			continue
		}
		q.Add(func(opCtx context.Context) error {
			rm, err := c.repo.Get(opCtx, roomID)
			if errors.Is(err, room.ErrNotFound) {
				// Room torn down after the update was enqueued.
				return nil
			}
			if err != nil {
				c.reportRoomError(roomID, err)
				return err
			}
			if err := c.repo.Update(opCtx, rm.WithPlayerScore(playerID, score)); err != nil {
				c.reportRoomError(roomID, err)
				return err
			}
			return nil
		})
	}
}

// handleReset returns a finished or interrupted room to CREATED with
// all players not ready and scores wiped, making it reusable for a
// rematch. Resetting a room already in CREATED is rejected.
func (c *Coordinator) handleReset(ctx context.Context, sess Session, env Envelope) {
	rm, err := c.repo.Get(ctx, sess.RoomID)
	if err != nil {
		c.ackFailed(sess, env, err)
		c.reportRoomError(sess.RoomID, err)
		return
	}
	if rm.State != room.StateGameEnd && rm.State != room.StateGameInterrupt {
		c.ackFailed(sess, env, room.ErrInvalidStateTransition)
		return
	}

	next := rm.WithState(room.StateCreated).WithAllPlayersNotReady().WithZeroScores()
	if err := c.repo.Update(ctx, next); err != nil {
		c.ackFailed(sess, env, err)
		c.reportRoomError(sess.RoomID, err)
		return
	}

	c.ackSuccess(sess, env, nil)
	log.Info().Str("room_id", sess.RoomID).Msg("room reset")
}

func (c *Coordinator) handleRoomConfig(ctx context.Context, sess Session, env Envelope) {
	rm, err := c.repo.Get(ctx, sess.RoomID)
	if err != nil {
		c.ackFailed(sess, env, err)
		return
	}
	c.ackSuccess(sess, env, map[string]any{"initialLevel": rm.Config.InitialLevel})
}

// HandleDisconnect runs the leave protocol. Host departure and the
// empty-room condition delete the room; a non-host departure mid-match
// interrupts it. Timers and the score queue for a deleted room are
// cleared before this returns.
func (c *Coordinator) HandleDisconnect(ctx context.Context, sess Session) {
	log.Info().
		Str("player", sess.PlayerName).
		Str("room_id", sess.RoomID).
		Msg("player disconnected")

	rm, err := c.repo.Get(ctx, sess.RoomID)
	if errors.Is(err, room.ErrNotFound) {
		// Room already gone (host left first); drop any leftover
		// per-room state for the last session out.
		c.timers.Remove(sess.RoomID)
		c.queues.Remove(sess.RoomID)
		return
	}
	if err != nil {
		c.reportRoomError(sess.RoomID, err)
		return
	}

	removed := rm.WithoutPlayer(sess.PlayerID)
	isHost := rm.IsHost(sess.PlayerID)

	switch {
	case isHost || removed.IsEmpty():
		c.timers.Remove(sess.RoomID)
		c.queues.Remove(sess.RoomID)
		if err := c.repo.Delete(ctx, sess.RoomID); err != nil {
			c.reportRoomError(sess.RoomID, err)
			return
		}
		if isHost {
			c.broadcaster.EmitToRoom(sess.RoomID, EventRoomHostLeave, nil)
		}
		log.Info().Str("room_id", sess.RoomID).Bool("host_left", isHost).Msg("room deleted")

	case rm.State == room.StateGameStart:
		if err := c.repo.Update(ctx, removed.WithState(room.StateGameInterrupt)); err != nil {
			c.reportRoomError(sess.RoomID, err)
			return
		}
		if rt := c.timers.Get(sess.RoomID); rt != nil {
			rt.Clear()
		}
		if q := c.queues.Get(sess.RoomID); q != nil {
			q.Clear()
		}
		c.broadcaster.EmitToRoom(sess.RoomID, EventRoomParticipantLeave, nil)
		log.Info().Str("room_id", sess.RoomID).Msg("game interrupted by participant leave")

	default:
		if err := c.repo.Update(ctx, removed); err != nil {
			c.reportRoomError(sess.RoomID, err)
		}
	}
}

func (c *Coordinator) ackSuccess(sess Session, env Envelope, data any) {
	c.broadcaster.EmitToConnection(sess.ConnID, EventAck, Ack{
		RequestID: env.RequestID,
		Status:    AckSuccess,
		Data:      data,
	})
}

func (c *Coordinator) ackFailed(sess Session, env Envelope, err error) {
	c.broadcaster.EmitToConnection(sess.ConnID, EventAck, Ack{
		RequestID: env.RequestID,
		Status:    AckFailed,
		Error:     err.Error(),
	})
}

func (c *Coordinator) reportRoomError(roomID string, err error) {
	log.Error().Err(err).Str("room_id", roomID).Msg("room operation failed")
	c.broadcaster.EmitToRoom(roomID, EventErrorOccur, ErrorPayload{Message: err.Error()})
}
