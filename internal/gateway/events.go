package gateway

import (
	"encoding/json"
	"fmt"
)

// EventType names an event on the room session wire.
type EventType string

// Inbound events.
const (
	EventReady           EventType = "ready"
	EventGameDataUpdated EventType = "game_data_updated"
	EventResetRoom       EventType = "reset_room"
	EventRoomConfig      EventType = "room_config"
	EventPing            EventType = "ping"
)

// Outbound events.
const (
	EventAck                  EventType = "ack"
	EventBeforeStartGame      EventType = "before_start_game"
	EventGameStart            EventType = "game_start"
	EventGameLeftSec          EventType = "game_leftSec"
	EventGameOver             EventType = "game_over"
	EventRoomHostLeave        EventType = "room_host_leave"
	EventRoomParticipantLeave EventType = "room_participant_leave"
	EventOtherGameDataUpdated EventType = "other_game_data_updated"
	EventErrorOccur           EventType = "error_occur"
)

// Envelope is the wire frame for both directions. RequestID is set by
// the client on events it wants acknowledged; the matching ack echoes
// it back.
type Envelope struct {
	Type      EventType       `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// AckStatus is the outcome carried by an acknowledgment.
type AckStatus string

const (
	AckSuccess AckStatus = "SUCCESS"
	AckFailed  AckStatus = "FAILED"
)

// Ack acknowledges one inbound event. Every acknowledged event gets
// exactly one of these, on success and failure paths alike.
type Ack struct {
	RequestID string    `json:"request_id"`
	Status    AckStatus `json:"status"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// DeltaKind tags one entry of a game-data batch. Only score deltas are
// persisted; every other kind is relayed to the opponent verbatim.
type DeltaKind string

const (
	DeltaNextPieceBag DeltaKind = "NEXT_PIECE_BAG"
	DeltaHoldPiece    DeltaKind = "HOLD_PIECE"
	DeltaMatrix       DeltaKind = "MATRIX"
	DeltaScore        DeltaKind = "SCORE"
	DeltaLevel        DeltaKind = "LEVEL"
	DeltaLine         DeltaKind = "LINE"
)

// GameDelta is one heterogeneous game-state change in a
// game_data_updated batch.
type GameDelta struct {
	Kind DeltaKind       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ScoreValue decodes the delta payload as a score. Only meaningful
// for DeltaScore entries.
func (d GameDelta) ScoreValue() (int, error) {
	var score int
	if err := json.Unmarshal(d.Data, &score); err != nil {
		return 0, fmt.Errorf("failed to decode score delta: %w", err)
	}
	return score, nil
}

// ErrorPayload is the body of an error_occur broadcast.
type ErrorPayload struct {
	Message string `json:"message"`
}
