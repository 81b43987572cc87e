package room

import "errors"

var (
	// ErrNotFound is returned when a room id has no record, either
	// because it never existed or was already torn down.
	ErrNotFound = errors.New("room not found")

	// ErrExists is returned by Create when the room id is taken.
	ErrExists = errors.New("room already exists")

	// ErrRoomFull is returned when a join would exceed the player limit.
	ErrRoomFull = errors.New("room is full")

	// ErrDuplicateName is returned when a room with the same display
	// name is already active.
	ErrDuplicateName = errors.New("room name already in use")

	// ErrPlayerNotInRoom is returned when an operation names a player
	// who holds no seat in the room.
	ErrPlayerNotInRoom = errors.New("player not in room")

	// ErrInvalidStateTransition is returned when an event is not legal
	// in the room's current state.
	ErrInvalidStateTransition = errors.New("invalid room state transition")
)
