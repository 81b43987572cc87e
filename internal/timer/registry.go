package timer

import (
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Registry keys room timers by room id. It is owned by the session
// coordinator; entries are created lazily on first admission to a
// room and must be removed synchronously when the room is torn down
// so that no armed countdown outlives its room.
type Registry struct {
	clock clockwork.Clock

	mu     sync.Mutex
	timers map[string]*RoomTimer
}

// NewRegistry creates an empty timer registry on the given clock.
func NewRegistry(clock clockwork.Clock) *Registry {
	return &Registry{
		clock:  clock,
		timers: make(map[string]*RoomTimer),
	}
}

// GetOrCreate returns the room's timer, creating it if absent.
func (reg *Registry) GetOrCreate(roomID string) *RoomTimer {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	t, ok := reg.timers[roomID]
	if !ok {
		t = NewRoomTimer(reg.clock)
		reg.timers[roomID] = t
		log.Debug().Str("room_id", roomID).Msg("room timer created")
	}
	return t
}

// Get returns the room's timer or nil.
func (reg *Registry) Get(roomID string) *RoomTimer {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.timers[roomID]
}

// Remove clears both countdown phases and drops the entry. Safe to
// call for rooms that never had a timer.
func (reg *Registry) Remove(roomID string) {
	reg.mu.Lock()
	t, ok := reg.timers[roomID]
	delete(reg.timers, roomID)
	reg.mu.Unlock()

	if ok {
		t.Clear()
		log.Debug().Str("room_id", roomID).Msg("room timer removed")
	}
}
