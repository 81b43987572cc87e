package scorequeue

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Registry keys score queues by room id, created lazily on first
// admission and dropped synchronously at room teardown.
type Registry struct {
	mu     sync.Mutex
	queues map[string]*Queue
}

// NewRegistry creates an empty queue registry.
func NewRegistry() *Registry {
	return &Registry{queues: make(map[string]*Queue)}
}

// GetOrCreate returns the room's queue, creating it if absent.
func (reg *Registry) GetOrCreate(roomID string) *Queue {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	q, ok := reg.queues[roomID]
	if !ok {
		q = New()
		reg.queues[roomID] = q
		log.Debug().Str("room_id", roomID).Msg("score queue created")
	}
	return q
}

// Get returns the room's queue or nil.
func (reg *Registry) Get(roomID string) *Queue {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.queues[roomID]
}

// Remove clears pending ops and drops the entry. Safe for rooms that
// never had a queue.
func (reg *Registry) Remove(roomID string) {
	reg.mu.Lock()
	q, ok := reg.queues[roomID]
	delete(reg.queues, roomID)
	reg.mu.Unlock()

	if ok {
		q.Clear()
		log.Debug().Str("room_id", roomID).Msg("score queue removed")
	}
}
