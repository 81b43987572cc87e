package room

import (
	"context"
	"sync"
)

// MemoryRepository is a process-local Repository. It backs tests and
// redis-less development; semantics mirror RedisRepository exactly.
type MemoryRepository struct {
	mu    sync.RWMutex
	rooms map[string]Room
	index map[string]bool
}

// NewMemoryRepository creates an empty in-memory room directory.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		rooms: make(map[string]Room),
		index: make(map[string]bool),
	}
}

func (m *MemoryRepository) Get(ctx context.Context, id string) (Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rooms[id]
	if !ok {
		return Room{}, ErrNotFound
	}
	return r, nil
}

func (m *MemoryRepository) Create(ctx context.Context, r Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rooms[r.ID]; ok {
		return ErrExists
	}
	m.rooms[r.ID] = r
	m.index[r.ID] = true
	return nil
}

func (m *MemoryRepository) Update(ctx context.Context, r Room) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Existence is re-checked at write time: an update racing a
	// delete must not resurrect the room.
	if _, ok := m.rooms[r.ID]; !ok {
		return nil
	}
	m.rooms[r.ID] = r
	return nil
}

func (m *MemoryRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.rooms, id)
	delete(m.index, id)
	return nil
}

func (m *MemoryRepository) ListIDs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.index))
	for id := range m.index {
		ids = append(ids, id)
	}
	return ids, nil
}

func (m *MemoryRepository) List(ctx context.Context) ([]Room, error) {
	ids, err := m.ListIDs(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	rooms := make([]Room, 0, len(ids))
	for _, id := range ids {
		if r, ok := m.rooms[id]; ok {
			rooms = append(rooms, r)
		}
	}
	return rooms, nil
}
