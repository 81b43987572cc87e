package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	roomKeyPrefix = "room:"
	roomIndexKey  = "rooms"
)

// RedisRepository stores room snapshots as JSON values under
// "room:<id>" with a set index under "rooms". Writes are last-write-
// wins; there are no durability guarantees beyond what Redis gives.
type RedisRepository struct {
	client *redis.Client
}

// NewRedisRepository wraps an existing Redis client.
func NewRedisRepository(client *redis.Client) *RedisRepository {
	return &RedisRepository{client: client}
}

func roomKey(id string) string {
	return roomKeyPrefix + id
}

func (s *RedisRepository) Get(ctx context.Context, id string) (Room, error) {
	data, err := s.client.Get(ctx, roomKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Room{}, ErrNotFound
	}
	if err != nil {
		return Room{}, fmt.Errorf("failed to get room %s: %w", id, err)
	}

	var r Room
	if err := json.Unmarshal(data, &r); err != nil {
		// A corrupt record is indistinguishable from a missing one for
		// callers; surface it as absent but keep a trace.
		log.Error().Err(err).Str("room_id", id).Msg("corrupt room record")
		return Room{}, ErrNotFound
	}
	return r, nil
}

func (s *RedisRepository) Create(ctx context.Context, r Room) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}

	ok, err := s.client.SetNX(ctx, roomKey(r.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to create room %s: %w", r.ID, err)
	}
	if !ok {
		return ErrExists
	}

	if err := s.client.SAdd(ctx, roomIndexKey, r.ID).Err(); err != nil {
		return fmt.Errorf("failed to index room %s: %w", r.ID, err)
	}
	return nil
}

func (s *RedisRepository) Update(ctx context.Context, r Room) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}

	// SET XX only writes when the key still exists, which is the
	// write-time existence check the disconnect race depends on.
	if err := s.client.SetXX(ctx, roomKey(r.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to update room %s: %w", r.ID, err)
	}
	return nil
}

func (s *RedisRepository) Delete(ctx context.Context, id string) error {
	if err := s.client.SRem(ctx, roomIndexKey, id).Err(); err != nil {
		return fmt.Errorf("failed to deindex room %s: %w", id, err)
	}
	if err := s.client.Del(ctx, roomKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete room %s: %w", id, err)
	}
	return nil
}

func (s *RedisRepository) ListIDs(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, roomIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list room ids: %w", err)
	}
	return ids, nil
}

func (s *RedisRepository) List(ctx context.Context) ([]Room, error) {
	ids, err := s.ListIDs(ctx)
	if err != nil {
		return nil, err
	}

	rooms := make([]Room, 0, len(ids))
	for _, id := range ids {
		r, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			// Index and records can diverge; skip dangling ids.
			continue
		}
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, r)
	}
	return rooms, nil
}
