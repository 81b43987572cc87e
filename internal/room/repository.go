package room

import "context"

// Repository is the pluggable room directory. Implementations must
// honour two ordering-safety contracts that the session layer relies
// on:
//
//   - Update is a silent no-op when the room no longer exists. The
//     existence check happens at write time, not when the caller read
//     its snapshot, so an update racing a delete lands harmlessly.
//   - List tolerates divergence between the id index and the records,
//     skipping ids whose lookup comes back empty instead of failing.
type Repository interface {
	// Get returns the room or ErrNotFound.
	Get(ctx context.Context, id string) (Room, error)

	// Create stores a new room and indexes its id. Returns ErrExists
	// if the id is already taken.
	Create(ctx context.Context, r Room) error

	// Update overwrites an existing room snapshot. No-op if the room
	// is gone.
	Update(ctx context.Context, r Room) error

	// Delete removes the record and its index entry. Deleting an
	// absent room is not an error.
	Delete(ctx context.Context, id string) error

	// ListIDs enumerates known room ids from the index.
	ListIDs(ctx context.Context) ([]string, error)

	// List resolves the index to room snapshots, skipping dangling ids.
	List(ctx context.Context) ([]Room, error)
}
