package storage

import (
	"context"

	"github.com/poiesic/ragmigrate/core"
)

// CheckpointRepository persists per-table migration progress.
// Implementations must be thread-safe and support concurrent access.
type CheckpointRepository interface {
	// SaveCheckpoint stores the checkpoint under its table name, replacing
	// any previous one. UpdatedAt is set automatically.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint retrieves the checkpoint for a table.
	// Returns nil, nil if no checkpoint exists.
	LoadCheckpoint(ctx context.Context, table string) (*core.Checkpoint, error)

	// ListCheckpoints returns every stored checkpoint ordered by table name.
	ListCheckpoints(ctx context.Context) ([]*core.Checkpoint, error)

	// DeleteCheckpoint removes the checkpoint for a table.
	// Returns ErrNotFound if none exists.
	DeleteCheckpoint(ctx context.Context, table string) error

	// Close releases the underlying storage.
	Close() error
}
