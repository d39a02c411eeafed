// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import (
	"context"
	"errors"
	"time"

	"github.com/poiesic/ragmigrate/core"
	"github.com/poiesic/ragmigrate/storage"
)

// CheckpointRepository implements storage.CheckpointRepository for BadgerDB.
type CheckpointRepository struct {
	backend     *Backend
	ownsBackend bool
}

var _ storage.CheckpointRepository = (*CheckpointRepository)(nil)

// NewCheckpointRepository creates a CheckpointRepository on a shared backend.
// Closing the repository leaves the backend open.
func NewCheckpointRepository(backend *Backend) *CheckpointRepository {
	return &CheckpointRepository{
		backend: backend,
	}
}

// OpenCheckpointRepository opens (or creates) a checkpoint store in dir.
//
// Returns storage.CheckpointRepository interface (not *CheckpointRepository)
// so callers stay independent of the backend.
func OpenCheckpointRepository(dir string) (storage.CheckpointRepository, error) {
	backend, err := OpenBackend(dir, false)
	if err != nil {
		return nil, err
	}
	return &CheckpointRepository{backend: backend, ownsBackend: true}, nil
}

// SaveCheckpoint persists the checkpoint of a table.
func (r *CheckpointRepository) SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error {
	if checkpoint.Table == "" {
		return storage.ErrEmptyTable
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	checkpoint.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
	return r.backend.Put(makeCheckpointKey(checkpoint.Table), storage.MarshalCheckpoint(checkpoint))
}

// LoadCheckpoint retrieves the checkpoint of a table.
// Returns nil, nil if no checkpoint exists.
func (r *CheckpointRepository) LoadCheckpoint(ctx context.Context, table string) (*core.Checkpoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	value, err := r.backend.Get(makeCheckpointKey(table))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return storage.UnmarshalCheckpoint(value)
}

// ListCheckpoints returns all checkpoints ordered by table name.
func (r *CheckpointRepository) ListCheckpoints(ctx context.Context) ([]*core.Checkpoint, error) {
	var checkpoints []*core.Checkpoint
	err := r.backend.ForEachPrefix([]byte(checkpointPrefix), func(_, value []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		checkpoint, err := storage.UnmarshalCheckpoint(value)
		if err != nil {
			return err
		}
		checkpoints = append(checkpoints, checkpoint)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return checkpoints, nil
}

// DeleteCheckpoint removes the checkpoint of a table.
func (r *CheckpointRepository) DeleteCheckpoint(ctx context.Context, table string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.backend.Delete(makeCheckpointKey(table))
}

// Close closes the backend when the repository opened it.
func (r *CheckpointRepository) Close() error {
	if !r.ownsBackend || r.backend.IsClosed() {
		return nil
	}
	return r.backend.Close()
}
