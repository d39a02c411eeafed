package badger

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/poiesic/ragmigrate/storage"
)

// Backend is a small key/value view of a BadgerDB instance: point reads and
// writes plus ordered prefix scans, each in its own transaction.
type Backend struct {
	db     *badger.DB
	logger *slog.Logger
}

// slogAdapter routes badger's printf-style logging to slog.
type slogAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*slogAdapter)(nil)

func (a *slogAdapter) Errorf(msg string, items ...any) {
	a.logger.Error(fmt.Sprintf(msg, items...))
}

func (a *slogAdapter) Warningf(msg string, items ...any) {
	a.logger.Warn(fmt.Sprintf(msg, items...))
}

// Infof is demoted to debug; badger is chatty at info level.
func (a *slogAdapter) Infof(msg string, items ...any) {
	a.logger.Debug(fmt.Sprintf(msg, items...))
}

func (a *slogAdapter) Debugf(msg string, items ...any) {
	a.logger.Debug(fmt.Sprintf(msg, items...))
}

// OpenBackend opens the store in dir, creating the directory when missing.
// With inMemory set, dir is ignored and nothing touches the disk.
func OpenBackend(dir string, inMemory bool) (*Backend, error) {
	logger := slog.Default().With("component", "checkpoint-store")

	opts := badger.DefaultOptions("").WithInMemory(true)
	if !inMemory {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts = opts.
		WithLogger(&slogAdapter{logger: logger}).
		WithCompression(options.None).
		WithValueLogFileSize(16 << 20).
		WithMemTableSize(8 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	logger.Debug("checkpoint store opened", "dir", dir, "inMemory", inMemory)
	return &Backend{db: db, logger: logger}, nil
}

// Close closes the database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// IsClosed reports whether Close has been called.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// Get returns a copy of the value stored at key, or storage.ErrNotFound.
func (b *Backend) Get(key []byte) ([]byte, error) {
	if b.db.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	var value []byte
	err := b.db.View(func(tx *badger.Txn) error {
		item, err := tx.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	return value, err
}

// Put stores value at key.
func (b *Backend) Put(key, value []byte) error {
	if b.db.IsClosed() {
		return storage.ErrStorageClosed
	}
	return b.db.Update(func(tx *badger.Txn) error {
		return tx.Set(key, value)
	})
}

// Delete removes key, returning storage.ErrNotFound when it is absent.
func (b *Backend) Delete(key []byte) error {
	if b.db.IsClosed() {
		return storage.ErrStorageClosed
	}
	return b.db.Update(func(tx *badger.Txn) error {
		if _, err := tx.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return tx.Delete(key)
	})
}

// ForEachPrefix calls fn with every key starting with prefix and its value,
// in key order. The value is only valid during the call.
func (b *Backend) ForEachPrefix(prefix []byte, fn func(key, value []byte) error) error {
	if b.db.IsClosed() {
		return storage.ErrStorageClosed
	}
	return b.db.View(func(tx *badger.Txn) error {
		it := tx.NewIterator(badger.IteratorOptions{PrefetchValues: true, PrefetchSize: 16, Prefix: prefix})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			key := item.KeyCopy(nil)
			if err := item.Value(func(val []byte) error {
				return fn(key, val)
			}); err != nil {
				return err
			}
		}
		return nil
	})
}
