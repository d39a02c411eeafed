package migrate

import (
	"context"

	"github.com/poiesic/ragmigrate/core"
	"github.com/poiesic/ragmigrate/source"
)

// Cursor is an open read over one table.
type Cursor interface {
	// FetchPage returns up to pageSize records; an empty page means exhausted.
	FetchPage(ctx context.Context, pageSize int) ([]core.Record, error)

	// Skip discards up to n rows and returns how many were discarded.
	Skip(ctx context.Context, n int) (int, error)

	Close() error
}

// Source is the relational store a migration reads from.
type Source interface {
	// Count returns the number of rows in table.
	Count(ctx context.Context, table string) (int, error)

	// OpenCursor starts reading spec's table, honoring its limit.
	OpenCursor(ctx context.Context, spec core.TableSpec) (Cursor, error)
}

type readerSource struct {
	reader *source.Reader
}

// FromReader adapts a source.Reader to Source.
func FromReader(r *source.Reader) Source {
	return &readerSource{reader: r}
}

func (s *readerSource) Count(ctx context.Context, table string) (int, error) {
	return s.reader.Count(ctx, table)
}

func (s *readerSource) OpenCursor(ctx context.Context, spec core.TableSpec) (Cursor, error) {
	cursor, err := s.reader.OpenCursor(ctx, spec)
	if err != nil {
		return nil, err
	}
	return cursor, nil
}
