package source

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/ragmigrate/core"
)

// Reader reads rows from a relational store.
// It is safe for concurrent use; each Cursor owns a dedicated connection.
type Reader struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
}

// Option configures a Reader.
type Option func(*Reader)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reader) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Open prepares a Reader for the store addressed by dsn.
// The driver is selected from the DSN form (see ParseDSN). No connection is
// made until the first query, so an unreachable store surfaces at Count or
// OpenCursor time.
func Open(dsn string, opts ...Option) (*Reader, error) {
	driver, driverDSN, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, driverDSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(10 * time.Minute)

	r := &Reader{
		db:     db,
		driver: driver,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "source", "driver", driver)
	return r, nil
}

// Driver returns the database/sql driver name in use.
func (r *Reader) Driver() string {
	return r.driver
}

// Ping verifies the store is reachable.
func (r *Reader) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", core.ErrConnection, err)
	}
	return nil
}

// Count returns the number of rows in table.
func (r *Reader) Count(ctx context.Context, table string) (int, error) {
	if err := core.ValidateTableName(table); err != nil {
		return 0, fmt.Errorf("%w: %w", core.ErrSourceQuery, err)
	}

	conn, err := r.conn(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	var count int
	row := conn.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table))
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: count %s: %w", core.ErrSourceQuery, table, err)
	}
	return count, nil
}

// OpenCursor starts an unordered full read of spec's table, capped at
// spec.Limit rows when a limit is set. The caller must Close the cursor.
func (r *Reader) OpenCursor(ctx context.Context, spec core.TableSpec) (*Cursor, error) {
	if err := core.ValidateTableName(spec.Name); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrSourceQuery, err)
	}

	conn, err := r.conn(ctx)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT * FROM %s", spec.Name)
	if spec.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", spec.Limit)
	}

	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %s: %w", core.ErrSourceQuery, spec.Name, err)
	}

	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		conn.Close()
		return nil, fmt.Errorf("%w: columns: %w", core.ErrSourceQuery, err)
	}

	r.logger.Debug("cursor opened", "table", spec.Name, "limit", spec.Limit, "columns", len(cols))

	return &Cursor{
		table:   spec.Name,
		conn:    conn,
		rows:    rows,
		columns: cols,
		logger:  r.logger,
	}, nil
}

// Close closes the underlying connection pool.
func (r *Reader) Close() error {
	return r.db.Close()
}

// conn acquires a dedicated, verified connection from the pool.
func (r *Reader) conn(ctx context.Context) (*sql.Conn, error) {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrConnection, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %w", core.ErrConnection, err)
	}
	return conn, nil
}
