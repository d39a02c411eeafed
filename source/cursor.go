package source

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/ragmigrate/core"
)

// DefaultPageSize is the default number of rows returned by FetchPage.
const DefaultPageSize = 100

// Cursor is an open read over one table. It holds a dedicated connection
// until Close is called.
type Cursor struct {
	table   string
	conn    *sql.Conn
	rows    *sql.Rows
	columns []string
	fetched int
	logger  *slog.Logger
}

// Columns returns the column names of the result set.
func (c *Cursor) Columns() []string {
	return c.columns
}

// Fetched returns the number of rows read so far, including skipped rows.
func (c *Cursor) Fetched() int {
	return c.fetched
}

// FetchPage reads up to pageSize records. An empty page means the cursor is
// exhausted; further calls keep returning an empty page.
func (c *Cursor) FetchPage(ctx context.Context, pageSize int) ([]core.Record, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if c.rows == nil {
		return nil, nil
	}

	page := make([]core.Record, 0, pageSize)
	for len(page) < pageSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !c.rows.Next() {
			break
		}
		record, err := c.scan()
		if err != nil {
			return nil, err
		}
		page = append(page, record)
	}

	if len(page) < pageSize {
		if err := c.finish(); err != nil {
			return nil, err
		}
	}

	c.fetched += len(page)
	return page, nil
}

// Skip discards up to n rows. It returns the number of rows skipped, which
// is less than n only when the cursor ran out of rows.
func (c *Cursor) Skip(ctx context.Context, n int) (int, error) {
	skipped := 0
	for skipped < n && c.rows != nil {
		if err := ctx.Err(); err != nil {
			return skipped, err
		}
		if !c.rows.Next() {
			if err := c.finish(); err != nil {
				return skipped, err
			}
			break
		}
		skipped++
	}
	c.fetched += skipped
	return skipped, nil
}

// Close releases the result set and returns the connection to the pool.
// It is safe to call more than once.
func (c *Cursor) Close() error {
	var err error
	if c.rows != nil {
		err = c.rows.Close()
		c.rows = nil
	}
	if c.conn != nil {
		if cerr := c.conn.Close(); err == nil {
			err = cerr
		}
		c.conn = nil
		c.logger.Debug("cursor closed", "table", c.table, "fetched", c.fetched)
	}
	return err
}

// finish closes the exhausted result set, surfacing any iteration error.
func (c *Cursor) finish() error {
	err := c.rows.Err()
	c.rows.Close()
	c.rows = nil
	if err != nil {
		return fmt.Errorf("iterate %s: %w", c.table, err)
	}
	return nil
}

func (c *Cursor) scan() (core.Record, error) {
	values := make([]any, len(c.columns))
	ptrs := make([]any, len(c.columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := c.rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("scan row: %w", err)
	}

	record := make(core.Record, len(c.columns))
	for i, col := range c.columns {
		record[col] = formatValue(values[i])
	}
	return record, nil
}

// formatValue converts a driver value to a string, keeping NULL as nil.
func formatValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(val)
	case string:
		return val
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprint(val)
	}
}
