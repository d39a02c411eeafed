// Package source reads rows from a relational store page by page.
//
// A Reader wraps a database/sql pool for PostgreSQL (lib/pq), MySQL
// (go-sql-driver/mysql) or SQLite (modernc.org/sqlite). A Cursor streams one
// table with a single unordered SELECT, optionally limited, and hands rows out
// as core.Record values in fixed-size pages until an empty page signals
// exhaustion.
//
// Errors are classified with core.ErrConnection (store unreachable) and
// core.ErrSourceQuery (bad or unknown table).
package source
