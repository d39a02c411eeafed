package source

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/poiesic/ragmigrate/core"
)

// NewSQLiteFixture creates a SQLite database at path containing one table with
// the given TEXT columns and rows, and returns a DSN that Open accepts.
// Intended for tests; columns missing from a record are stored as NULL.
func NewSQLiteFixture(path, table string, columns []string, rows []core.Record) (string, error) {
	if err := core.ValidateTableName(table); err != nil {
		return "", err
	}

	db, err := sql.Open(DriverSQLite, path)
	if err != nil {
		return "", err
	}
	defer db.Close()

	quoted := make([]string, len(columns))
	defs := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = `"` + strings.ReplaceAll(col, `"`, `""`) + `"`
		defs[i] = quoted[i] + " TEXT"
		marks[i] = "?"
	}

	if _, err := db.Exec(fmt.Sprintf("CREATE TABLE %s (%s)", table, strings.Join(defs, ", "))); err != nil {
		return "", fmt.Errorf("create %s: %w", table, err)
	}

	tx, err := db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(quoted, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return "", err
	}
	defer stmt.Close()

	for _, row := range rows {
		args := make([]any, len(columns))
		for i, col := range columns {
			args[i] = row[col]
		}
		if _, err := stmt.Exec(args...); err != nil {
			return "", fmt.Errorf("insert into %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return "sqlite://" + path, nil
}
