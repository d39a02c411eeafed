// Package migrate moves table rows into the index service.
//
// A Migrator walks a fixed list of tables one at a time. For each table it
// pages records out of a Source, assembles each record into a document,
// collects documents into fixed-size batches with an Accumulator and submits
// every full batch to an index.Indexer, pausing between batches. Failed
// submissions are counted and the migration moves on. Once a table's cursor
// is exhausted the partial final batch is submitted.
//
// Progress lines go to the io.Writer given to NewMigrator; structured logs
// go to slog.
package migrate
