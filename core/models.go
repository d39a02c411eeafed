package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a content-derived identifier.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// TableSpec declares which relational table to migrate and which fields to
// extract from each of its rows.
type TableSpec struct {
	// Name is the table name, optionally schema qualified ("public.makaleler").
	Name string `mapstructure:"name" yaml:"name"`

	// Fields lists the fields to extract besides the primary title-like field, in output order.
	Fields []string `mapstructure:"fields" yaml:"fields"`

	// Limit caps the number of rows read. Zero means no limit.
	Limit int `mapstructure:"limit" yaml:"limit,omitempty"`
}

// Expected returns the number of records a migration of this table will read
// given the table's row count.
func (s TableSpec) Expected(count int) int {
	if s.Limit > 0 && s.Limit < count {
		return s.Limit
	}
	return count
}

// Record is a single source row keyed by column name.
// Values are either a string or nil (SQL NULL).
type Record map[string]any

// Document is the assembled, human-labeled text for one record.
// The empty Document means no configured field was present.
type Document string

// Payload is the joined text of one flushed batch.
type Payload struct {
	Text      string
	Documents int // number of documents joined into Text
}

// Fingerprint returns a stable hash of the payload text.
func (p Payload) Fingerprint() ID {
	return IDFromContent(p.Text)
}

// ProgressCounters holds the running counts of one table migration.
type ProgressCounters struct {
	Table   string
	Total   int // rows expected, already capped by the table limit
	Indexed int // documents accepted by the index service
	Failed  int // documents in batches the index service rejected
	Dropped int // records that assembled to an empty document
}

// Checkpoint is the persisted progress of a table migration.
// It lets an interrupted run resume where the previous one stopped.
type Checkpoint struct {
	Table     string
	RunID     string
	Consumed  int64 // source rows fully accounted for (flushed or dropped)
	Indexed   int64
	Failed    int64
	Dropped   int64
	Total     int64
	Done      bool
	LastBatch ID
	UpdatedAt time.Time
}
