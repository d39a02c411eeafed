package migrate

import (
	"strings"

	"github.com/poiesic/ragmigrate/core"
)

const (
	// DefaultBatchSize is the number of documents joined into one payload.
	DefaultBatchSize = 10

	// BatchSeparator marks document boundaries inside a payload.
	BatchSeparator = "\n\n---\n\n"
)

// Accumulator collects documents into fixed-size batches.
// It is not safe for concurrent use.
type Accumulator struct {
	size int
	docs []string
}

// NewAccumulator creates an accumulator that is full at size documents.
// A size <= 0 uses DefaultBatchSize.
func NewAccumulator(size int) *Accumulator {
	if size <= 0 {
		size = DefaultBatchSize
	}
	return &Accumulator{
		size: size,
		docs: make([]string, 0, size),
	}
}

// Add appends a document to the current batch.
func (a *Accumulator) Add(doc core.Document) error {
	if doc == "" {
		return ErrEmptyDocument
	}
	if a.IsFull() {
		return ErrBatchFull
	}
	a.docs = append(a.docs, string(doc))
	return nil
}

// IsFull reports whether the batch holds exactly its maximum size.
func (a *Accumulator) IsFull() bool {
	return len(a.docs) >= a.size
}

// Len returns the number of documents in the current batch.
func (a *Accumulator) Len() int {
	return len(a.docs)
}

// Size returns the batch capacity.
func (a *Accumulator) Size() int {
	return a.size
}

// Flush joins the current documents into a payload and clears the batch.
// It returns false when the batch is empty.
func (a *Accumulator) Flush() (core.Payload, bool) {
	if len(a.docs) == 0 {
		return core.Payload{}, false
	}
	payload := core.Payload{
		Text:      strings.Join(a.docs, BatchSeparator),
		Documents: len(a.docs),
	}
	clear(a.docs)
	a.docs = a.docs[:0]
	return payload, true
}

// Remainder flushes whatever partial batch is left once the source is exhausted.
func (a *Accumulator) Remainder() (core.Payload, bool) {
	return a.Flush()
}
