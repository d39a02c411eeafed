package index

import "context"

// Indexer is the remote retrieval-indexing service the migration loads into.
// Implementations must be safe for concurrent use.
type Indexer interface {
	// IsAvailable reports whether the service answers its health endpoint
	// with a success status. It never returns an error; any failure is false.
	IsAvailable(ctx context.Context) bool

	// Submit sends one text payload for indexing.
	// Returns nil when the service accepted the payload. Any transport failure
	// or non-success response yields an error matching core.ErrSubmission,
	// usually a *SubmitError. Implementations do not retry.
	Submit(ctx context.Context, text string) error

	// Query runs a retrieval query against the indexed content and returns
	// the service's answer text. mode selects the retrieval strategy
	// (e.g. "local", "global", "hybrid").
	Query(ctx context.Context, query, mode string) (string, error)

	// Close releases resources held by the client.
	Close() error
}
