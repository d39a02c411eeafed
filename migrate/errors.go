package migrate

import "errors"

var (
	// ErrBatchFull is returned by Accumulator.Add when the batch must be flushed first.
	ErrBatchFull = errors.New("batch is full")

	// ErrEmptyDocument is returned by Accumulator.Add for an empty document.
	ErrEmptyDocument = errors.New("empty document")

	// ErrIndexUnavailable marks a table aborted because the index service did not answer its health check.
	ErrIndexUnavailable = errors.New("index service unavailable")

	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrInvalidConfig wraps configuration validation failures.
	ErrInvalidConfig = errors.New("invalid migration config")
)
