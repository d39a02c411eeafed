package source

import "errors"

var (
	// ErrEmptyDSN is returned when no connection string is configured.
	ErrEmptyDSN = errors.New("source DSN is empty")

	// ErrUnsupportedDSN is returned when the DSN form matches no known driver.
	ErrUnsupportedDSN = errors.New("unsupported source DSN")
)
