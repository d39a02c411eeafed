package assemble

import "errors"

var (
	// ErrInvalidRule is returned when a field rule list cannot form a Schema.
	ErrInvalidRule = errors.New("invalid field rule")
)
