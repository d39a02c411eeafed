package index

import (
	"fmt"

	"github.com/poiesic/ragmigrate/core"
)

// SubmitError describes a payload the index service did not accept.
// StatusCode is zero when the request never got a response.
type SubmitError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *SubmitError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("submit: %v", e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("submit: status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("submit: status %d", e.StatusCode)
}

// Unwrap exposes both the transport error and core.ErrSubmission.
func (e *SubmitError) Unwrap() []error {
	if e.Err != nil {
		return []error{core.ErrSubmission, e.Err}
	}
	return []error{core.ErrSubmission}
}

// Reason returns a short, low-cardinality classification of the failure,
// suitable for metric labels.
func (e *SubmitError) Reason() string {
	switch {
	case e.StatusCode == 0:
		return "transport"
	case e.StatusCode >= 500:
		return "server_error"
	case e.StatusCode == 429:
		return "rate_limited"
	default:
		return "rejected"
	}
}
