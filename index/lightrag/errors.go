package lightrag

import "errors"

// ErrQueryFailed is returned when the service answers a query with a
// non-success status or an unreadable body.
var ErrQueryFailed = errors.New("query failed")
