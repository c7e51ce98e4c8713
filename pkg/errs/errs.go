// Package errs defines the error kinds the room runtime surfaces to callers.
// Services wrap these sentinels with context via fmt.Errorf and %w; handlers
// classify with errors.Is.
package errs

import (
	"errors"
	"net/http"
)

var (
	// ErrNotFound: a referenced room, item, or user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrPreconditionFailed: the operation's precondition does not hold,
	// e.g. starting a non-QUEUED item or a failed membership check.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrRateLimited: chat throughput over the per-user window threshold.
	ErrRateLimited = errors.New("rate limited")

	// ErrStoreUnavailable: the ephemeral or durable store is unreachable
	// or timed out. Callers must treat timeouts as this, never as success.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInconsistent: a compensating write failed, leaving the durable and
	// ephemeral stores out of sync. Requires out-of-band reconciliation.
	ErrInconsistent = errors.New("stores inconsistent")
)

// HTTPStatus maps an error to the status code handlers should respond with.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrPreconditionFailed):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
