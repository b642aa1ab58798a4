package syncer

import (
	"math/rand"
	"time"
)

// Retry policy defaults. Transient provider errors (throttling, brief
// unavailability) are retried with exponential backoff; everything else
// fails the action on the first attempt.
const (
	// DefaultMaxAttempts bounds tries per action, first attempt included.
	DefaultMaxAttempts = 3

	// DefaultRetryBaseDelay is the backoff before the second attempt.
	DefaultRetryBaseDelay = 200 * time.Millisecond

	// maxRetryDelay caps the exponential growth.
	maxRetryDelay = 5 * time.Second
)

// backoffDelay returns the delay before the given retry. attempt is the
// attempt that just failed (1-based). Full jitter: a uniform draw over
// the exponential window, so a burst of throttled workers doesn't
// resynchronize on the provider.
func backoffDelay(attempt int, base time.Duration) time.Duration {
	if base <= 0 {
		base = DefaultRetryBaseDelay
	}

	window := base << (attempt - 1)
	if window > maxRetryDelay || window <= 0 {
		window = maxRetryDelay
	}
	return time.Duration(rand.Int63n(int64(window))) + 1
}
