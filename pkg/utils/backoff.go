package utils

import (
	"math/rand"
	"time"
)

const maxBackoff = 30 * time.Second

// Backoff returns the delay before retry number attempt (1-based), using
// exponential growth from baseDelay with up to ±25% jitter. Attempt 0 or
// lower returns 0.
func Backoff(baseDelay time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	if attempt > 30 {
		attempt = 30
	}
	d := baseDelay * time.Duration(1<<uint(attempt))
	if d > maxBackoff {
		d = maxBackoff
	}
	if d/2 <= 0 {
		return d
	}
	jitter := time.Duration(rand.Int63n(int64(d)/2)) - d/4
	return d + jitter
}
