package syncqueue

import (
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Backoff returns the delay before retry number retries (1-based):
// base, 2*base, 4*base, ... capped at ceiling when ceiling is positive.
func Backoff(base, ceiling time.Duration, retries int) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	if ceiling <= 0 {
		ceiling = time.Duration(math.MaxInt64)
	}
	b := &backoff.ExponentialBackOff{
		InitialInterval:     base,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         ceiling,
	}
	b.Reset()
	delay := b.NextBackOff()
	for i := 1; i < retries; i++ {
		delay = b.NextBackOff()
	}
	return min(delay, ceiling)
}
