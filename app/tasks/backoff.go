package tasks

import (
	"math/rand/v2"
	"time"
)

const jitterFraction = 0.1

// BackoffDelay is interval * min(2^failures, maxMultiplier). Zero failures yields the
// base interval; a maxMultiplier below 1 disables backoff.
func BackoffDelay(interval time.Duration, failures, maxMultiplier int) time.Duration {
	if maxMultiplier < 1 {
		maxMultiplier = 1
	}

	multiplier := 1
	for i := 0; i < failures && multiplier < maxMultiplier; i++ {
		multiplier *= 2
	}
	if multiplier > maxMultiplier {
		multiplier = maxMultiplier
	}

	return interval * time.Duration(multiplier)
}

// nextDelay is the wait until a source is due again: the jittered base interval while
// healthy, the exact BackoffDelay while failing.
func nextDelay(interval time.Duration, failures, maxMultiplier int, u float64) time.Duration {
	if failures > 0 {
		return BackoffDelay(interval, failures, maxMultiplier)
	}
	return applyJitter(interval, u)
}

// applyJitter scales d by (1 + u). u is clamped to [-jitterFraction, jitterFraction].
func applyJitter(d time.Duration, u float64) time.Duration {
	if u > jitterFraction {
		u = jitterFraction
	}
	if u < -jitterFraction {
		u = -jitterFraction
	}
	return time.Duration(float64(d) * (1 + u))
}

func randomJitter() float64 {
	return (rand.Float64()*2 - 1) * jitterFraction
}
