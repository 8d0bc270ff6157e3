package delivery

import "time"

// retryDelays is the backoff ladder between consecutive attempts. Attempt
// numbers past the ladder clamp to the last rung.
var retryDelays = []time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	30 * time.Minute,
}

// DelayFor returns the wait before the retry that follows the given attempt
// number (zero-based: attempt 0 failing waits retryDelays[0]).
func DelayFor(attemptNumber int) time.Duration {
	if attemptNumber < 0 {
		attemptNumber = 0
	}
	if attemptNumber >= len(retryDelays) {
		return retryDelays[len(retryDelays)-1]
	}
	return retryDelays[attemptNumber]
}
