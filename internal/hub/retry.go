package hub

import "time"

// RetryContext describes the reconnect attempt being scheduled.
type RetryContext struct {
	PreviousRetryCount int
	ElapsedTime        time.Duration
	RetryReason        error
}

// RetryPolicy decides the delay before the next reconnect attempt.
// Returning false stops reconnecting.
type RetryPolicy interface {
	NextRetryDelay(rc RetryContext) (time.Duration, bool)
}

// RetryPolicyFunc adapts a function to RetryPolicy.
type RetryPolicyFunc func(rc RetryContext) (time.Duration, bool)

func (f RetryPolicyFunc) NextRetryDelay(rc RetryContext) (time.Duration, bool) { return f(rc) }

// FixedDelay retries forever with the same delay between attempts.
func FixedDelay(d time.Duration) RetryPolicy {
	return RetryPolicyFunc(func(RetryContext) (time.Duration, bool) { return d, true })
}

// DelaySchedule retries once per entry and then gives up.
func DelaySchedule(delays ...time.Duration) RetryPolicy {
	return RetryPolicyFunc(func(rc RetryContext) (time.Duration, bool) {
		if rc.PreviousRetryCount >= len(delays) {
			return 0, false
		}
		return delays[rc.PreviousRetryCount], true
	})
}
