package actionqueue

import "time"

// RetryPolicy decides how often and how soon a transiently failed action is
// attempted again.
type RetryPolicy struct {
	// MaxAttempts is the retry ceiling; reaching it quarantines the action.
	MaxAttempts int
	// Backoff holds the delay after the 1st, 2nd, ... failure. The last
	// entry repeats.
	Backoff []time.Duration
}

// DefaultRetryPolicy returns three attempts with growing delays.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     []time.Duration{5 * time.Second, 30 * time.Second, 2 * time.Minute},
	}
}

// Exhausted reports whether retries transient failures use up the budget.
func (p RetryPolicy) Exhausted(retries int) bool {
	if p.MaxAttempts <= 0 {
		return true
	}
	return retries >= p.MaxAttempts
}

// Delay returns the wait after the retries-th failure.
func (p RetryPolicy) Delay(retries int) time.Duration {
	if len(p.Backoff) == 0 || retries < 1 {
		return 0
	}
	if retries > len(p.Backoff) {
		return p.Backoff[len(p.Backoff)-1]
	}
	return p.Backoff[retries-1]
}
