// Package delivery drives pending notifications through the send state
// machine: picking up due records, routing them to their channel gateway, and
// applying the bounded retry schedule on failure.
package delivery

import "time"

// RetryPolicy defines the escalating wait ladder applied between delivery
// attempts. It is an immutable value object; the zero value is unusable, use
// DefaultRetryPolicy.
type RetryPolicy struct {
	delays []time.Duration
}

// DefaultRetryPolicy waits 2h, 4h, then 8h between attempts, giving every
// notification four dispatch attempts before it is marked failed.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{delays: []time.Duration{2 * time.Hour, 4 * time.Hour, 8 * time.Hour}}
}

// NewRetryPolicy creates a policy with an explicit delay ladder.
func NewRetryPolicy(delays ...time.Duration) RetryPolicy {
	return RetryPolicy{delays: append([]time.Duration(nil), delays...)}
}

// NextDelay returns the wait before the next attempt given the number of
// retries already consumed. ok=false means the ladder is exhausted and the
// notification must be marked failed.
func (p RetryPolicy) NextDelay(retryCount int) (time.Duration, bool) {
	if retryCount < 0 || retryCount >= len(p.delays) {
		return 0, false
	}
	return p.delays[retryCount], true
}

// MaxRetries returns the number of rungs on the ladder.
func (p RetryPolicy) MaxRetries() int { return len(p.delays) }
