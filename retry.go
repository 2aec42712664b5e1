// Package main - retry.go
//
// RetryPolicy is the one place that decides how many consecutive failures a
// loop tolerates and what happens when that budget runs out. Both the
// MotionController (per step) and the WaypointDirector (per waypoint) count
// no-progress iterations through a Retrier built from a policy.
//
// Counting Rules:
//   - Success() resets the counter to zero
//   - Failure() increments it; when it reaches MaxAttempts the escalation
//     callback runs once and the counter starts over
package main

// RetryPolicy bounds consecutive no-progress attempts.
type RetryPolicy struct {
	MaxAttempts int
}

// NewRetryPolicy creates a policy; values below 1 are raised to 1.
func NewRetryPolicy(maxAttempts int) RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return RetryPolicy{MaxAttempts: maxAttempts}
}

// Retrier counts failures against a RetryPolicy.
//
// A Retrier belongs to one goroutine and is not safe for concurrent use.
type Retrier struct {
	policy   RetryPolicy
	attempts int
	escalate func(attempts int)
}

// NewRetrier creates a retrier. escalate may be nil.
func (p RetryPolicy) NewRetrier(escalate func(attempts int)) *Retrier {
	return &Retrier{policy: p, escalate: escalate}
}

// Success records progress.
func (r *Retrier) Success() {
	r.attempts = 0
}

// Failure records a no-progress attempt. It reports whether the budget was
// exhausted by this attempt, in which case escalation has already run.
func (r *Retrier) Failure() bool {
	r.attempts++
	if r.attempts < r.policy.MaxAttempts {
		return false
	}
	n := r.attempts
	r.attempts = 0
	if r.escalate != nil {
		r.escalate(n)
	}
	return true
}

// Observe is Success or Failure depending on progress.
func (r *Retrier) Observe(progress bool) bool {
	if progress {
		r.Success()
		return false
	}
	return r.Failure()
}

// Attempts returns the current consecutive failure count
func (r *Retrier) Attempts() int {
	return r.attempts
}

// Exhausted reports whether one more failure would escalate.
func (r *Retrier) Exhausted() bool {
	return r.attempts+1 >= r.policy.MaxAttempts
}
