package stream

import "time"

// LinearBackoff schedules reconnection: attempt n waits n times Base, and
// no attempt beyond MaxAttempts is made.
type LinearBackoff struct {
	Base        time.Duration
	MaxAttempts int
}

// Delay returns the wait before the given 1-based attempt.
func (b LinearBackoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		return 0
	}
	return time.Duration(attempt) * b.Base
}

// Exhausted reports whether attempts already made use up the budget.
func (b LinearBackoff) Exhausted(attempts int) bool {
	return attempts >= b.MaxAttempts
}
