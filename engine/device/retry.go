package device

import (
	"time"

	"github.com/Carmen-Shannon/oxy-t5/common"
	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy holds the number of extra attempts allowed per operation class when the
// driver reports ResultNoService. Any other non-zero result ends the call immediately.
type RetryPolicy struct {
	Context uint64
	Glasses uint64
	List    uint64
	Pose    uint64
	Frame   uint64
	Delay   time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
//
// Returns:
//   - RetryPolicy: 100 retries for context and glasses calls, 1 for listing, none for pose and frame calls, 10ms apart
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Context: 100,
		Glasses: 100,
		List:    1,
		Pose:    0,
		Frame:   0,
		Delay:   10 * time.Millisecond,
	}
}

// retry invokes fn until it succeeds, returns a terminal result, or exhausts retries.
// Only ResultNoService is retried, with a constant delay between attempts.
func retry(op string, retries uint64, delay time.Duration, fn func() Result) error {
	attempt := 0
	operation := func() error {
		attempt++
		res := fn()
		switch res {
		case ResultSuccess:
			return nil
		case ResultNoService:
			return &ResultError{Op: op, Result: res}
		default:
			return backoff.Permanent(&ResultError{Op: op, Result: res})
		}
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), retries)
	return backoff.RetryNotify(operation, policy, func(err error, next time.Duration) {
		common.Logger().Debug("glasses service not ready, retrying",
			"op", op,
			"attempt", attempt,
			"next", next,
		)
	})
}
