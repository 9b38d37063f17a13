package device

import "time"

// SessionBuilderOption is a functional option for configuring a Session.
// Use the With* functions to create options that are applied directly to the session instance.
type SessionBuilderOption func(*session)

// WithRetryPolicy replaces the per-operation retry policy.
//
// Parameters:
//   - p: the retry policy
//
// Returns:
//   - SessionBuilderOption: option function to apply
func WithRetryPolicy(p RetryPolicy) SessionBuilderOption {
	return func(s *session) {
		s.policy = p
	}
}

// WithRetryDelay sets the fixed delay between retries of ResultNoService.
// Negative values are treated as zero.
//
// Parameters:
//   - d: the delay between attempts (default 10ms)
//
// Returns:
//   - SessionBuilderOption: option function to apply
func WithRetryDelay(d time.Duration) SessionBuilderOption {
	return func(s *session) {
		if d < 0 {
			d = 0
		}
		s.policy.Delay = d
	}
}

// WithWandStream enables or disables wand streaming on newly created glasses.
//
// Parameters:
//   - enabled: if true, wand streaming is configured after reservation (default true)
//
// Returns:
//   - SessionBuilderOption: option function to apply
func WithWandStream(enabled bool) SessionBuilderOption {
	return func(s *session) {
		s.wandStream = enabled
	}
}
