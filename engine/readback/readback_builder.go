package readback

import "time"

// PipelineBuilderOption is a functional option for configuring a Pipeline.
// Use the With* functions to create options that are applied directly to the pipeline instance.
type PipelineBuilderOption func(*pipeline)

// WithMapTimeout sets how long a device's buffer maps may take before its frame is dropped.
// Values <= 0 are treated as the default.
//
// Parameters:
//   - d: the timeout (default 16ms, one frame period)
//
// Returns:
//   - PipelineBuilderOption: option function to apply
func WithMapTimeout(d time.Duration) PipelineBuilderOption {
	return func(p *pipeline) {
		if d <= 0 {
			d = DefaultMapTimeout
		}
		p.timeout = d
	}
}

// WithWorkers sets the maximum number of concurrent map waits.
// Values <= 0 are treated as the default.
//
// Parameters:
//   - n: the worker count (default 4)
//
// Returns:
//   - PipelineBuilderOption: option function to apply
func WithWorkers(n int) PipelineBuilderOption {
	return func(p *pipeline) {
		if n <= 0 {
			n = defaultWorkers
		}
		p.workers = n
	}
}

// WithPollInterval sets how often the GPU is polled while maps are outstanding.
// Values <= 0 are treated as the default.
//
// Parameters:
//   - d: the poll interval (default 250µs)
//
// Returns:
//   - PipelineBuilderOption: option function to apply
func WithPollInterval(d time.Duration) PipelineBuilderOption {
	return func(p *pipeline) {
		if d <= 0 {
			d = defaultPollInterval
		}
		p.pollInterval = d
	}
}
