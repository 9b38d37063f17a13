package simdriver

import (
	"time"

	"github.com/Carmen-Shannon/oxy-t5/engine/device"
)

// DriverBuilderOption is a functional option for configuring a simulated Driver.
type DriverBuilderOption func(*Driver)

// WithGlasses sets the identifiers reported by ListGlasses.
//
// Parameters:
//   - ids: the visible identifiers
//
// Returns:
//   - DriverBuilderOption: option function to apply
func WithGlasses(ids ...string) DriverBuilderOption {
	return func(d *Driver) {
		d.visible = append([]string(nil), ids...)
	}
}

// WithIPD sets the IPD reported when the pose source does not provide one.
//
// Parameters:
//   - mm: the IPD in millimeters (default 64)
//
// Returns:
//   - DriverBuilderOption: option function to apply
func WithIPD(mm float32) DriverBuilderOption {
	return func(d *Driver) {
		if mm > 0 {
			d.ipd = mm
		}
	}
}

// WithGameboard sets the board type used by the default orbit.
//
// Parameters:
//   - board: the board type (default LE)
//
// Returns:
//   - DriverBuilderOption: option function to apply
func WithGameboard(board device.GameboardType) DriverBuilderOption {
	return func(d *Driver) {
		d.board = board
	}
}

// WithPoseSource replaces the default orbit.
//
// Parameters:
//   - src: the pose source
//
// Returns:
//   - DriverBuilderOption: option function to apply
func WithPoseSource(src PoseSource) DriverBuilderOption {
	return func(d *Driver) {
		d.source = src
	}
}

// WithClock replaces time.Now, for tests.
//
// Parameters:
//   - now: the clock
//
// Returns:
//   - DriverBuilderOption: option function to apply
func WithClock(now func() time.Time) DriverBuilderOption {
	return func(d *Driver) {
		d.now = now
	}
}
