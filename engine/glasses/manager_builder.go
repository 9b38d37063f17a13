package glasses

import "github.com/Carmen-Shannon/oxy-t5/engine/device"

// ManagerBuilderOption is a functional option for configuring a Manager.
type ManagerBuilderOption func(*manager)

// WithGraphicsFactory sets how a graphics context is created for each pair of glasses.
//
// Parameters:
//   - fn: returns a new context per connection (default: host memory)
//
// Returns:
//   - ManagerBuilderOption: option function to apply
func WithGraphicsFactory(fn func() device.GraphicsContext) ManagerBuilderOption {
	return func(m *manager) {
		if fn != nil {
			m.newGraphics = fn
		}
	}
}

// WithFrameFOV sets the vertical field of view written into submitted frames.
//
// Parameters:
//   - degrees: the field of view (default 48)
//
// Returns:
//   - ManagerBuilderOption: option function to apply
func WithFrameFOV(degrees float32) ManagerBuilderOption {
	return func(m *manager) {
		if degrees > 0 {
			m.fov = degrees
		}
	}
}

// WithFallbackIPD sets the IPD used until the glasses report one.
//
// Parameters:
//   - mm: the IPD in millimeters (default 64)
//
// Returns:
//   - ManagerBuilderOption: option function to apply
func WithFallbackIPD(mm float32) ManagerBuilderOption {
	return func(m *manager) {
		if mm > 0 {
			m.defaultIPD = mm
		}
	}
}
