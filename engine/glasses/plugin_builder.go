package glasses

import (
	"time"

	"github.com/Carmen-Shannon/oxy-t5/engine/device"
)

// PluginBuilderOption is a functional option for configuring a Plugin.
type PluginBuilderOption func(*pluginConfig)

// WithApp sets the identifiers reported to the glasses service.
//
// Parameters:
//   - id: the application identifier, shown on reserved glasses
//   - version: the application version
//
// Returns:
//   - PluginBuilderOption: option function to apply
func WithApp(id, version string) PluginBuilderOption {
	return func(c *pluginConfig) {
		c.appID, c.appVersion = id, version
	}
}

// WithSessionOptions passes options through to device.Open.
//
// Parameters:
//   - options: the session options
//
// Returns:
//   - PluginBuilderOption: option function to apply
func WithSessionOptions(options ...device.SessionBuilderOption) PluginBuilderOption {
	return func(c *pluginConfig) {
		c.sessionOptions = append(c.sessionOptions, options...)
	}
}

// WithEyeTexture sets the per-eye texture size and vertical field of view.
//
// Parameters:
//   - width: the width in pixels (default 1216)
//   - height: the height in pixels (default 768)
//   - fovDegrees: the field of view (default 48)
//
// Returns:
//   - PluginBuilderOption: option function to apply
func WithEyeTexture(width, height uint32, fovDegrees float32) PluginBuilderOption {
	return func(c *pluginConfig) {
		if width > 0 && height > 0 {
			c.width, c.height = width, height
		}
		if fovDegrees > 0 {
			c.fov = fovDegrees
		}
	}
}

// WithDefaultIPD sets the IPD used until the glasses report one.
//
// Parameters:
//   - mm: the IPD in millimeters (default 64)
//
// Returns:
//   - PluginBuilderOption: option function to apply
func WithDefaultIPD(mm float32) PluginBuilderOption {
	return func(c *pluginConfig) {
		if mm > 0 {
			c.ipd = mm
		}
	}
}

// WithMapTimeout bounds the wait for eye readback maps.
//
// Parameters:
//   - d: the timeout (default 16ms)
//
// Returns:
//   - PluginBuilderOption: option function to apply
func WithMapTimeout(d time.Duration) PluginBuilderOption {
	return func(c *pluginConfig) {
		if d > 0 {
			c.mapTimeout = d
		}
	}
}

// WithGameboard sets the board type queried at startup.
//
// Parameters:
//   - board: the board type (default LE)
//
// Returns:
//   - PluginBuilderOption: option function to apply
func WithGameboard(board device.GameboardType) PluginBuilderOption {
	return func(c *pluginConfig) {
		c.board = board
	}
}

// WithAutoConnectIDs connects the given glasses as soon as they are listed.
//
// Parameters:
//   - ids: the identifiers
//
// Returns:
//   - PluginBuilderOption: option function to apply
func WithAutoConnectIDs(ids ...string) PluginBuilderOption {
	return func(c *pluginConfig) {
		c.autoConnect = append(c.autoConnect, ids...)
	}
}

// WithRefreshInterval refreshes the glasses list every n simulation ticks.
//
// Parameters:
//   - n: the period in ticks, zero to refresh only on request
//
// Returns:
//   - PluginBuilderOption: option function to apply
func WithRefreshInterval(n uint64) PluginBuilderOption {
	return func(c *pluginConfig) {
		c.refreshEvery = n
	}
}

// WithGraphics sets the graphics context factory used for each connection.
//
// Parameters:
//   - fn: returns a new graphics context (default: host memory)
//
// Returns:
//   - PluginBuilderOption: option function to apply
func WithGraphics(fn func() device.GraphicsContext) PluginBuilderOption {
	return func(c *pluginConfig) {
		c.graphics = fn
	}
}
