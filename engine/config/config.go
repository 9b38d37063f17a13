// Package config loads the YAML configuration of a glasses host application.
//
// Configuration is read from a single file. Defaults are applied first, the file is merged on top,
// and the result is validated. Durations are written as Go duration strings ("10ms", "16ms").
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Carmen-Shannon/oxy-t5/engine/device"
	"gopkg.in/yaml.v3"
)

// Driver names accepted by DeviceConfig.Driver.
const (
	DriverNative    = "native"
	DriverSimulated = "simulated"
)

// Config is the application configuration.
type Config struct {
	// App identifies the application to the glasses service.
	App AppConfig `yaml:"app"`

	// Engine configures the tick and render loops.
	Engine EngineConfig `yaml:"engine"`

	// Device configures the device session.
	Device DeviceConfig `yaml:"device"`

	// Glasses configures per-glasses rendering and readback.
	Glasses GlassesConfig `yaml:"glasses"`

	// Simulated configures the simulated driver. Only used when Device.Driver is "simulated".
	Simulated SimulatedConfig `yaml:"simulated"`
}

// AppConfig identifies the application.
type AppConfig struct {
	// ID is shown on the glasses while they are reserved. Must not be empty or contain NUL.
	ID string `yaml:"id"`

	// Version is reported to the service.
	Version string `yaml:"version"`
}

// EngineConfig configures the engine loops.
type EngineConfig struct {
	// TickRate is the simulation rate in ticks per second.
	// Default: 60
	TickRate int `yaml:"tick_rate"`

	// ProfileInterval is how often the profiler logs. Empty disables profiling.
	// Default: 5s
	ProfileInterval string `yaml:"profile_interval"`
}

// DeviceConfig configures the device session.
type DeviceConfig struct {
	// Driver selects the driver: "native" or "simulated".
	// Default: simulated
	Driver string `yaml:"driver"`

	// ContextRetries is the number of retries when creating the session context.
	// Default: 100
	ContextRetries uint64 `yaml:"context_retries"`

	// GlassesRetries is the number of retries when creating and reserving glasses.
	// Default: 100
	GlassesRetries uint64 `yaml:"glasses_retries"`

	// ListRetries is the number of retries when listing glasses.
	// Default: 1
	ListRetries uint64 `yaml:"list_retries"`

	// RetryDelay is the fixed delay between retries.
	// Default: 10ms
	RetryDelay string `yaml:"retry_delay"`

	// WandStream enables wand streaming on connected glasses.
	// Default: true
	WandStream bool `yaml:"wand_stream"`
}

// GlassesConfig configures rendering for connected glasses.
type GlassesConfig struct {
	// Width is the per-eye texture width in pixels.
	// Default: 1216
	Width uint32 `yaml:"width"`

	// Height is the per-eye texture height in pixels.
	// Default: 768
	Height uint32 `yaml:"height"`

	// FOV is the vertical field of view in degrees.
	// Default: 48
	FOV float32 `yaml:"fov"`

	// MapTimeout bounds the wait for a readback map.
	// Default: 16ms
	MapTimeout string `yaml:"map_timeout"`

	// DefaultIPD is used until the glasses report one, in millimeters.
	// Default: 64
	DefaultIPD float32 `yaml:"default_ipd"`

	// Gameboard is the board type: none, le, xe or xe_raised.
	// Default: le
	Gameboard string `yaml:"gameboard"`

	// AutoConnect lists glasses to connect as soon as they are listed.
	AutoConnect []string `yaml:"auto_connect"`
}

// SimulatedConfig configures the simulated driver.
type SimulatedConfig struct {
	// Glasses lists the identifiers the simulated driver reports.
	// Default: [SIM-0001]
	Glasses []string `yaml:"glasses"`

	// OrbitRadius is the horizontal distance of the synthetic head from the board center, in meters.
	// Default: 0.6
	OrbitRadius float32 `yaml:"orbit_radius"`

	// Height is the height of the synthetic head above the board, in meters.
	// Default: 0.45
	Height float32 `yaml:"height"`

	// OrbitPeriod is the time for one full orbit.
	// Default: 20s
	OrbitPeriod string `yaml:"orbit_period"`

	// IPD is the reported inter-pupillary distance in millimeters.
	// Default: 64
	IPD float32 `yaml:"ipd"`

	// Replay is a recorded pose stream to play back instead of the synthetic orbit.
	Replay string `yaml:"replay"`

	// Record is a file to record poses into.
	Record string `yaml:"record"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		App: AppConfig{
			ID:      "oxy-t5",
			Version: "0.1.0",
		},
		Engine: EngineConfig{
			TickRate:        60,
			ProfileInterval: "5s",
		},
		Device: DeviceConfig{
			Driver:         DriverSimulated,
			ContextRetries: 100,
			GlassesRetries: 100,
			ListRetries:    1,
			RetryDelay:     "10ms",
			WandStream:     true,
		},
		Glasses: GlassesConfig{
			Width:      device.DefaultTextureWidth,
			Height:     device.DefaultTextureHeight,
			FOV:        device.DefaultFOVDegrees,
			MapTimeout: "16ms",
			DefaultIPD: device.DefaultIPD,
			Gameboard:  device.GameboardLE.String(),
		},
		Simulated: SimulatedConfig{
			Glasses:     []string{"SIM-0001"},
			OrbitRadius: 0.6,
			Height:      0.45,
			OrbitPeriod: "20s",
			IPD:         device.DefaultIPD,
		},
	}
}

// LoadFile loads configuration from path over the defaults and validates it.
//
// Parameters:
//   - path: the YAML file
//
// Returns:
//   - *Config: the configuration
//   - error: an error if the file cannot be read, parsed or validated
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
//
// Parameters:
//   - data: the YAML document
//
// Returns:
//   - *Config: the configuration
//   - error: an error if decoding or validation failed
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if !device.ValidIdentifier(c.App.ID) {
		errs = append(errs, fmt.Errorf("app.id %q must be non-empty and must not contain NUL", c.App.ID))
	}
	if !device.ValidIdentifier(c.App.Version) {
		errs = append(errs, fmt.Errorf("app.version %q must be non-empty and must not contain NUL", c.App.Version))
	}
	if c.Engine.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("engine.tick_rate must be positive, got %d", c.Engine.TickRate))
	}
	if c.Engine.ProfileInterval != "" {
		errs = append(errs, checkDuration("engine.profile_interval", c.Engine.ProfileInterval))
	}

	switch c.Device.Driver {
	case DriverNative, DriverSimulated:
	default:
		errs = append(errs, fmt.Errorf("device.driver must be %q or %q, got %q", DriverNative, DriverSimulated, c.Device.Driver))
	}
	errs = append(errs, checkDuration("device.retry_delay", c.Device.RetryDelay))

	if c.Glasses.Width == 0 || c.Glasses.Height == 0 || c.Glasses.Width > 0xffff || c.Glasses.Height > 0xffff {
		errs = append(errs, fmt.Errorf("glasses size %dx%d out of range", c.Glasses.Width, c.Glasses.Height))
	}
	if c.Glasses.FOV <= 0 || c.Glasses.FOV >= 180 {
		errs = append(errs, fmt.Errorf("glasses.fov must be in (0, 180), got %v", c.Glasses.FOV))
	}
	if c.Glasses.DefaultIPD <= 0 {
		errs = append(errs, fmt.Errorf("glasses.default_ipd must be positive, got %v", c.Glasses.DefaultIPD))
	}
	errs = append(errs, checkDuration("glasses.map_timeout", c.Glasses.MapTimeout))
	if _, err := device.ParseGameboardType(c.Glasses.Gameboard); err != nil {
		errs = append(errs, fmt.Errorf("glasses.gameboard: %w", err))
	}
	for _, id := range c.Glasses.AutoConnect {
		if !device.ValidIdentifier(id) {
			errs = append(errs, fmt.Errorf("glasses.auto_connect entry %q is not a valid identifier", id))
		}
	}

	if c.Device.Driver == DriverSimulated {
		if c.Simulated.Replay == "" {
			errs = append(errs, checkDuration("simulated.orbit_period", c.Simulated.OrbitPeriod))
		}
		if c.Simulated.IPD <= 0 {
			errs = append(errs, fmt.Errorf("simulated.ipd must be positive, got %v", c.Simulated.IPD))
		}
		for _, id := range c.Simulated.Glasses {
			if !device.ValidIdentifier(id) {
				errs = append(errs, fmt.Errorf("simulated.glasses entry %q is not a valid identifier", id))
			}
		}
	}

	return errors.Join(errs...)
}

// checkDuration returns nil if s parses as a positive duration.
func checkDuration(field, s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", field, s)
	}
	return nil
}

// mustDuration parses a duration already checked by Validate.
func mustDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

// TickInterval returns the period of one simulation tick.
func (c *Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.Engine.TickRate)
}

// ProfileInterval returns the profiler interval, or zero when profiling is disabled.
func (c *Config) ProfileInterval() time.Duration {
	if c.Engine.ProfileInterval == "" {
		return 0
	}
	return mustDuration(c.Engine.ProfileInterval)
}

// MapTimeout returns the readback map timeout.
func (c *Config) MapTimeout() time.Duration {
	return mustDuration(c.Glasses.MapTimeout)
}

// OrbitPeriod returns the simulated orbit period.
func (c *Config) OrbitPeriod() time.Duration {
	return mustDuration(c.Simulated.OrbitPeriod)
}

// Gameboard returns the configured board type.
func (c *Config) Gameboard() device.GameboardType {
	t, err := device.ParseGameboardType(c.Glasses.Gameboard)
	if err != nil {
		return device.GameboardLE
	}
	return t
}

// RetryPolicy returns the device retry policy described by the configuration.
func (c *Config) RetryPolicy() device.RetryPolicy {
	p := device.DefaultRetryPolicy()
	p.Context = c.Device.ContextRetries
	p.Glasses = c.Device.GlassesRetries
	p.List = c.Device.ListRetries
	p.Delay = mustDuration(c.Device.RetryDelay)
	return p
}

// SessionOptions returns the device session options described by the configuration.
func (c *Config) SessionOptions() []device.SessionBuilderOption {
	return []device.SessionBuilderOption{
		device.WithRetryPolicy(c.RetryPolicy()),
		device.WithWandStream(c.Device.WandStream),
	}
}
