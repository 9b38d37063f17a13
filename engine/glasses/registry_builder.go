package glasses

// RegistryBuilderOption is a functional option for configuring a Registry.
type RegistryBuilderOption func(*registry)

// WithTargetSize sets the size of the eye render targets.
//
// Parameters:
//   - width: the width in pixels (default 1216)
//   - height: the height in pixels (default 768)
//
// Returns:
//   - RegistryBuilderOption: option function to apply
func WithTargetSize(width, height uint32) RegistryBuilderOption {
	return func(r *registry) {
		if width > 0 && height > 0 {
			r.width, r.height = width, height
		}
	}
}

// WithEyeFOV sets the vertical field of view of the eye cameras.
//
// Parameters:
//   - degrees: the field of view (default 48)
//
// Returns:
//   - RegistryBuilderOption: option function to apply
func WithEyeFOV(degrees float32) RegistryBuilderOption {
	return func(r *registry) {
		if degrees > 0 {
			r.fov = degrees
		}
	}
}

// WithEyeIPD sets the eye separation used until the glasses report an IPD.
//
// Parameters:
//   - mm: the IPD in millimeters (default 64)
//
// Returns:
//   - RegistryBuilderOption: option function to apply
func WithEyeIPD(mm float32) RegistryBuilderOption {
	return func(r *registry) {
		if mm > 0 {
			r.defaultIPD = mm
		}
	}
}

// WithRefreshEvery makes Update request a list refresh every n ticks. Zero disables periodic refresh.
//
// Parameters:
//   - n: the refresh period in ticks (default 0)
//
// Returns:
//   - RegistryBuilderOption: option function to apply
func WithRefreshEvery(n uint64) RegistryBuilderOption {
	return func(r *registry) {
		r.refreshEvery = n
	}
}

// WithAutoConnect sets the identifiers connected as soon as a refresh lists them.
//
// Parameters:
//   - ids: the identifiers
//
// Returns:
//   - RegistryBuilderOption: option function to apply
func WithAutoConnect(ids ...string) RegistryBuilderOption {
	return func(r *registry) {
		for _, id := range ids {
			r.autoConnect[id] = true
		}
	}
}

// WithGlassesColor sets the color of the box drawn for each pair of glasses.
//
// Parameters:
//   - color: the RGBA color
//
// Returns:
//   - RegistryBuilderOption: option function to apply
func WithGlassesColor(color [4]float32) RegistryBuilderOption {
	return func(r *registry) {
		r.glassesColor = color
	}
}
