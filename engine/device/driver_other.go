//go:build !windows

package device

import "runtime"

// NativeLibrary is the file name of the vendor library. It is only available on Windows.
const NativeLibrary = "TiltFiveNative.dll"

// NewNativeDriver reports ErrDriverUnavailable: the vendor library ships for Windows only.
//
// Returns:
//   - Driver: always nil
//   - error: ErrDriverUnavailable
func NewNativeDriver() (Driver, error) {
	return nil, &unavailableError{goos: runtime.GOOS}
}

type unavailableError struct {
	goos string
}

func (e *unavailableError) Error() string {
	return NativeLibrary + " is not available on " + e.goos
}

func (e *unavailableError) Unwrap() error {
	return ErrDriverUnavailable
}
