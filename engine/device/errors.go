package device

import (
	"errors"
	"fmt"
)

var (
	// ErrDriverUnavailable is returned when the native library cannot be loaded on this platform.
	ErrDriverUnavailable = errors.New("glasses driver unavailable")

	// ErrSessionOpen is returned by Open when the process already owns a session.
	ErrSessionOpen = errors.New("a glasses session is already open in this process")

	// ErrSessionClosed is returned by every Session method after Close.
	ErrSessionClosed = errors.New("glasses session is closed")

	// ErrInvalidIdentifier is returned for empty identifiers or identifiers containing NUL.
	ErrInvalidIdentifier = errors.New("invalid identifier")

	// ErrGlassesReleased is returned when a released Glasses handle is used.
	ErrGlassesReleased = errors.New("glasses handle has been released")

	// ErrForeignGlasses is returned when a Glasses handle from another session is used.
	ErrForeignGlasses = errors.New("glasses handle belongs to another session")

	// ErrGlassesInUse is returned by CreateGlasses when the identifier already has a live handle.
	ErrGlassesInUse = errors.New("glasses already created in this session")

	// ErrGraphicsNotInitialized is returned by SubmitFrame before InitGraphics succeeded.
	ErrGraphicsNotInitialized = errors.New("glasses graphics context not initialized")

	// ErrInvalidIPD is returned when the driver reports a non-positive or non-finite IPD.
	ErrInvalidIPD = errors.New("driver reported an invalid ipd")

	// ErrInvalidPose is returned when the driver reports a non-finite or zero orientation.
	ErrInvalidPose = errors.New("driver reported an invalid pose")

	// ErrNoService matches ResultError values carrying ResultNoService.
	ErrNoService = errors.New("glasses service not ready")
)

// ResultError wraps a non-zero driver Result with the operation that produced it.
type ResultError struct {
	Op     string
	Result Result
}

func (e *ResultError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Result)
}

// Is makes errors.Is(err, ErrNoService) match transient results.
func (e *ResultError) Is(target error) bool {
	return target == ErrNoService && e.Result == ResultNoService
}

// ResultOf extracts the driver Result from err.
//
// Parameters:
//   - err: an error returned by a Session method
//
// Returns:
//   - Result: the wrapped result, or ResultSuccess if err carries none
//   - bool: true if err wraps a ResultError
func ResultOf(err error) (Result, bool) {
	var re *ResultError
	if errors.As(err, &re) {
		return re.Result, true
	}
	return ResultSuccess, false
}
