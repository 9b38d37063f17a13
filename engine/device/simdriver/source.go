package simdriver

import (
	"hash/fnv"
	"math"
	"time"

	"github.com/Carmen-Shannon/oxy-t5/common"
	"github.com/Carmen-Shannon/oxy-t5/engine/device"
	"github.com/Carmen-Shannon/oxy-t5/engine/spatial"
)

// PoseSource produces the pose of simulated glasses at a point in time.
type PoseSource interface {
	// Pose returns the pose and IPD of the glasses with the given identifier.
	//
	// Parameters:
	//   - id: the glasses identifier
	//   - elapsed: the time since the driver context was created
	//
	// Returns:
	//   - device.NativePose: the tracking-space pose
	//   - float32: the IPD in millimeters, or 0 to use the driver default
	//   - bool: false if no pose is available yet
	Pose(id string, elapsed time.Duration) (device.NativePose, float32, bool)
}

// Orbit moves every pair of glasses on a horizontal circle around the board center, always facing
// it. Each identifier starts at its own phase so several glasses do not overlap.
type Orbit struct {
	Radius float32
	Height float32
	Period time.Duration
	Board  device.GameboardType
}

var _ PoseSource = Orbit{}

// Pose returns the orbit pose at elapsed.
func (o Orbit) Pose(id string, elapsed time.Duration) (device.NativePose, float32, bool) {
	angle := phase(id)
	if o.Period > 0 {
		angle += 2 * math.Pi * float64(elapsed%o.Period) / float64(o.Period)
	}
	tracking := spatial.TrackingPose(o.anchor(angle))
	return device.NativePose{
		TimestampNanos: uint64(elapsed.Nanoseconds()),
		Position:       tracking.Position,
		Orientation:    tracking.Rotation.Normalize(),
		Board:          o.Board,
	}, 0, true
}

// anchor returns the simulation-space transform of the glasses at angle.
func (o Orbit) anchor(angle float64) common.Transform {
	sin, cos := math.Sincos(angle)
	pos := common.Vec3{
		X: o.Radius * float32(sin),
		Y: o.Height,
		Z: o.Radius * float32(cos),
	}
	pitch := float32(math.Atan2(float64(o.Height), float64(o.Radius)))
	rot := common.QuatFromAxisAngle(common.AxisY, float32(angle)).
		Mul(common.QuatFromAxisAngle(common.AxisX, -pitch))
	return common.Transform{Position: pos, Rotation: rot}
}

// phase maps an identifier to a stable starting angle.
func phase(id string) float64 {
	h := fnv.New32a()
	h.Write([]byte(id))
	return 2 * math.Pi * float64(h.Sum32()%360) / 360
}
