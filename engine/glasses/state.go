// Package glasses connects AR glasses to the engine.
//
// The Manager runs on the render goroutine. It owns the device session, executes bridge commands,
// polls poses every frame and reads the eye targets back for submission. The Registry runs on the
// simulation goroutine. It keeps the host's view of known glasses, spawns the board, glasses and eye
// nodes, and allocates the eye render targets when glasses connect. The two sides share nothing but
// the bridge queues and the node graph. The Plugin wires both into an engine.
package glasses

import "fmt"

// State is the lifecycle state of one pair of glasses.
type State int

const (
	// StateListed means the glasses were reported by the last list refresh and are not connected.
	StateListed State = iota
	// StateConnecting means a connect is in flight.
	StateConnecting
	// StateConnected means the glasses are reserved by this application.
	StateConnected
	// StateDisconnecting means a disconnect is in flight.
	StateDisconnecting
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateListed:
		return "listed"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}
