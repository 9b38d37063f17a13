// Package bridge carries commands from the simulation goroutine to the render goroutine and
// events back. Both directions are closed sets of message types.
package bridge

import (
	"github.com/Carmen-Shannon/oxy-t5/common"
	"github.com/Carmen-Shannon/oxy-t5/engine/device"
	"github.com/Carmen-Shannon/oxy-t5/engine/gpu"
)

// Command is a request from the simulation side to the render side.
// The set of implementations is closed: RefreshList, Connect, Disconnect, SetRenderTargets, QueryGameboard.
type Command interface {
	isCommand()
}

// RefreshList asks for the visible glasses to be listed.
type RefreshList struct{}

// Connect asks for the glasses with ID to be created and reserved.
type Connect struct {
	ID string
}

// Disconnect asks for the glasses with ID to be released.
type Disconnect struct {
	ID string
}

// SetRenderTargets hands the eye render targets allocated for ID to the render side.
type SetRenderTargets struct {
	ID    string
	Left  gpu.RenderTarget
	Right gpu.RenderTarget
}

// QueryGameboard asks for the physical size of a board type.
type QueryGameboard struct {
	Board device.GameboardType
}

func (RefreshList) isCommand()      {}
func (Connect) isCommand()          {}
func (Disconnect) isCommand()       {}
func (SetRenderTargets) isCommand() {}
func (QueryGameboard) isCommand()   {}

// Event is a notification from the render side to the simulation side.
// The set of implementations is closed: ListRefreshed, Connected, ConnectFailed, Disconnected,
// PoseUpdated, GameboardSized.
type Event interface {
	isEvent()
}

// ListRefreshed carries the currently visible identifiers.
type ListRefreshed struct {
	IDs []string
}

// Connected reports that the glasses with ID are reserved and streaming.
type Connected struct {
	ID string
}

// ConnectFailed reports that a Connect for ID was abandoned.
type ConnectFailed struct {
	ID     string
	Reason string
}

// Disconnected reports that the glasses with ID were released and all their resources freed.
type Disconnected struct {
	ID string
}

// PoseUpdated carries this tick's pose for ID.
// Transform is relative to the board anchor, Raw is the native tracking-space transform, IPD is in millimeters.
type PoseUpdated struct {
	ID        string
	Tick      uint64
	Transform common.Transform
	IPD       float32
	Raw       common.Transform
}

// GameboardSized answers a QueryGameboard.
type GameboardSized struct {
	Board device.GameboardType
	Size  device.GameboardSize
}

func (ListRefreshed) isEvent()  {}
func (Connected) isEvent()      {}
func (ConnectFailed) isEvent()  {}
func (Disconnected) isEvent()   {}
func (PoseUpdated) isEvent()    {}
func (GameboardSized) isEvent() {}
