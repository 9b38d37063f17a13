package node

import "github.com/Carmen-Shannon/oxy-t5/common"

// NodeBuilderOption is a functional option for configuring a Node during Spawn.
type NodeBuilderOption func(*nodeImpl)

// WithTransform sets the node's local transform.
//
// Parameters:
//   - t: the transform relative to the parent
//
// Returns:
//   - NodeBuilderOption: functional option to set the transform
func WithTransform(t common.Transform) NodeBuilderOption {
	return func(n *nodeImpl) {
		n.local = t
	}
}

// WithBox makes the node visible as a box of the given size and color.
//
// Parameters:
//   - scale: the box size along each local axis
//   - color: the RGBA color
//
// Returns:
//   - NodeBuilderOption: functional option to make the node visible
func WithBox(scale common.Vec3, color [4]float32) NodeBuilderOption {
	return func(n *nodeImpl) {
		n.visible = true
		n.scale = scale
		n.color = color
	}
}

// WithEnabled sets whether the node and its subtree are drawn.
//
// Parameters:
//   - enabled: true to draw the node
//
// Returns:
//   - NodeBuilderOption: functional option to set the enabled state
func WithEnabled(enabled bool) NodeBuilderOption {
	return func(n *nodeImpl) {
		n.enabled = enabled
	}
}
