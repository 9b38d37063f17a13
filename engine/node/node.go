// Package node provides the scene nodes the glasses integration spawns: the board anchor, one node per
// pair of glasses and one per eye. Nodes form a tree; a node's world transform is the product of its
// ancestors' local transforms.
package node

import (
	"sort"
	"sync"

	"github.com/Carmen-Shannon/oxy-t5/common"
	"github.com/Carmen-Shannon/oxy-t5/engine/gpu"
)

// Node is one entry in a Graph.
type Node interface {
	// ID returns the node's unique identifier within its graph.
	//
	// Returns:
	//   - uint64: the node ID
	ID() uint64

	// Name returns the node's name.
	//
	// Returns:
	//   - string: the name given at spawn time
	Name() string

	// Enabled returns whether the node and its subtree are drawn.
	//
	// Returns:
	//   - bool: true if enabled
	Enabled() bool

	// SetEnabled sets whether the node and its subtree are drawn.
	//
	// Parameters:
	//   - enabled: true to enable
	SetEnabled(enabled bool)

	// Parent returns the parent node, or nil for the root.
	//
	// Returns:
	//   - Node: the parent or nil
	Parent() Node

	// Children returns the direct children in spawn order.
	//
	// Returns:
	//   - []Node: the children
	Children() []Node

	// Local returns the transform relative to the parent.
	//
	// Returns:
	//   - common.Transform: the local transform
	Local() common.Transform

	// SetLocal replaces the transform relative to the parent.
	//
	// Parameters:
	//   - t: the new local transform
	SetLocal(t common.Transform)

	// SetPosition replaces the local translation, keeping the rotation.
	//
	// Parameters:
	//   - p: the new local position
	SetPosition(p common.Vec3)

	// World returns the transform relative to the graph root.
	//
	// Returns:
	//   - common.Transform: the world transform
	World() common.Transform

	// Scale returns the per-axis draw scale. Scale is not inherited by children.
	//
	// Returns:
	//   - common.Vec3: the scale
	Scale() common.Vec3

	// Color returns the RGBA draw color.
	//
	// Returns:
	//   - [4]float32: the color
	Color() [4]float32

	// Visible returns whether the node itself is drawn as a box.
	//
	// Returns:
	//   - bool: true if drawn
	Visible() bool
}

type nodeImpl struct {
	g *graph

	id       uint64
	name     string
	enabled  bool
	visible  bool
	local    common.Transform
	scale    common.Vec3
	color    [4]float32
	parent   *nodeImpl
	children []*nodeImpl
}

var _ Node = &nodeImpl{}

func (n *nodeImpl) ID() uint64 {
	return n.id
}

func (n *nodeImpl) Name() string {
	return n.name
}

func (n *nodeImpl) Enabled() bool {
	n.g.mu.RLock()
	defer n.g.mu.RUnlock()
	return n.enabled
}

func (n *nodeImpl) SetEnabled(enabled bool) {
	n.g.mu.Lock()
	defer n.g.mu.Unlock()
	n.enabled = enabled
}

func (n *nodeImpl) Parent() Node {
	n.g.mu.RLock()
	defer n.g.mu.RUnlock()
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func (n *nodeImpl) Children() []Node {
	n.g.mu.RLock()
	defer n.g.mu.RUnlock()
	out := make([]Node, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}

func (n *nodeImpl) Local() common.Transform {
	n.g.mu.RLock()
	defer n.g.mu.RUnlock()
	return n.local
}

func (n *nodeImpl) SetLocal(t common.Transform) {
	n.g.mu.Lock()
	defer n.g.mu.Unlock()
	n.local = t
}

func (n *nodeImpl) SetPosition(p common.Vec3) {
	n.g.mu.Lock()
	defer n.g.mu.Unlock()
	n.local.Position = p
}

func (n *nodeImpl) World() common.Transform {
	n.g.mu.RLock()
	defer n.g.mu.RUnlock()
	return n.worldLocked()
}

// worldLocked composes local transforms up to the root. Callers hold g.mu.
func (n *nodeImpl) worldLocked() common.Transform {
	t := n.local
	for p := n.parent; p != nil; p = p.parent {
		t = p.local.Mul(t)
	}
	return t
}

func (n *nodeImpl) Scale() common.Vec3 {
	n.g.mu.RLock()
	defer n.g.mu.RUnlock()
	return n.scale
}

func (n *nodeImpl) Color() [4]float32 {
	n.g.mu.RLock()
	defer n.g.mu.RUnlock()
	return n.color
}

func (n *nodeImpl) Visible() bool {
	n.g.mu.RLock()
	defer n.g.mu.RUnlock()
	return n.visible
}

// Graph owns a tree of nodes. Mutations happen on the simulation goroutine; the render goroutine
// reads world transforms and draw instances. Safe for concurrent use.
type Graph interface {
	// Root returns the root node. The root cannot be despawned.
	//
	// Returns:
	//   - Node: the root
	Root() Node

	// Spawn creates a node under parent (the root when parent is nil).
	//
	// Parameters:
	//   - name: the node name
	//   - parent: the parent node, or nil
	//   - options: variadic list of NodeBuilderOption functions to configure the node
	//
	// Returns:
	//   - Node: the new node
	Spawn(name string, parent Node, options ...NodeBuilderOption) Node

	// Despawn removes a node and its whole subtree. Unknown nodes and the root are ignored.
	//
	// Parameters:
	//   - n: the node to remove
	Despawn(n Node)

	// Reparent moves n under parent, keeping its local transform.
	//
	// Parameters:
	//   - n: the node to move
	//   - parent: the new parent, or nil for the root
	Reparent(n Node, parent Node)

	// Get looks up a node by ID.
	//
	// Parameters:
	//   - id: the node ID
	//
	// Returns:
	//   - Node: the node
	//   - bool: false if no live node has the ID
	Get(id uint64) (Node, bool)

	// Len returns the number of live nodes, excluding the root.
	//
	// Returns:
	//   - int: the node count
	Len() int

	// Instances returns a draw instance for every visible node whose ancestors are all enabled,
	// ordered by node ID.
	//
	// Returns:
	//   - []gpu.Instance: the instances
	Instances() []gpu.Instance
}

type graph struct {
	mu    sync.RWMutex
	root  *nodeImpl
	nodes map[uint64]*nodeImpl
	next  uint64
}

var _ Graph = &graph{}

// NewGraph creates a graph holding only its root.
//
// Returns:
//   - Graph: the graph
func NewGraph() Graph {
	g := &graph{nodes: make(map[uint64]*nodeImpl)}
	g.root = &nodeImpl{
		g:       g,
		name:    "root",
		enabled: true,
		local:   common.IdentityTransform(),
		scale:   common.Vec3{X: 1, Y: 1, Z: 1},
	}
	return g
}

func (g *graph) Root() Node {
	return g.root
}

// resolve maps a Node from this graph to its implementation. Callers hold g.mu.
func (g *graph) resolve(n Node) *nodeImpl {
	if n == nil {
		return nil
	}
	impl, ok := n.(*nodeImpl)
	if !ok || impl.g != g {
		return nil
	}
	if impl == g.root {
		return impl
	}
	if live, ok := g.nodes[impl.id]; !ok || live != impl {
		return nil
	}
	return impl
}

func (g *graph) Spawn(name string, parent Node, options ...NodeBuilderOption) Node {
	n := &nodeImpl{
		g:       g,
		name:    name,
		enabled: true,
		local:   common.IdentityTransform(),
		scale:   common.Vec3{X: 1, Y: 1, Z: 1},
		color:   [4]float32{1, 1, 1, 1},
	}
	for _, option := range options {
		option(n)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	p := g.resolve(parent)
	if p == nil {
		p = g.root
	}
	g.next++
	n.id = g.next
	n.parent = p
	p.children = append(p.children, n)
	g.nodes[n.id] = n
	return n
}

func (g *graph) Despawn(n Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	impl := g.resolve(n)
	if impl == nil || impl == g.root {
		return
	}
	impl.parent.removeChild(impl)
	g.despawnLocked(impl)
}

func (g *graph) despawnLocked(n *nodeImpl) {
	for _, c := range n.children {
		g.despawnLocked(c)
	}
	n.children = nil
	n.parent = nil
	delete(g.nodes, n.id)
}

func (n *nodeImpl) removeChild(c *nodeImpl) {
	for i, child := range n.children {
		if child == c {
			n.children = append(n.children[:i], n.children[i+1:]...)
			return
		}
	}
}

func (g *graph) Reparent(n Node, parent Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	impl := g.resolve(n)
	if impl == nil || impl == g.root {
		return
	}
	p := g.resolve(parent)
	if p == nil {
		p = g.root
	}
	for a := p; a != nil; a = a.parent {
		if a == impl {
			return
		}
	}
	impl.parent.removeChild(impl)
	impl.parent = p
	p.children = append(p.children, impl)
}

func (g *graph) Get(id uint64) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return nil, false
	}
	return n, true
}

func (g *graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

func (g *graph) Instances() []gpu.Instance {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := make([]uint64, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []gpu.Instance
	for _, id := range ids {
		n := g.nodes[id]
		if !n.visible || !n.enabledChain() {
			continue
		}
		var inst gpu.Instance
		common.ScaledTransformMatrix(inst.Model[:], n.worldLocked(), n.scale)
		inst.Color = n.color
		out = append(out, inst)
	}
	return out
}

// enabledChain reports whether n and all its ancestors are enabled. Callers hold g.mu.
func (n *nodeImpl) enabledChain() bool {
	for a := n; a != nil; a = a.parent {
		if !a.enabled {
			return false
		}
	}
	return true
}
