package node

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-t5/common"
)

func TestWorldComposesAncestors(t *testing.T) {
	g := NewGraph()
	board := g.Spawn("board", nil, WithTransform(common.Transform{
		Position: common.Vec3{X: 10},
		Rotation: common.QuatFromAxisAngle(common.AxisY, math.Pi/2),
	}))
	glasses := g.Spawn("glasses", board, WithTransform(common.Transform{
		Position: common.Vec3{X: 1},
		Rotation: common.IdentityQuat(),
	}))

	// Rotating +X by a quarter turn about Y gives -Z.
	want := common.Vec3{X: 10, Z: -1}
	if got := glasses.World().Position; !got.ApproxEqual(want, 1e-5) {
		t.Errorf("World().Position = %v, want %v", got, want)
	}
	if glasses.Parent().ID() != board.ID() {
		t.Errorf("Parent() = %d, want %d", glasses.Parent().ID(), board.ID())
	}
}

func TestDespawnRemovesSubtree(t *testing.T) {
	g := NewGraph()
	a := g.Spawn("a", nil)
	left := g.Spawn("left", a)
	g.Spawn("right", a)
	other := g.Spawn("other", nil)

	g.Despawn(a)
	if g.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", g.Len())
	}
	if _, ok := g.Get(left.ID()); ok {
		t.Error("child still reachable after parent despawned")
	}
	if _, ok := g.Get(other.ID()); !ok {
		t.Error("unrelated node removed")
	}
	if n := len(g.Root().Children()); n != 1 {
		t.Errorf("root has %d children, want 1", n)
	}

	// Despawning twice and despawning the root are no-ops.
	g.Despawn(a)
	g.Despawn(g.Root())
	if g.Len() != 1 {
		t.Errorf("Len() = %d after no-op despawns, want 1", g.Len())
	}
}

func TestSpawnUnderForeignParentUsesRoot(t *testing.T) {
	g1 := NewGraph()
	g2 := NewGraph()
	foreign := g2.Spawn("foreign", nil)

	n := g1.Spawn("n", foreign)
	if n.Parent().ID() != g1.Root().ID() || n.Parent() != g1.Root() {
		t.Error("node spawned under a foreign parent was not attached to the root")
	}
}

func TestReparentRejectsCycles(t *testing.T) {
	g := NewGraph()
	a := g.Spawn("a", nil)
	b := g.Spawn("b", a)

	g.Reparent(a, b)
	if a.Parent() != g.Root() {
		t.Error("Reparent created a cycle")
	}

	c := g.Spawn("c", nil)
	g.Reparent(b, c)
	if b.Parent() != c {
		t.Error("Reparent did not move the node")
	}
	if n := len(a.Children()); n != 0 {
		t.Errorf("old parent has %d children, want 0", n)
	}
}

func TestInstancesSkipDisabledSubtrees(t *testing.T) {
	g := NewGraph()
	red := [4]float32{1, 0, 0, 1}
	board := g.Spawn("board", nil, WithBox(common.Vec3{X: 2, Y: 0.01, Z: 2}, red))
	glasses := g.Spawn("glasses", board, WithBox(common.Vec3{X: 0.1, Y: 0.1, Z: 0.1}, red))
	g.Spawn("hidden", nil)

	if n := len(g.Instances()); n != 2 {
		t.Fatalf("Instances() = %d, want 2", n)
	}

	board.SetEnabled(false)
	if n := len(g.Instances()); n != 0 {
		t.Errorf("Instances() = %d with disabled parent, want 0", n)
	}

	board.SetEnabled(true)
	glasses.SetPosition(common.Vec3{Y: 3})
	inst := g.Instances()
	if inst[1].Model[13] != 3 {
		t.Errorf("glasses instance Y translation = %v, want 3", inst[1].Model[13])
	}
	if inst[0].Model[0] != 2 {
		t.Errorf("board instance X scale = %v, want 2", inst[0].Model[0])
	}
}
