package renderer

import (
	"encoding/binary"
	"math"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-t5/engine/gpu"
)

func TestBoxVerticesFaceOutward(t *testing.T) {
	v := boxVertices()
	if len(v) != boxVertexCount*6 {
		t.Fatalf("len = %d floats, want %d", len(v), boxVertexCount*6)
	}
	for i := 0; i < boxVertexCount; i++ {
		p := v[i*6 : i*6+3]
		n := v[i*6+3 : i*6+6]
		for _, c := range p {
			if c != 0.5 && c != -0.5 {
				t.Fatalf("vertex %d = %v, want unit cube corner", i, p)
			}
		}
		if d := p[0]*n[0] + p[1]*n[1] + p[2]*n[2]; d <= 0 {
			t.Fatalf("vertex %d normal %v points inward", i, n)
		}
	}

	// Each triangle winds counter-clockwise around its outward normal.
	for tri := 0; tri < boxVertexCount/3; tri++ {
		at := func(k int) [3]float32 {
			o := (tri*3 + k) * 6
			return [3]float32{v[o], v[o+1], v[o+2]}
		}
		a, b, c := at(0), at(1), at(2)
		e1 := [3]float32{b[0] - a[0], b[1] - a[1], b[2] - a[2]}
		e2 := [3]float32{c[0] - a[0], c[1] - a[1], c[2] - a[2]}
		cross := [3]float32{
			e1[1]*e2[2] - e1[2]*e2[1],
			e1[2]*e2[0] - e1[0]*e2[2],
			e1[0]*e2[1] - e1[1]*e2[0],
		}
		n := v[tri*18+3 : tri*18+6]
		if cross[0]*n[0]+cross[1]*n[1]+cross[2]*n[2] <= 0 {
			t.Fatalf("triangle %d winds clockwise", tri)
		}
	}
}

func TestMarshalInstancesLayout(t *testing.T) {
	var inst gpu.Instance
	inst.Model[12] = 3
	inst.Color = [4]float32{0.25, 0.5, 0.75, 1}

	buf := marshalInstances([]gpu.Instance{{}, inst})
	if len(buf) != 2*boxInstanceStride {
		t.Fatalf("len = %d, want %d", len(buf), 2*boxInstanceStride)
	}
	read := func(off int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
	}
	base := boxInstanceStride
	if got := read(base + 12*4); got != 3 {
		t.Errorf("model[12] = %v, want 3", got)
	}
	if got := read(base + 64 + 4); got != 0.5 {
		t.Errorf("color.g = %v, want 0.5", got)
	}
}

func TestBoxShaderDeclaresEntryPoints(t *testing.T) {
	for _, want := range []string{"struct CameraUniform", "fn vs_main", "fn fs_main", "@location(6) color"} {
		if !strings.Contains(boxShaderSource, want) {
			t.Errorf("shader source missing %q", want)
		}
	}
}
