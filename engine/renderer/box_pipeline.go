package renderer

import (
	"encoding/binary"
	"math"

	"github.com/Carmen-Shannon/oxy-t5/engine/camera"
	"github.com/Carmen-Shannon/oxy-t5/engine/gpu"
)

// boxShaderSource draws instanced unit cubes with a fixed directional light.
var boxShaderSource = camera.GPUCameraUniformSource + `
@group(0) @binding(0) var<uniform> camera: CameraUniform;

struct VertexOut {
    @builtin(position) clip: vec4<f32>,
    @location(0) color: vec4<f32>,
};

@vertex
fn vs_main(
    @location(0) position: vec3<f32>,
    @location(1) normal: vec3<f32>,
    @location(2) m0: vec4<f32>,
    @location(3) m1: vec4<f32>,
    @location(4) m2: vec4<f32>,
    @location(5) m3: vec4<f32>,
    @location(6) color: vec4<f32>,
) -> VertexOut {
    let model = mat4x4<f32>(m0, m1, m2, m3);
    let n = normalize((model * vec4<f32>(normal, 0.0)).xyz);
    let light = 0.35 + 0.65 * max(dot(n, normalize(vec3<f32>(0.4, 1.0, 0.3))), 0.0);
    var out: VertexOut;
    out.clip = camera.view_proj * model * vec4<f32>(position, 1.0);
    out.color = vec4<f32>(color.rgb * light, color.a);
    return out;
}

@fragment
fn fs_main(in: VertexOut) -> @location(0) vec4<f32> {
    return in.color;
}
`

const (
	boxVertexStride   = 6 * 4  // position + normal
	boxInstanceStride = 20 * 4 // model matrix + color
	boxVertexCount    = 36
)

// boxVertices returns the 36 vertices of a unit cube centered on the origin, counter-clockwise
// when viewed from outside.
func boxVertices() []float32 {
	type face struct {
		normal [3]float32
		u, v   [3]float32
	}
	faces := []face{
		{normal: [3]float32{1, 0, 0}, u: [3]float32{0, 0, -1}, v: [3]float32{0, 1, 0}},
		{normal: [3]float32{-1, 0, 0}, u: [3]float32{0, 0, 1}, v: [3]float32{0, 1, 0}},
		{normal: [3]float32{0, 1, 0}, u: [3]float32{1, 0, 0}, v: [3]float32{0, 0, -1}},
		{normal: [3]float32{0, -1, 0}, u: [3]float32{1, 0, 0}, v: [3]float32{0, 0, 1}},
		{normal: [3]float32{0, 0, 1}, u: [3]float32{1, 0, 0}, v: [3]float32{0, 1, 0}},
		{normal: [3]float32{0, 0, -1}, u: [3]float32{-1, 0, 0}, v: [3]float32{0, 1, 0}},
	}
	corners := [6][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, -1}, {1, 1}, {-1, 1}}

	out := make([]float32, 0, boxVertexCount*6)
	for _, f := range faces {
		for _, c := range corners {
			for i := 0; i < 3; i++ {
				out = append(out, 0.5*(f.normal[i]+c[0]*f.u[i]+c[1]*f.v[i]))
			}
			out = append(out, f.normal[:]...)
		}
	}
	return out
}

// marshalFloats encodes values as little-endian float32.
func marshalFloats(values []float32) []byte {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// marshalInstances packs instances into the per-instance vertex buffer layout.
func marshalInstances(instances []gpu.Instance) []byte {
	buf := make([]byte, len(instances)*boxInstanceStride)
	for i, inst := range instances {
		off := i * boxInstanceStride
		for j, v := range inst.Model {
			binary.LittleEndian.PutUint32(buf[off+j*4:], math.Float32bits(v))
		}
		for j, v := range inst.Color {
			binary.LittleEndian.PutUint32(buf[off+64+j*4:], math.Float32bits(v))
		}
	}
	return buf
}
