// Package renderer owns the frame orchestration for the deferred pipeline:
// the frame ring, CPU/GPU fence synchronization and the three render passes
// (ray-traced shadows, G-buffer rasterization, deferred lighting).
//
// Device bootstrap, presentation and shader programs live behind the Device
// and PresentTarget interfaces; the soft package carries the reference
// software device, the vulkan package the swapchain presenter.
package renderer

import (
	"github.com/spaghettifunk/lumen/engine/math"
)

// Material holds the two color terms the lighting model consumes. The table
// of materials is uploaded once and shared read-only by all in-flight frames.
type Material struct {
	AmbientColor math.Vec4
	DiffuseColor math.Vec4
}

type PrimitiveTopology uint8

const (
	TopologyTriangleList PrimitiveTopology = iota
)

// DrawCall describes one mesh sub-range. StartIndex and IndexCount address
// 16-bit indices, VertexOffset is added to each decoded index.
// MaterialIndex must reference a live material table entry at draw time.
type DrawCall struct {
	Topology      PrimitiveTopology
	IndexCount    uint32
	StartIndex    uint32
	VertexOffset  int32
	MaterialIndex uint32
}

// BaseIndexOffset returns the byte offset of the draw's first index within
// the packed 16-bit index buffer. It is handed to the closest-hit stage
// together with the material index.
func (d DrawCall) BaseIndexOffset() uint32 {
	return d.StartIndex * 2
}

// GBufferTargets groups the geometry pass outputs consumed by the lighting
// pass: base/ambient color, world-space position, diffuse albedo and the
// world-space normal.
type GBufferTargets struct {
	Ambient  ImageID
	Position ImageID
	Diffuse  ImageID
	Normal   ImageID
}

// CameraState is the per-frame mutable camera input. Everything else about
// the camera (fov, clip planes) is fixed configuration.
type CameraState struct {
	Position math.Vec3
	Yaw      float32
	Pitch    float32
	Roll     float32
}

// FrameState is what the application mutates between frames: the camera and
// the point light. The orchestrator captures it by value when recording, so
// CPU writes for frame N+1 can never race GPU reads of frame N.
type FrameState struct {
	Camera        CameraState
	LightPosition math.Vec3
}
