package renderer

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/spaghettifunk/lumen/engine/core"
	kmath "github.com/spaghettifunk/lumen/engine/math"
)

// Scene holds the static geometry: one interleaved {position, normal}
// vertex buffer, one packed 16-bit index buffer and the draw calls that
// sub-range them. Geometry is uploaded once and never mutated afterwards,
// which is what lets every in-flight frame share it without locking.
type Scene struct {
	Vertices []kmath.Vertex3D
	Indices  []uint16

	draws []DrawCall

	vertexBuffer BufferID
	indexBuffer  BufferID
	accel        AccelID
	uploaded     bool
}

func NewScene() *Scene {
	return &Scene{}
}

// AddMesh appends a mesh sub-range and its draw call. Indices are local to
// the mesh; the draw call carries the vertex offset that rebases them.
func (s *Scene) AddMesh(vertices []kmath.Vertex3D, indices []uint16, materialIndex uint32) error {
	if s.uploaded {
		return fmt.Errorf("scene geometry is immutable once uploaded")
	}
	if len(indices)%3 != 0 {
		return fmt.Errorf("mesh index count %d is not a triangle list", len(indices))
	}

	draw := DrawCall{
		Topology:      TopologyTriangleList,
		IndexCount:    uint32(len(indices)),
		StartIndex:    uint32(len(s.Indices)),
		VertexOffset:  int32(len(s.Vertices)),
		MaterialIndex: materialIndex,
	}

	s.Vertices = append(s.Vertices, vertices...)
	s.Indices = append(s.Indices, indices...)
	s.draws = append(s.draws, draw)
	return nil
}

func (s *Scene) DrawCalls() []DrawCall {
	return s.draws
}

func (s *Scene) VertexBuffer() BufferID { return s.vertexBuffer }
func (s *Scene) IndexBuffer() BufferID  { return s.indexBuffer }
func (s *Scene) Accel() AccelID         { return s.accel }

// Upload pushes the geometry to the device and builds the ray-tracing
// acceleration structure over it. Every draw call's material reference is
// validated against the table first; any failure aborts initialization
// before a single frame is rendered.
func (s *Scene) Upload(device Device, materials *MaterialTable) error {
	if s.uploaded {
		return fmt.Errorf("scene already uploaded")
	}
	if len(s.draws) == 0 {
		return fmt.Errorf("scene has no draw calls")
	}
	for i, draw := range s.draws {
		if err := materials.Validate(draw.MaterialIndex); err != nil {
			return fmt.Errorf("draw call %d: %w", i, err)
		}
	}

	vb, err := device.CreateBuffer(uint64(len(s.Vertices)) * vertexStride)
	if err != nil {
		return fmt.Errorf("create vertex buffer: %w", err)
	}
	if err := device.Upload(EncodeVertices(s.Vertices), vb); err != nil {
		return fmt.Errorf("upload vertex buffer: %w", err)
	}

	ib, err := device.CreateBuffer(uint64(len(s.Indices)) * 2)
	if err != nil {
		return fmt.Errorf("create index buffer: %w", err)
	}
	if err := device.Upload(EncodeIndices(s.Indices), ib); err != nil {
		return fmt.Errorf("upload index buffer: %w", err)
	}

	accel, err := device.BuildAccelerationStructure(vb, ib, s.draws)
	if err != nil {
		return fmt.Errorf("build acceleration structure: %w", err)
	}

	s.vertexBuffer = vb
	s.indexBuffer = ib
	s.accel = accel
	s.uploaded = true

	core.LogInfo("scene uploaded: %d vertices, %d indices, %d draw calls",
		len(s.Vertices), len(s.Indices), len(s.draws))
	return nil
}

// vertexStride is the device layout of one vertex: position xyz + normal
// xyz, float32 each.
const vertexStride = 6 * 4

// EncodeVertices serializes vertices into the little-endian device layout.
func EncodeVertices(vertices []kmath.Vertex3D) []byte {
	out := make([]byte, 0, len(vertices)*vertexStride)
	put := func(f float32) {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(f))
	}
	for _, v := range vertices {
		put(v.Position.X)
		put(v.Position.Y)
		put(v.Position.Z)
		put(v.Normal.X)
		put(v.Normal.Y)
		put(v.Normal.Z)
	}
	return out
}

// DecodeVertices is the inverse of EncodeVertices.
func DecodeVertices(data []byte) []kmath.Vertex3D {
	count := len(data) / vertexStride
	out := make([]kmath.Vertex3D, count)
	get := func(off int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
	}
	for i := 0; i < count; i++ {
		base := i * vertexStride
		out[i].Position = kmath.NewVec3(get(base), get(base+4), get(base+8))
		out[i].Normal = kmath.NewVec3(get(base+12), get(base+16), get(base+20))
	}
	return out
}

// EncodeIndices packs 16-bit indices little-endian. Triplets start every 6
// bytes, so consecutive triangles alternate between 4-byte-aligned and
// unaligned starts; the closest-hit decoder handles both layouts.
func EncodeIndices(indices []uint16) []byte {
	out := make([]byte, 0, len(indices)*2)
	for _, i := range indices {
		out = binary.LittleEndian.AppendUint16(out, i)
	}
	return out
}

// DecodeIndices is the inverse of EncodeIndices.
func DecodeIndices(data []byte) []uint16 {
	out := make([]uint16, len(data)/2)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(data[i*2:])
	}
	return out
}
