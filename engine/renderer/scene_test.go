package renderer

import (
	"testing"

	"github.com/spaghettifunk/lumen/engine/math"
)

func TestSceneAddMeshOffsets(t *testing.T) {
	scene := NewScene()

	first := []math.Vertex3D{
		{Position: math.NewVec3(0, 0, 0)},
		{Position: math.NewVec3(1, 0, 0)},
		{Position: math.NewVec3(0, 1, 0)},
	}
	if err := scene.AddMesh(first, []uint16{0, 1, 2}, 0); err != nil {
		t.Fatal(err)
	}
	second := []math.Vertex3D{
		{Position: math.NewVec3(5, 0, 0)},
		{Position: math.NewVec3(6, 0, 0)},
		{Position: math.NewVec3(5, 1, 0)},
		{Position: math.NewVec3(6, 1, 0)},
	}
	if err := scene.AddMesh(second, []uint16{0, 1, 2, 1, 3, 2}, 1); err != nil {
		t.Fatal(err)
	}

	draws := scene.DrawCalls()
	if len(draws) != 2 {
		t.Fatalf("draw calls = %d, want 2", len(draws))
	}
	want := DrawCall{
		Topology:      TopologyTriangleList,
		IndexCount:    6,
		StartIndex:    3,
		VertexOffset:  3,
		MaterialIndex: 1,
	}
	if draws[1] != want {
		t.Errorf("second draw = %+v, want %+v", draws[1], want)
	}
	// The second draw's first index starts six bytes into the packed
	// buffer: an unaligned triplet.
	if draws[1].BaseIndexOffset() != 6 {
		t.Errorf("base index offset = %d, want 6", draws[1].BaseIndexOffset())
	}
	if len(scene.Vertices) != 7 || len(scene.Indices) != 9 {
		t.Errorf("scene holds %d vertices / %d indices, want 7 / 9", len(scene.Vertices), len(scene.Indices))
	}
}

func TestSceneRejectsPartialTriangles(t *testing.T) {
	scene := NewScene()
	vertices := []math.Vertex3D{
		{Position: math.NewVec3(0, 0, 0)},
		{Position: math.NewVec3(1, 0, 0)},
	}
	if err := scene.AddMesh(vertices, []uint16{0, 1}, 0); err == nil {
		t.Error("two-index mesh accepted as a triangle list")
	}
}

func TestEncodeVerticesLayout(t *testing.T) {
	vertices := []math.Vertex3D{
		{Position: math.NewVec3(1, 2, 3), Normal: math.NewVec3(0, 1, 0)},
		{Position: math.NewVec3(-4, 5, -6), Normal: math.NewVec3(0, 0, -1)},
	}
	data := EncodeVertices(vertices)
	if len(data) != 2*vertexStride {
		t.Fatalf("encoded %d bytes, want %d", len(data), 2*vertexStride)
	}
	decoded := DecodeVertices(data)
	for i := range vertices {
		if decoded[i] != vertices[i] {
			t.Errorf("vertex %d = %+v, want %+v", i, decoded[i], vertices[i])
		}
	}
}
