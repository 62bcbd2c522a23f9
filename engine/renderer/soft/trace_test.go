package soft

import (
	"testing"

	kmath "github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
)

func TestLoad32(t *testing.T) {
	buf := []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66}

	if got := load32(buf, 0); got != 0x44332211 {
		t.Errorf("load32(0) = %#x, want 0x44332211", got)
	}
	// Reads past the end of the buffer zero-pad instead of faulting.
	if got := load32(buf, 4); got != 0x00006655 {
		t.Errorf("load32(4) = %#x, want 0x00006655", got)
	}
	if got := load32(buf, 8); got != 0 {
		t.Errorf("load32(8) = %#x, want 0", got)
	}
}

func TestDecodeIndexTriplet(t *testing.T) {
	// Five triangles: triplets alternate between 4-byte-aligned and
	// unaligned starts, and the last one needs the zero-padded tail load.
	indices := []uint16{10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24}
	buf := renderer.EncodeIndices(indices)

	for prim := 0; prim < len(indices)/3; prim++ {
		got := decodeIndexTriplet(buf, uint32(prim*6))
		want := [3]uint16{indices[prim*3], indices[prim*3+1], indices[prim*3+2]}
		if got != want {
			t.Errorf("triplet %d = %v, want %v", prim, got, want)
		}
	}
}

func TestIndexTripletOffset(t *testing.T) {
	draw := renderer.DrawCall{IndexCount: 6, StartIndex: 9}
	if got := indexTripletOffset(draw, 0); got != 18 {
		t.Errorf("offset of prim 0 = %d, want 18", got)
	}
	if got := indexTripletOffset(draw, 1); got != 24 {
		t.Errorf("offset of prim 1 = %d, want 24", got)
	}
}

// occlusionScene builds a floor quad at y=0 facing up and a blocker quad at
// y=2 wound to face down, so primary rays from a light above pass through
// the blocker (back face culled) while occlusion rays from the floor hit it.
func occlusionScene() (*accel, []renderer.Material) {
	up := kmath.NewVec3(0, 1, 0)
	down := kmath.NewVec3(0, -1, 0)
	vertices := []kmath.Vertex3D{
		{Position: kmath.NewVec3(-4, 0, -4), Normal: up},
		{Position: kmath.NewVec3(4, 0, 4), Normal: up},
		{Position: kmath.NewVec3(4, 0, -4), Normal: up},
		{Position: kmath.NewVec3(-4, 0, 4), Normal: up},

		{Position: kmath.NewVec3(-1, 2, -1), Normal: down},
		{Position: kmath.NewVec3(1, 2, -1), Normal: down},
		{Position: kmath.NewVec3(1, 2, 1), Normal: down},
		{Position: kmath.NewVec3(-1, 2, 1), Normal: down},
	}
	indices := []uint16{
		0, 1, 2, 0, 3, 1,
		4, 5, 6, 4, 6, 7,
	}
	draws := []renderer.DrawCall{
		{IndexCount: 6, StartIndex: 0, MaterialIndex: 0},
		{IndexCount: 6, StartIndex: 6, MaterialIndex: 1},
	}
	materials := []renderer.Material{
		{
			AmbientColor: kmath.NewVec4(0.8, 0.4, 0.2, 1),
			DiffuseColor: kmath.NewVec4(0.1, 0.5, 0.9, 1),
		},
		{
			AmbientColor: kmath.NewVec4(0.2, 0.2, 0.2, 1),
			DiffuseColor: kmath.NewVec4(0.6, 0.6, 0.6, 1),
		},
	}
	return buildAccel(vertices, renderer.EncodeIndices(indices), indices, draws), materials
}

func shadowConstants(lightPos kmath.Vec3) renderer.FrameConstants {
	state := renderer.FrameState{LightPosition: lightPos}
	return renderer.ComputeFrameConstants(state, renderer.DefaultProjection(), 1)
}

func TestTraceShadowFaceOcclusion(t *testing.T) {
	a, materials := occlusionScene()
	consts := shadowConstants(kmath.NewVec3(0, 5, 0))
	img := newImage(4, 4, 6, renderer.ImageFormatRGBA32F)

	// Face 3 looks straight down from the light.
	traceShadowFace(a, materials, consts, 3, img)

	// Inner pixels descend through the blocker span: the primary ray culls
	// its back face and lands on the floor, whose occlusion ray toward the
	// light then hits the blocker. Shaded color loses the diffuse term
	// entirely and visibility drops to zero.
	occluded := img.Load(3, 1, 1)
	wantOccluded := materials[0].AmbientColor.MulScalar(0.3)
	if !occluded.ToVec3().Compare(wantOccluded.ToVec3(), 1e-5) {
		t.Errorf("occluded pixel = %+v, want rgb %+v", occluded, wantOccluded)
	}
	if occluded.W != 0 {
		t.Errorf("occluded pixel visibility = %f, want 0", occluded.W)
	}

	// An outer pixel lands on the floor outside the blocker's umbra and
	// keeps the full shadow-modulated diffuse term.
	lit := img.Load(3, 0, 0)
	if lit.W != 1 {
		t.Fatalf("lit pixel visibility = %f, want 1", lit.W)
	}
	// The ray through pixel (0,0) hits the floor at (-3.75, 0, 3.75).
	hit := kmath.NewVec3(-3.75, 0, 3.75)
	lightDir := kmath.NewVec3(0, 5, 0).Sub(hit).Normalized()
	nl := kmath.Saturate(lightDir.Dot(kmath.NewVec3(0, 1, 0)))
	wantLit := materials[0].AmbientColor.MulScalar(0.3).
		Add(materials[0].DiffuseColor.MulScalar(nl))
	if !lit.ToVec3().Compare(wantLit.ToVec3(), 1e-3) {
		t.Errorf("lit pixel = %+v, want rgb %+v", lit, wantLit)
	}
}

func TestTraceShadowFaceMiss(t *testing.T) {
	a, materials := occlusionScene()
	consts := shadowConstants(kmath.NewVec3(0, 5, 0))
	img := newImage(4, 4, 6, renderer.ImageFormatRGBA32F)

	// Face 2 looks up; all geometry sits below the light, so every primary
	// ray misses and writes opaque black.
	traceShadowFace(a, materials, consts, 2, img)

	for y := uint32(0); y < img.Height; y++ {
		for x := uint32(0); x < img.Width; x++ {
			got := img.Load(2, x, y)
			if got != kmath.NewVec4(0, 0, 0, 1) {
				t.Fatalf("miss pixel (%d,%d) = %+v, want opaque black", x, y, got)
			}
		}
	}
}
