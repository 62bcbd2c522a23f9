package soft

import (
	"testing"

	kmath "github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
)

func testGBuffer(width, height uint32) gbufferImages {
	return gbufferImages{
		ambient:  newImage(width, height, 1, renderer.ImageFormatRGBA32F),
		position: newImage(width, height, 1, renderer.ImageFormatRGBA32F),
		diffuse:  newImage(width, height, 1, renderer.ImageFormatRGBA32F),
		normal:   newImage(width, height, 1, renderer.ImageFormatRGBA32F),
	}
}

func TestComposeLighting(t *testing.T) {
	consts := shadowConstants(kmath.NewVec3(0, 5, 0))

	ambient := kmath.NewVec4(0.8, 0.4, 0.2, 1)
	diffuse := kmath.NewVec4(0.1, 0.5, 0.9, 1)

	g := testGBuffer(2, 1)
	g.ambient.Store(0, 0, 0, ambient)
	g.diffuse.Store(0, 0, 0, diffuse)
	g.position.Store(0, 0, 0, kmath.NewVec4(0, 0, 0, 1))
	g.normal.Store(0, 0, 0, kmath.NewVec4(0, 1, 0, 0))
	// Pixel 1 keeps position w = 0: no geometry was rasterized there.

	shadow := newImage(4, 4, 6, renderer.ImageFormatRGBA32F)
	out := newImage(2, 1, 1, renderer.ImageFormatRGBA32F)

	// Fully visible: the surface point looks straight up at the light, so
	// the diffuse term enters at full strength.
	shadow.Clear(kmath.NewVec4(0, 0, 0, 1))
	composeLighting(g, shadow, out, consts)

	want := ambient.MulScalar(0.3).Add(diffuse)
	got := out.Load(0, 0, 0)
	if !got.ToVec3().Compare(want.ToVec3(), 1e-5) {
		t.Errorf("lit pixel = %+v, want rgb %+v", got, want)
	}
	if got.W != 1 {
		t.Errorf("lit pixel alpha = %f, want 1", got.W)
	}
	if bg := out.Load(0, 1, 0); bg != kmath.NewVec4(0, 0, 0, 1) {
		t.Errorf("background pixel = %+v, want opaque black", bg)
	}

	// Zero visibility removes the diffuse term but never the ambient one.
	shadow.Clear(kmath.NewVec4(0, 0, 0, 0))
	composeLighting(g, shadow, out, consts)

	want = ambient.MulScalar(0.3)
	got = out.Load(0, 0, 0)
	if !got.ToVec3().Compare(want.ToVec3(), 1e-6) {
		t.Errorf("shadowed pixel = %+v, want rgb %+v", got, want)
	}
}

func TestShadowVisibilityFaceSelection(t *testing.T) {
	consts := shadowConstants(kmath.NewVec3(0, 5, 0))
	shadow := newImage(4, 4, 6, renderer.ImageFormatRGBA32F)

	// Only the downward face carries visibility; every other face is zero.
	shadow.Clear(kmath.Vec4{})
	for y := uint32(0); y < 4; y++ {
		for x := uint32(0); x < 4; x++ {
			shadow.Store(3, x, y, kmath.NewVec4(0, 0, 0, 1))
		}
	}

	// A point below the light must sample the downward face.
	if vis := shadowVisibility(shadow, consts, kmath.NewVec3(0.5, 0, 0.5)); vis != 1 {
		t.Errorf("visibility below the light = %f, want 1", vis)
	}
	// A point beside the light falls into a lateral face.
	if vis := shadowVisibility(shadow, consts, kmath.NewVec3(8, 5, 0)); vis != 0 {
		t.Errorf("visibility beside the light = %f, want 0", vis)
	}
}
