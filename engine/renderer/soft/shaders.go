package soft

import (
	kmath "github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
)

// shadowVisibility samples the cubemap face a world position falls into,
// as seen from the light, and returns the stored visibility term.
func shadowVisibility(shadow *Image, consts renderer.FrameConstants, worldPos kmath.Vec3) float32 {
	lightPos := consts.LightPosition.ToVec3()
	face := renderer.CubeFaceForDirection(worldPos.Sub(lightPos))

	// Project into the face frustum. The face looks down -z with a 90
	// degree field of view, so ndc is view.xy over -view.z.
	viewPos := worldPos.Transform(consts.ShadowViews[face])
	if viewPos.Z >= -kmath.K_FLOAT_EPSILON {
		return 1
	}
	ndcX := viewPos.X / -viewPos.Z
	ndcY := viewPos.Y / -viewPos.Z

	x := uint32(kmath.Clamp(int32((ndcX*0.5+0.5)*float32(shadow.Width)), 0, int32(shadow.Width)-1))
	y := uint32(kmath.Clamp(int32((1.0-(ndcY*0.5+0.5))*float32(shadow.Height)), 0, int32(shadow.Height)-1))
	return shadow.Load(face, x, y).W
}

// composeLighting is the deferred lighting stage: one invocation per output
// pixel, fetching the G-buffer attributes and the shadow visibility and
// applying the ambient plus shadow-modulated diffuse model. Pixels with no
// rasterized geometry (position w is zero) stay background black.
func composeLighting(g gbufferImages, shadow *Image, out *Image, consts renderer.FrameConstants) {
	lightPos := consts.LightPosition.ToVec3()

	for y := uint32(0); y < out.Height; y++ {
		for x := uint32(0); x < out.Width; x++ {
			posSample := g.position.Load(0, x, y)
			if posSample.W == 0 {
				out.Store(0, x, y, kmath.NewVec4(0, 0, 0, 1))
				continue
			}
			worldPos := posSample.ToVec3()
			base := g.ambient.Load(0, x, y)
			albedo := g.diffuse.Load(0, x, y)
			normal := g.normal.Load(0, x, y).ToVec3()

			lightDir := lightPos.Sub(worldPos).Normalized()
			nl := kmath.Saturate(lightDir.Dot(normal))
			vis := shadowVisibility(shadow, consts, worldPos)

			color := base.MulScalar(0.3).Add(albedo.MulScalar(vis * nl))
			color.W = 1
			out.Store(0, x, y, color)
		}
	}
}
