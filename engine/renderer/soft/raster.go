package soft

import (
	kmath "github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
)

// gbufferImages are the resolved geometry pass attachments.
type gbufferImages struct {
	ambient  *Image
	position *Image
	diffuse  *Image
	normal   *Image
}

// screenVertex is one post-transform vertex: clip position, derived screen
// coordinates and the world-space attributes carried to the pixel stage.
type screenVertex struct {
	clip     kmath.Vec4
	sx, sy   float32
	invW     float32
	worldPos kmath.Vec3
	normal   kmath.Vec3
}

func transformVertex(v kmath.Vertex3D, worldViewProj kmath.Mat4, width, height uint32) (screenVertex, bool) {
	clip := v.Position.ToVec4(1).Transform(worldViewProj)
	if clip.W <= kmath.K_FLOAT_EPSILON {
		return screenVertex{}, false
	}
	invW := 1.0 / clip.W
	ndcX := clip.X * invW
	ndcY := clip.Y * invW
	return screenVertex{
		clip:     clip,
		sx:       (ndcX*0.5 + 0.5) * float32(width),
		sy:       (1.0 - (ndcY*0.5 + 0.5)) * float32(height),
		invW:     invW,
		worldPos: v.Position,
		normal:   v.Normal,
	}, true
}

func edgeFunction(ax, ay, bx, by, px, py float32) float32 {
	return (px-ax)*(by-ay) - (py-ay)*(bx-ax)
}

// rasterizeDraw is the geometry pass pixel path for one draw call: pure
// attribute rasterization with depth testing, no lighting. Each covered
// pixel writes the material ambient and diffuse colors with alpha forced
// opaque, the interpolated world position with w=1 marking covered
// geometry, and the interpolated world normal.
func rasterizeDraw(vertices []kmath.Vertex3D, indices []uint16, draw renderer.DrawCall, material renderer.Material, worldViewProj kmath.Mat4, g gbufferImages, depth *Image) {
	width, height := depth.Width, depth.Height

	for prim := uint32(0); prim < draw.IndexCount/3; prim++ {
		base := draw.StartIndex + prim*3
		var sv [3]screenVertex
		visible := true
		for k := 0; k < 3; k++ {
			idx := int32(indices[base+uint32(k)]) + draw.VertexOffset
			v, ok := transformVertex(vertices[idx], worldViewProj, width, height)
			if !ok {
				// Triangles crossing the near plane are dropped rather
				// than clipped; scene content stays inside the frustum.
				visible = false
				break
			}
			sv[k] = v
		}
		if !visible {
			continue
		}

		area := edgeFunction(sv[0].sx, sv[0].sy, sv[1].sx, sv[1].sy, sv[2].sx, sv[2].sy)
		if area == 0 {
			continue
		}

		minX := uint32(kmath.Clamp(int32(minf(minf(sv[0].sx, sv[1].sx), sv[2].sx)), 0, int32(width)-1))
		maxX := uint32(kmath.Clamp(int32(maxf(maxf(sv[0].sx, sv[1].sx), sv[2].sx))+1, 0, int32(width)-1))
		minY := uint32(kmath.Clamp(int32(minf(minf(sv[0].sy, sv[1].sy), sv[2].sy)), 0, int32(height)-1))
		maxY := uint32(kmath.Clamp(int32(maxf(maxf(sv[0].sy, sv[1].sy), sv[2].sy))+1, 0, int32(height)-1))

		invArea := 1.0 / area
		for y := minY; y <= maxY; y++ {
			py := float32(y) + 0.5
			for x := minX; x <= maxX; x++ {
				px := float32(x) + 0.5
				w0 := edgeFunction(sv[1].sx, sv[1].sy, sv[2].sx, sv[2].sy, px, py) * invArea
				w1 := edgeFunction(sv[2].sx, sv[2].sy, sv[0].sx, sv[0].sy, px, py) * invArea
				w2 := edgeFunction(sv[0].sx, sv[0].sy, sv[1].sx, sv[1].sy, px, py) * invArea
				if w0 < 0 || w1 < 0 || w2 < 0 {
					continue
				}

				// NDC z is affine in screen space, interpolate directly.
				z := w0*sv[0].clip.Z*sv[0].invW + w1*sv[1].clip.Z*sv[1].invW + w2*sv[2].clip.Z*sv[2].invW
				if z >= depth.LoadDepth(x, y) {
					continue
				}
				depth.StoreDepth(x, y, z)

				// Perspective-correct attribute interpolation.
				iw := w0*sv[0].invW + w1*sv[1].invW + w2*sv[2].invW
				worldPos := sv[0].worldPos.MulScalar(w0 * sv[0].invW).
					Add(sv[1].worldPos.MulScalar(w1 * sv[1].invW)).
					Add(sv[2].worldPos.MulScalar(w2 * sv[2].invW)).
					MulScalar(1.0 / iw)
				normal := sv[0].normal.MulScalar(w0 * sv[0].invW).
					Add(sv[1].normal.MulScalar(w1 * sv[1].invW)).
					Add(sv[2].normal.MulScalar(w2 * sv[2].invW)).
					MulScalar(1.0 / iw).Normalized()

				ambient := material.AmbientColor
				ambient.W = 1
				diffuse := material.DiffuseColor
				diffuse.W = 1
				g.ambient.Store(0, x, y, ambient)
				g.diffuse.Store(0, x, y, diffuse)
				g.position.Store(0, x, y, kmath.NewVec4FromVec3(worldPos, 1))
				g.normal.Store(0, x, y, kmath.NewVec4FromVec3(normal, 0))
			}
		}
	}
}
