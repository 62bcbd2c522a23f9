package soft

import (
	kmath "github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
)

// load32 reads a little-endian 32-bit word at byteOffset, zero-padding past
// the end of the buffer. The final aligned triplet of an index buffer needs
// the padding: its second word only has two meaningful bytes.
func load32(buf []byte, byteOffset uint32) uint32 {
	var w uint32
	for i := uint32(0); i < 4; i++ {
		at := byteOffset + i
		if at >= uint32(len(buf)) {
			break
		}
		w |= uint32(buf[at]) << (8 * i)
	}
	return w
}

// decodeIndexTriplet extracts three consecutive 16-bit indices starting at
// byteOffset using two 4-byte loads. Triplets are 6 bytes, so every other
// one straddles a word boundary: the aligned layout is {i0,i1|i2,-}, the
// unaligned layout {-,i0|i1,i2}.
func decodeIndexTriplet(buf []byte, byteOffset uint32) [3]uint16 {
	alignedOffset := byteOffset & ^uint32(3)
	w0 := load32(buf, alignedOffset)
	w1 := load32(buf, alignedOffset+4)

	if byteOffset == alignedOffset {
		return [3]uint16{
			uint16(w0 & 0xffff),
			uint16(w0 >> 16),
			uint16(w1 & 0xffff),
		}
	}
	return [3]uint16{
		uint16(w0 >> 16),
		uint16(w1 & 0xffff),
		uint16(w1 >> 16),
	}
}

// indexTripletOffset is the byte offset of a primitive's first index: the
// draw's base index offset plus three 16-bit indices per preceding triangle.
func indexTripletOffset(draw renderer.DrawCall, localPrim uint32) uint32 {
	return draw.BaseIndexOffset() + localPrim*6
}

// shadowRayBias offsets occlusion ray origins off the surface so the ray
// does not re-hit its own triangle.
const shadowRayBias = 1e-3

// hitShading evaluates the closest-hit program for one primary hit: decodes
// the triangle indices through the packed index buffer, interpolates the
// vertex normals with the barycentric attributes, shades against the point
// light and casts the occlusion ray. Returns the shaded color and whether
// the hit point sees the light.
func hitShading(a *accel, materials []renderer.Material, lightPos kmath.Vec3, r ray, hit hitRecord) (kmath.Vec4, bool) {
	p := &a.prims[hit.prim]
	draw := a.draws[p.drawIndex]

	triplet := decodeIndexTriplet(a.indexBytes, indexTripletOffset(draw, p.localPrim))
	n0 := a.vertices[int32(triplet[0])+draw.VertexOffset].Normal
	n1 := a.vertices[int32(triplet[1])+draw.VertexOffset].Normal
	n2 := a.vertices[int32(triplet[2])+draw.VertexOffset].Normal
	w := 1.0 - hit.u - hit.v
	normal := n0.MulScalar(w).Add(n1.MulScalar(hit.u)).Add(n2.MulScalar(hit.v)).Normalized()

	hitPos := r.origin.Add(r.dir.MulScalar(hit.t))
	toLight := lightPos.Sub(hitPos)
	lightDist := toLight.Length()
	lightDir := toLight.MulScalar(1.0 / lightDist)

	material := materials[draw.MaterialIndex]
	nl := kmath.Saturate(lightDir.Dot(normal))

	// Occlusion query, not a shading query: first hit terminates and the
	// ray never runs past the light (TMax is the exact light distance).
	shadowRay := ray{
		origin: hitPos.Add(lightDir.MulScalar(shadowRayBias)),
		dir:    lightDir,
		tMin:   0,
		tMax:   lightDist - shadowRayBias,
	}
	_, occluded := a.trace(shadowRay, flagTerminateOnFirstHit)

	lit := float32(1)
	if occluded {
		lit = 0
	}
	color := material.AmbientColor.MulScalar(0.3).
		Add(material.DiffuseColor.MulScalar(lit * nl))
	color.W = 1
	return color, !occluded
}

// faceBasisWorld extracts the world-space basis of a shadow cubemap face
// from its view matrix: rows 0..2 of a look-at matrix are the camera axes,
// and the view direction is the negated z axis.
func faceBasisWorld(view kmath.Mat4) (xAxis, yAxis, lookDir kmath.Vec3) {
	xAxis = kmath.NewVec3(view.Data[0], view.Data[4], view.Data[8])
	yAxis = kmath.NewVec3(view.Data[1], view.Data[5], view.Data[9])
	lookDir = kmath.NewVec3(-view.Data[2], -view.Data[6], -view.Data[10])
	return
}

// traceShadowFace runs ray generation for one cubemap face: a primary ray
// per pixel from the light through a 90 degree frustum, back faces culled.
// The face layer stores shaded radiance in RGB and light visibility in
// alpha; primary misses write opaque black with full visibility.
func traceShadowFace(a *accel, materials []renderer.Material, consts renderer.FrameConstants, face uint32, img *Image) {
	lightPos := consts.LightPosition.ToVec3()
	xAxis, yAxis, lookDir := faceBasisWorld(consts.ShadowViews[face])

	for y := uint32(0); y < img.Height; y++ {
		// Pixel centers mapped to [-1,1], y flipped so +y is up.
		py := 1.0 - (float32(y)+0.5)*2.0/float32(img.Height)
		for x := uint32(0); x < img.Width; x++ {
			px := (float32(x)+0.5)*2.0/float32(img.Width) - 1.0
			dir := xAxis.MulScalar(px).Add(yAxis.MulScalar(py)).Add(lookDir).Normalized()

			primary := ray{origin: lightPos, dir: dir, tMin: 0, tMax: kmath.K_INFINITY}
			hit, found := a.trace(primary, flagCullBackFaces)
			if !found {
				img.Store(face, x, y, kmath.NewVec4(0, 0, 0, 1))
				continue
			}
			color, visible := hitShading(a, materials, lightPos, primary, hit)
			if visible {
				color.W = 1
			} else {
				color.W = 0
			}
			img.Store(face, x, y, color)
		}
	}
}
