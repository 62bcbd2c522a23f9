package soft

import (
	"sort"

	kmath "github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
)

// primitive is one triangle of the acceleration structure, with enough
// identity to reach the per-draw shader constants from a hit.
type primitive struct {
	v0, v1, v2 kmath.Vec3
	centroid   kmath.Vec3

	// drawIndex locates the draw call whose constants (material index,
	// base index offset) apply to this triangle.
	drawIndex int
	// localPrim is the triangle's index within its draw's index range.
	localPrim uint32
}

func (p *primitive) bounds() (min, max kmath.Vec3) {
	min = vecMin(vecMin(p.v0, p.v1), p.v2)
	max = vecMax(vecMax(p.v0, p.v1), p.v2)
	return
}

// bvhNode is one node of the bounding-volume hierarchy. A node is a leaf
// when count > 0; start then indexes into the primitive array. Interior
// nodes store their children at left and left+1... right.
type bvhNode struct {
	min, max    kmath.Vec3
	left, right int32
	start       int32
	count       int32
}

// accel is the bounded-volume acceleration structure built once over the
// static scene geometry.
type accel struct {
	nodes []bvhNode
	prims []primitive

	// Shader-visible inputs for the hit stages.
	draws      []renderer.DrawCall
	vertices   []kmath.Vertex3D
	indexBytes []byte
}

const bvhLeafSize = 4

func buildAccel(vertices []kmath.Vertex3D, indexBytes []byte, indices []uint16, draws []renderer.DrawCall) *accel {
	a := &accel{
		draws:      draws,
		vertices:   vertices,
		indexBytes: indexBytes,
	}
	for di, draw := range draws {
		for prim := uint32(0); prim < draw.IndexCount/3; prim++ {
			base := draw.StartIndex + prim*3
			i0 := int32(indices[base+0]) + draw.VertexOffset
			i1 := int32(indices[base+1]) + draw.VertexOffset
			i2 := int32(indices[base+2]) + draw.VertexOffset
			p := primitive{
				v0:        vertices[i0].Position,
				v1:        vertices[i1].Position,
				v2:        vertices[i2].Position,
				drawIndex: di,
				localPrim: prim,
			}
			p.centroid = p.v0.Add(p.v1).Add(p.v2).MulScalar(1.0 / 3.0)
			a.prims = append(a.prims, p)
		}
	}
	a.buildNode(0, len(a.prims))
	return a
}

// buildNode builds the subtree over prims[start:end) by median split along
// the widest centroid axis. Returns the node index.
func (a *accel) buildNode(start, end int) int32 {
	nodeIndex := int32(len(a.nodes))
	a.nodes = append(a.nodes, bvhNode{})

	min := kmath.NewVec3(kmath.K_INFINITY, kmath.K_INFINITY, kmath.K_INFINITY)
	max := min.MulScalar(-1)
	for i := start; i < end; i++ {
		pmin, pmax := a.prims[i].bounds()
		min = vecMin(min, pmin)
		max = vecMax(max, pmax)
	}

	if end-start <= bvhLeafSize {
		a.nodes[nodeIndex] = bvhNode{
			min: min, max: max,
			start: int32(start),
			count: int32(end - start),
		}
		return nodeIndex
	}

	extent := max.Sub(min)
	axis := 0
	if extent.Y > extent.X {
		axis = 1
	}
	if extent.Z > axisComponent(extent, axis) {
		axis = 2
	}
	sort.Slice(a.prims[start:end], func(i, j int) bool {
		return axisComponent(a.prims[start+i].centroid, axis) < axisComponent(a.prims[start+j].centroid, axis)
	})

	mid := (start + end) / 2
	left := a.buildNode(start, mid)
	right := a.buildNode(mid, end)
	a.nodes[nodeIndex] = bvhNode{
		min: min, max: max,
		left:  left,
		right: right,
	}
	return nodeIndex
}

func axisComponent(v kmath.Vec3, axis int) float32 {
	switch axis {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

func vecMin(a, b kmath.Vec3) kmath.Vec3 {
	return kmath.Vec3{X: minf(a.X, b.X), Y: minf(a.Y, b.Y), Z: minf(a.Z, b.Z)}
}

func vecMax(a, b kmath.Vec3) kmath.Vec3 {
	return kmath.Vec3{X: maxf(a.X, b.X), Y: maxf(a.Y, b.Y), Z: maxf(a.Z, b.Z)}
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

// ray is a traced ray with its valid parameter interval.
type ray struct {
	origin kmath.Vec3
	dir    kmath.Vec3
	tMin   float32
	tMax   float32
}

// hitRecord describes the closest intersection found by a trace.
type hitRecord struct {
	t    float32
	u, v float32
	prim int
}

// traceFlags mirror the ray dispatch flags of the hardware pipeline.
type traceFlags uint8

const (
	// Reject triangles facing away from the ray.
	flagCullBackFaces traceFlags = 1 << iota
	// Stop at the first accepted hit; used by occlusion rays where any
	// hit is as good as the nearest.
	flagTerminateOnFirstHit
)

func (a *accel) slabTest(n *bvhNode, r ray, tBest float32) bool {
	t0, t1 := r.tMin, minf(r.tMax, tBest)
	for axis := 0; axis < 3; axis++ {
		o := axisComponent(r.origin, axis)
		d := axisComponent(r.dir, axis)
		bmin := axisComponent(n.min, axis)
		bmax := axisComponent(n.max, axis)
		if d == 0 {
			if o < bmin || o > bmax {
				return false
			}
			continue
		}
		inv := 1.0 / d
		tNear := (bmin - o) * inv
		tFar := (bmax - o) * inv
		if tNear > tFar {
			tNear, tFar = tFar, tNear
		}
		t0 = maxf(t0, tNear)
		t1 = minf(t1, tFar)
		if t0 > t1 {
			return false
		}
	}
	return true
}

// intersectTriangle is Moller-Trumbore against one primitive.
func intersectTriangle(p *primitive, r ray, cullBackFaces bool) (t, u, v float32, ok bool) {
	const epsilon = 1e-7

	edge1 := p.v1.Sub(p.v0)
	edge2 := p.v2.Sub(p.v0)
	pvec := r.dir.Cross(edge2)
	det := edge1.Dot(pvec)

	if cullBackFaces {
		if det < epsilon {
			return 0, 0, 0, false
		}
	} else if det > -epsilon && det < epsilon {
		return 0, 0, 0, false
	}

	invDet := 1.0 / det
	tvec := r.origin.Sub(p.v0)
	u = tvec.Dot(pvec) * invDet
	if u < 0 || u > 1 {
		return 0, 0, 0, false
	}
	qvec := tvec.Cross(edge1)
	v = r.dir.Dot(qvec) * invDet
	if v < 0 || u+v > 1 {
		return 0, 0, 0, false
	}
	t = edge2.Dot(qvec) * invDet
	if t < r.tMin || t > r.tMax {
		return 0, 0, 0, false
	}
	return t, u, v, true
}

// trace walks the hierarchy. With flagTerminateOnFirstHit set it returns
// the first accepted hit without refining; callers treat the result as a
// boolean occlusion answer. TMax is honored exactly: a hit at t > r.tMax
// never counts.
func (a *accel) trace(r ray, flags traceFlags) (hitRecord, bool) {
	best := hitRecord{t: r.tMax, prim: -1}
	found := false

	if len(a.prims) == 0 {
		return best, false
	}

	stack := make([]int32, 0, 64)
	stack = append(stack, 0)
	for len(stack) > 0 {
		nodeIndex := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		node := &a.nodes[nodeIndex]
		if !a.slabTest(node, r, best.t) {
			continue
		}
		if node.count > 0 {
			for i := node.start; i < node.start+node.count; i++ {
				p := &a.prims[i]
				t, u, v, ok := intersectTriangle(p, r, flags&flagCullBackFaces != 0)
				if !ok || t > best.t {
					continue
				}
				best = hitRecord{t: t, u: u, v: v, prim: int(i)}
				found = true
				if flags&flagTerminateOnFirstHit != 0 {
					return best, true
				}
			}
			continue
		}
		stack = append(stack, node.left, node.right)
	}
	return best, found
}
