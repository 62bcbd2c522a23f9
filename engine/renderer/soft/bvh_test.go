package soft

import (
	"testing"

	kmath "github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
)

func accelFromTriangles(positions []kmath.Vec3, draws []renderer.DrawCall) *accel {
	vertices := make([]kmath.Vertex3D, len(positions))
	indices := make([]uint16, len(positions))
	for i, p := range positions {
		vertices[i] = kmath.Vertex3D{Position: p}
		indices[i] = uint16(i)
	}
	return buildAccel(vertices, renderer.EncodeIndices(indices), indices, draws)
}

func TestTraceClosestHit(t *testing.T) {
	a := accelFromTriangles([]kmath.Vec3{
		kmath.NewVec3(-1, -1, 0),
		kmath.NewVec3(1, -1, 0),
		kmath.NewVec3(0, 1, 0),
	}, []renderer.DrawCall{{IndexCount: 3}})

	r := ray{
		origin: kmath.NewVec3(0, 0, 5),
		dir:    kmath.NewVec3(0, 0, -1),
		tMax:   kmath.K_INFINITY,
	}
	hit, found := a.trace(r, 0)
	if !found {
		t.Fatal("expected a hit")
	}
	if kmath.NewVec3(hit.t, hit.u, hit.v).Compare(kmath.NewVec3(5, 0.25, 0.5), 1e-5) == false {
		t.Errorf("hit t/u/v = %f/%f/%f, want 5/0.25/0.5", hit.t, hit.u, hit.v)
	}
}

func TestTraceBackfaceCulling(t *testing.T) {
	a := accelFromTriangles([]kmath.Vec3{
		kmath.NewVec3(-1, -1, 0),
		kmath.NewVec3(1, -1, 0),
		kmath.NewVec3(0, 1, 0),
	}, []renderer.DrawCall{{IndexCount: 3}})

	// Approaching from behind: culled with the flag, hit without.
	r := ray{
		origin: kmath.NewVec3(0, 0, -5),
		dir:    kmath.NewVec3(0, 0, 1),
		tMax:   kmath.K_INFINITY,
	}
	if _, found := a.trace(r, flagCullBackFaces); found {
		t.Error("back face accepted with culling enabled")
	}
	if _, found := a.trace(r, 0); !found {
		t.Error("back face rejected with culling disabled")
	}
}

func TestTraceHonorsTMax(t *testing.T) {
	a := accelFromTriangles([]kmath.Vec3{
		kmath.NewVec3(-1, -1, 0),
		kmath.NewVec3(1, -1, 0),
		kmath.NewVec3(0, 1, 0),
	}, []renderer.DrawCall{{IndexCount: 3}})

	r := ray{origin: kmath.NewVec3(0, 0, 5), dir: kmath.NewVec3(0, 0, -1), tMax: 4.9}
	if _, found := a.trace(r, 0); found {
		t.Error("hit reported past tMax")
	}
	if _, found := a.trace(r, flagTerminateOnFirstHit); found {
		t.Error("first-hit trace reported a hit past tMax")
	}
	r.tMax = 5.1
	if _, found := a.trace(r, 0); !found {
		t.Error("hit inside tMax missed")
	}
}

func TestTraceNearestOfTwo(t *testing.T) {
	// Two parallel triangles; the ray passes through both.
	a := accelFromTriangles([]kmath.Vec3{
		kmath.NewVec3(-2, -2, 0), kmath.NewVec3(2, -2, 0), kmath.NewVec3(0, 2, 0),
		kmath.NewVec3(-2, -2, 2), kmath.NewVec3(2, -2, 2), kmath.NewVec3(0, 2, 2),
	}, []renderer.DrawCall{{IndexCount: 6}})

	r := ray{origin: kmath.NewVec3(0, 0, 5), dir: kmath.NewVec3(0, 0, -1), tMax: kmath.K_INFINITY}
	hit, found := a.trace(r, 0)
	if !found {
		t.Fatal("expected a hit")
	}
	if kmath.NewVec3(hit.t, 0, 0).Compare(kmath.NewVec3(3, 0, 0), 1e-5) == false {
		t.Errorf("closest hit t = %f, want 3 (the nearer triangle)", hit.t)
	}

	if _, found := a.trace(r, flagTerminateOnFirstHit); !found {
		t.Error("first-hit trace found nothing")
	}
}

func TestTracePrimitiveIdentity(t *testing.T) {
	// Two draws sharing local index space, separated by a vertex offset.
	vertices := []kmath.Vertex3D{
		{Position: kmath.NewVec3(-1, -1, 0)},
		{Position: kmath.NewVec3(1, -1, 0)},
		{Position: kmath.NewVec3(0, 1, 0)},
		{Position: kmath.NewVec3(9, -1, 0)},
		{Position: kmath.NewVec3(11, -1, 0)},
		{Position: kmath.NewVec3(10, 1, 0)},
	}
	indices := []uint16{0, 1, 2, 0, 1, 2}
	draws := []renderer.DrawCall{
		{IndexCount: 3, StartIndex: 0, VertexOffset: 0, MaterialIndex: 0},
		{IndexCount: 3, StartIndex: 3, VertexOffset: 3, MaterialIndex: 1},
	}
	a := buildAccel(vertices, renderer.EncodeIndices(indices), indices, draws)

	r := ray{origin: kmath.NewVec3(10, 0, 5), dir: kmath.NewVec3(0, 0, -1), tMax: kmath.K_INFINITY}
	hit, found := a.trace(r, 0)
	if !found {
		t.Fatal("expected a hit on the offset draw")
	}
	p := a.prims[hit.prim]
	if p.drawIndex != 1 || p.localPrim != 0 {
		t.Errorf("hit primitive draw/local = %d/%d, want 1/0", p.drawIndex, p.localPrim)
	}
}

func TestTraceEmptyScene(t *testing.T) {
	a := buildAccel(nil, nil, nil, nil)
	r := ray{origin: kmath.NewVec3(0, 0, 5), dir: kmath.NewVec3(0, 0, -1), tMax: kmath.K_INFINITY}
	if _, found := a.trace(r, 0); found {
		t.Error("hit reported against empty geometry")
	}
}
