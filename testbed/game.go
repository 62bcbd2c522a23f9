package testbed

import (
	gomath "math"

	"github.com/spaghettifunk/lumen/engine"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	elapsed float64

	lightHome math.Vec3

	width  uint32
	height uint32
}

func NewTestGame(config *engine.Config) (*TestGame, error) {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: config,
			State: &gameState{
				lightHome: config.LightPosition(),
			},
		},
	}

	tg.FnSetupScene = tg.SetupScene
	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnOnResize = tg.OnResize

	return tg, nil
}

// SetupScene builds a small closed room with two pillars and a floor slab,
// enough geometry for the pillars to cast visible ray-traced shadows.
func (g *TestGame) SetupScene(scene *renderer.Scene, materials *renderer.MaterialTable) error {
	count := uint32(materials.Count())
	wallMat := uint32(0)
	floorMat := uint32(0)
	pillarMat := uint32(0)
	if count > 1 {
		floorMat = 1 % count
	}
	if count > 2 {
		pillarMat = 2 % count
	}

	// Room interior, 20 units across. Normals point inward.
	roomVerts, roomIdx := boxMesh(math.NewVec3(0, 5, 0), math.NewVec3(20, 10, 20), true)
	if err := scene.AddMesh(roomVerts, roomIdx, wallMat); err != nil {
		return err
	}

	floorVerts, floorIdx := boxMesh(math.NewVec3(0, -0.25, 0), math.NewVec3(18, 0.5, 18), false)
	if err := scene.AddMesh(floorVerts, floorIdx, floorMat); err != nil {
		return err
	}

	for _, x := range []float32{-4, 4} {
		pillarVerts, pillarIdx := boxMesh(math.NewVec3(x, 2.5, 0), math.NewVec3(1.5, 5, 1.5), false)
		if err := scene.AddMesh(pillarVerts, pillarIdx, pillarMat); err != nil {
			return err
		}
	}

	core.LogInfo("testbed scene: %d vertices, %d draw calls",
		len(scene.Vertices), len(scene.DrawCalls()))
	return nil
}

func (g *TestGame) Initialize() error {
	core.LogInfo("testbed initialized")
	return nil
}

// Update orbits the camera slowly around the room center and bobs the
// light, so successive frames exercise fresh shadow and view transforms.
func (g *TestGame) Update(state *renderer.FrameState, deltaTime float64) error {
	gs := g.State.(*gameState)
	gs.elapsed += deltaTime

	angle := gs.elapsed * 0.3
	state.Camera.Position = math.NewVec3(
		float32(gomath.Sin(angle))*9.0,
		4.0,
		float32(gomath.Cos(angle))*9.0,
	)
	state.Camera.Yaw = float32(angle)
	state.Camera.Pitch = 0.25

	state.LightPosition = gs.lightHome.Add(math.NewVec3(
		0,
		float32(gomath.Sin(gs.elapsed))*0.5,
		0,
	))
	return nil
}

func (g *TestGame) OnResize(width, height uint32) error {
	gs := g.State.(*gameState)
	gs.width = width
	gs.height = height
	return nil
}

// boxMesh emits an axis-aligned box as 12 triangles. With inward set, the
// winding flips and the normals face the box interior (used for the room
// shell the camera sits inside).
func boxMesh(center, size math.Vec3, inward bool) ([]math.Vertex3D, []uint16) {
	hx, hy, hz := size.X/2, size.Y/2, size.Z/2

	type face struct {
		normal math.Vec3
		corner [4]math.Vec3
	}
	faces := []face{
		{math.NewVec3(0, 0, 1), [4]math.Vec3{
			{X: -hx, Y: -hy, Z: hz}, {X: hx, Y: -hy, Z: hz}, {X: hx, Y: hy, Z: hz}, {X: -hx, Y: hy, Z: hz}}},
		{math.NewVec3(0, 0, -1), [4]math.Vec3{
			{X: hx, Y: -hy, Z: -hz}, {X: -hx, Y: -hy, Z: -hz}, {X: -hx, Y: hy, Z: -hz}, {X: hx, Y: hy, Z: -hz}}},
		{math.NewVec3(1, 0, 0), [4]math.Vec3{
			{X: hx, Y: -hy, Z: hz}, {X: hx, Y: -hy, Z: -hz}, {X: hx, Y: hy, Z: -hz}, {X: hx, Y: hy, Z: hz}}},
		{math.NewVec3(-1, 0, 0), [4]math.Vec3{
			{X: -hx, Y: -hy, Z: -hz}, {X: -hx, Y: -hy, Z: hz}, {X: -hx, Y: hy, Z: hz}, {X: -hx, Y: hy, Z: -hz}}},
		{math.NewVec3(0, 1, 0), [4]math.Vec3{
			{X: -hx, Y: hy, Z: hz}, {X: hx, Y: hy, Z: hz}, {X: hx, Y: hy, Z: -hz}, {X: -hx, Y: hy, Z: -hz}}},
		{math.NewVec3(0, -1, 0), [4]math.Vec3{
			{X: -hx, Y: -hy, Z: -hz}, {X: hx, Y: -hy, Z: -hz}, {X: hx, Y: -hy, Z: hz}, {X: -hx, Y: -hy, Z: hz}}},
	}

	var vertices []math.Vertex3D
	var indices []uint16
	for _, f := range faces {
		normal := f.normal
		if inward {
			normal = normal.MulScalar(-1)
		}
		base := uint16(len(vertices))
		for _, c := range f.corner {
			vertices = append(vertices, math.Vertex3D{
				Position: center.Add(c),
				Normal:   normal,
			})
		}
		if inward {
			indices = append(indices, base, base+2, base+1, base, base+3, base+2)
		} else {
			indices = append(indices, base, base+1, base+2, base, base+2, base+3)
		}
	}
	return vertices, indices
}
