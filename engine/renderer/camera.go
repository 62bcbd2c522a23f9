package renderer

import (
	"github.com/spaghettifunk/lumen/engine/math"
)

// Projection is the fixed camera projection configuration.
type Projection struct {
	FOVRadians float32
	Near       float32
	Far        float32
}

func DefaultProjection() Projection {
	return Projection{
		FOVRadians: 45.0 * math.K_DEG2RAD_MULTIPLIER,
		Near:       0.1,
		Far:        100.0,
	}
}

// Cubemap face bases, +X -X +Y -Y +Z -Z order.
var cubeFaceDirs = [6]math.Vec3{
	{X: 1}, {X: -1},
	{Y: 1}, {Y: -1},
	{Z: 1}, {Z: -1},
}

var cubeFaceUps = [6]math.Vec3{
	{Y: 1}, {Y: 1},
	{Z: -1}, {Z: 1},
	{Y: 1}, {Y: 1},
}

// CubeFaceBasis returns the view direction and up vector of a shadow
// cubemap face.
func CubeFaceBasis(face uint32) (dir, up math.Vec3) {
	return cubeFaceDirs[face], cubeFaceUps[face]
}

// CubeFaceForDirection selects the cubemap face a direction falls into:
// the major axis of the vector picks the face.
func CubeFaceForDirection(dir math.Vec3) uint32 {
	ax, ay, az := absf(dir.X), absf(dir.Y), absf(dir.Z)
	switch {
	case ax >= ay && ax >= az:
		if dir.X >= 0 {
			return 0
		}
		return 1
	case ay >= az:
		if dir.Y >= 0 {
			return 2
		}
		return 3
	default:
		if dir.Z >= 0 {
			return 4
		}
		return 5
	}
}

func absf(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}

// ComputeFrameConstants recomputes the per-frame transforms: the camera
// world-view and world-view-projection matrices from yaw/pitch/roll and the
// six shadow-space view matrices from the light position. Called once per
// frame, result captured by value into the slot's command list.
func ComputeFrameConstants(state FrameState, proj Projection, aspect float32) FrameConstants {
	rotation := math.NewMat4EulerXYZ(state.Camera.Pitch, state.Camera.Yaw, state.Camera.Roll)
	view := math.NewMat4Translation(state.Camera.Position.MulScalar(-1)).Mul(rotation)
	projection := math.NewMat4Perspective(proj.FOVRadians, aspect, proj.Near, proj.Far)

	constants := FrameConstants{
		WorldView:     view,
		WorldViewProj: view.Mul(projection),
		LightPosition: math.NewVec4FromVec3(state.LightPosition, 1.0),
		LightViewPos:  math.NewVec4FromVec3(state.LightPosition.Transform(view), 1.0),
	}
	for face := uint32(0); face < 6; face++ {
		dir, up := CubeFaceBasis(face)
		constants.ShadowViews[face] = math.NewMat4LookAt(
			state.LightPosition,
			state.LightPosition.Add(dir),
			up,
		)
	}
	return constants
}
