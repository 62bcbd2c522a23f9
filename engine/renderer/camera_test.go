package renderer

import (
	"testing"

	"github.com/spaghettifunk/lumen/engine/math"
)

func TestCubeFaceForDirection(t *testing.T) {
	tests := []struct {
		dir  math.Vec3
		face uint32
	}{
		{math.NewVec3(1, 0, 0), 0},
		{math.NewVec3(-1, 0, 0), 1},
		{math.NewVec3(0, 1, 0), 2},
		{math.NewVec3(0, -1, 0), 3},
		{math.NewVec3(0, 0, 1), 4},
		{math.NewVec3(0, 0, -1), 5},
		// The dominant axis picks the face.
		{math.NewVec3(0.5, 2, 0.3), 2},
		{math.NewVec3(-3, 2, 1), 1},
		{math.NewVec3(0.1, -0.2, -5), 5},
	}
	for _, tt := range tests {
		if got := CubeFaceForDirection(tt.dir); got != tt.face {
			t.Errorf("CubeFaceForDirection(%+v) = %d, want %d", tt.dir, got, tt.face)
		}
	}
}

func TestCubeFaceBasis(t *testing.T) {
	for face := uint32(0); face < 6; face++ {
		dir, up := CubeFaceBasis(face)
		if got := dir.Length(); math.NewVec3(got, 0, 0).Compare(math.NewVec3(1, 0, 0), 1e-6) == false {
			t.Errorf("face %d direction length = %f, want 1", face, got)
		}
		if dot := dir.Dot(up); dot != 0 {
			t.Errorf("face %d up not orthogonal to direction (dot %f)", face, dot)
		}
	}
}

func TestComputeFrameConstantsShadowViews(t *testing.T) {
	light := math.NewVec3(2, 5, -3)
	state := FrameState{LightPosition: light}
	constants := ComputeFrameConstants(state, DefaultProjection(), 1)

	for face := uint32(0); face < 6; face++ {
		view := constants.ShadowViews[face]
		dir, _ := CubeFaceBasis(face)

		// Each face view looks along its cube direction and is centered on
		// the light.
		if !view.Forward().Compare(dir, 1e-5) {
			t.Errorf("face %d forward = %+v, want %+v", face, view.Forward(), dir)
		}
		origin := light.Transform(view)
		if !origin.Compare(math.NewVec3(0, 0, 0), 1e-5) {
			t.Errorf("face %d light maps to %+v, want the origin", face, origin)
		}

		// A point one unit along the face direction lands on the -z axis
		// at unit depth.
		ahead := light.Add(dir).Transform(view)
		if !ahead.Compare(math.NewVec3(0, 0, -1), 1e-5) {
			t.Errorf("face %d forward point maps to %+v, want (0, 0, -1)", face, ahead)
		}
	}

	if constants.LightPosition != math.NewVec4FromVec3(light, 1) {
		t.Errorf("light position constant = %+v", constants.LightPosition)
	}
}

func TestComputeFrameConstantsCamera(t *testing.T) {
	state := FrameState{
		Camera: CameraState{Position: math.NewVec3(0, 0, 5)},
	}
	proj := Projection{FOVRadians: 90 * math.K_DEG2RAD_MULTIPLIER, Near: 0.1, Far: 100}
	constants := ComputeFrameConstants(state, proj, 1)

	// With no rotation the camera looks down -z: the world origin sits five
	// units ahead, centered.
	viewPos := math.NewVec3(0, 0, 0).Transform(constants.WorldView)
	if !viewPos.Compare(math.NewVec3(0, 0, -5), 1e-5) {
		t.Fatalf("origin in view space = %+v, want (0, 0, -5)", viewPos)
	}

	clip := math.NewVec4(0, 0, 0, 1).Transform(constants.WorldViewProj)
	if math.NewVec3(clip.W, 0, 0).Compare(math.NewVec3(5, 0, 0), 1e-5) == false {
		t.Errorf("clip w = %f, want 5", clip.W)
	}
	if math.NewVec3(clip.X, clip.Y, 0).Compare(math.NewVec3(0, 0, 0), 1e-5) == false {
		t.Errorf("clip xy = (%f, %f), want centered", clip.X, clip.Y)
	}
}

func TestComputeFrameConstantsLightViewPos(t *testing.T) {
	state := FrameState{
		Camera:        CameraState{Position: math.NewVec3(0, 0, 5)},
		LightPosition: math.NewVec3(0, 3, 0),
	}
	proj := Projection{FOVRadians: 90 * math.K_DEG2RAD_MULTIPLIER, Near: 0.1, Far: 100}
	constants := ComputeFrameConstants(state, proj, 1)

	// The view-space copy is the world-space light run through WorldView.
	want := state.LightPosition.Transform(constants.WorldView)
	got := math.NewVec3(constants.LightViewPos.X, constants.LightViewPos.Y, constants.LightViewPos.Z)
	if !got.Compare(want, 1e-5) {
		t.Errorf("light view pos = %+v, want %+v", got, want)
	}
	if !want.Compare(math.NewVec3(0, 3, -5), 1e-5) {
		t.Errorf("light in view space = %+v, want (0, 3, -5)", want)
	}
	if constants.LightViewPos.W != 1 {
		t.Errorf("light view pos w = %f, want 1", constants.LightViewPos.W)
	}
}
