package engine

import (
	"github.com/spaghettifunk/lumen/engine/renderer"
)

type Game struct {
	ApplicationConfig *Config
	State             interface{}
	FnSetupScene      SetupScene
	FnInitialize      Initialize
	FnUpdate          Update
	FnOnResize        OnResize
}

// SetupScene populates the static geometry and the material table before
// anything is uploaded; both freeze once the orchestrator starts.
type SetupScene func(scene *renderer.Scene, materials *renderer.MaterialTable) error
type Initialize func() error

// Update mutates the per-frame state (camera, light) before it is captured
// into the next frame's command list.
type Update func(state *renderer.FrameState, deltaTime float64) error
type OnResize func(width uint32, height uint32) error
