package renderer_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/spaghettifunk/lumen/engine/core"
	kmath "github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/soft"
)

// testScene is a floor quad at y=0 facing up and a blocker quad at y=2
// facing down, lit from a point above the blocker. Two materials, one per
// mesh.
func testScene(t *testing.T) (*renderer.Scene, *renderer.MaterialTable) {
	t.Helper()

	materials := renderer.NewMaterialTable()
	for _, m := range []renderer.Material{
		{AmbientColor: kmath.NewVec4(0.8, 0.4, 0.2, 1), DiffuseColor: kmath.NewVec4(0.1, 0.5, 0.9, 1)},
		{AmbientColor: kmath.NewVec4(0.2, 0.2, 0.2, 1), DiffuseColor: kmath.NewVec4(0.6, 0.6, 0.6, 1)},
	} {
		if _, err := materials.Add(m); err != nil {
			t.Fatal(err)
		}
	}

	up := kmath.NewVec3(0, 1, 0)
	down := kmath.NewVec3(0, -1, 0)
	scene := renderer.NewScene()
	err := scene.AddMesh([]kmath.Vertex3D{
		{Position: kmath.NewVec3(-4, 0, -4), Normal: up},
		{Position: kmath.NewVec3(4, 0, 4), Normal: up},
		{Position: kmath.NewVec3(4, 0, -4), Normal: up},
		{Position: kmath.NewVec3(-4, 0, 4), Normal: up},
	}, []uint16{0, 1, 2, 0, 3, 1}, 0)
	if err != nil {
		t.Fatal(err)
	}
	err = scene.AddMesh([]kmath.Vertex3D{
		{Position: kmath.NewVec3(-1, 2, -1), Normal: down},
		{Position: kmath.NewVec3(1, 2, -1), Normal: down},
		{Position: kmath.NewVec3(1, 2, 1), Normal: down},
		{Position: kmath.NewVec3(-1, 2, 1), Normal: down},
	}, []uint16{0, 1, 2, 0, 2, 3}, 1)
	if err != nil {
		t.Fatal(err)
	}
	return scene, materials
}

func testState() renderer.FrameState {
	return renderer.FrameState{
		Camera:        renderer.CameraState{Position: kmath.NewVec3(0, 4, 10)},
		LightPosition: kmath.NewVec3(0, 5, 0),
	}
}

func newTestOrchestrator(t *testing.T, dev renderer.Device, surface renderer.PresentTarget, frames int, timeout time.Duration) (*renderer.Orchestrator, *renderer.MaterialTable) {
	t.Helper()
	scene, materials := testScene(t)
	o, err := renderer.NewOrchestrator(dev, surface, renderer.Config{
		FramesInFlight: frames,
		Width:          32,
		Height:         32,
		ShadowMapSize:  8,
		FenceTimeout:   timeout,
		Projection:     renderer.DefaultProjection(),
	}, materials, scene)
	if err != nil {
		t.Fatal(err)
	}
	return o, materials
}

func TestFrameRingReuse(t *testing.T) {
	for _, frames := range []int{2, 3, 4} {
		t.Run(fmt.Sprintf("frames=%d", frames), func(t *testing.T) {
			dev := soft.NewDevice(soft.WithManualTimeline())
			t.Cleanup(func() { dev.Shutdown() })
			o, _ := newTestOrchestrator(t, dev, soft.NewSurface(), frames, 50*time.Millisecond)

			// The CPU may run the full ring depth ahead without any work
			// retiring.
			state := testState()
			for i := 0; i < frames; i++ {
				if err := o.RenderFrame(state); err != nil {
					t.Fatalf("frame %d: %v", i, err)
				}
			}
			if got := o.LatestFenceValue(); got != uint64(frames) {
				t.Fatalf("latest fence = %d, want %d", got, frames)
			}
			for i, slot := range o.Slots() {
				if slot.FenceTarget != uint64(i+1) {
					t.Fatalf("slot %d fence target = %d, want %d", i, slot.FenceTarget, i+1)
				}
			}

			// One frame past the ring depth blocks on the oldest slot.
			if _, err := o.AdvanceFrame(); !errors.Is(err, core.ErrFenceTimeout) {
				t.Fatalf("advance past ring depth = %v, want ErrFenceTimeout", err)
			}

			// Retiring that slot's submission unblocks reuse.
			dev.Step()
			slot, err := o.AdvanceFrame()
			if err != nil {
				t.Fatalf("advance after retirement: %v", err)
			}
			if err := o.RecordFrame(slot, state); err != nil {
				t.Fatal(err)
			}
			if err := o.SubmitFrame(slot); err != nil {
				t.Fatal(err)
			}
			if slot.FenceTarget != uint64(frames+1) {
				t.Fatalf("reused slot fence target = %d, want %d", slot.FenceTarget, frames+1)
			}
		})
	}
}

func TestRenderIdempotence(t *testing.T) {
	dev := soft.NewDevice()
	defer dev.Shutdown()
	o, _ := newTestOrchestrator(t, dev, soft.NewSurface(), 2, time.Second)

	state := testState()
	for i := 0; i < 4; i++ {
		if err := o.RenderFrame(state); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}
	if err := o.Drain(); err != nil {
		t.Fatal(err)
	}

	// Identical input across slots must yield bit-identical output: slot
	// reuse leaks no frame-to-frame state.
	slots := o.Slots()
	_, _, first, err := dev.ReadImage(slots[0].Output)
	if err != nil {
		t.Fatal(err)
	}
	_, _, second, err := dev.ReadImage(slots[1].Output)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != len(second) {
		t.Fatalf("output sizes differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("outputs diverge at float %d: %v vs %v", i, first[i], second[i])
		}
	}

	// And the output is an actual render, not a cleared image.
	lit := false
	for i := 0; i < len(first); i += 4 {
		if first[i] != 0 || first[i+1] != 0 || first[i+2] != 0 {
			lit = true
			break
		}
	}
	if !lit {
		t.Error("rendered output is entirely black")
	}
}

func TestCleanupDrainsInFlightFrames(t *testing.T) {
	dev := soft.NewDevice(soft.WithManualTimeline())
	defer dev.Shutdown()
	o, _ := newTestOrchestrator(t, dev, soft.NewSurface(), 3, 5*time.Second)

	state := testState()
	for i := 0; i < 3; i++ {
		if err := o.RenderFrame(state); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}
	if got := dev.FenceCompleted(); got != 0 {
		t.Fatalf("fence completed = %d before the clock advanced, want 0", got)
	}

	// Advance the device clock asynchronously; Cleanup must block until
	// every in-flight fence target is reached.
	go func() {
		for {
			time.Sleep(2 * time.Millisecond)
			if !dev.Step() {
				return
			}
		}
	}()

	if err := o.Cleanup(); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if got := dev.FenceCompleted(); got < 3 {
		t.Errorf("fence completed = %d after cleanup, want >= 3", got)
	}
	if _, err := o.AdvanceFrame(); !errors.Is(err, core.ErrShuttingDown) {
		t.Errorf("advance after cleanup = %v, want ErrShuttingDown", err)
	}
}

func TestSurfaceLostRebuild(t *testing.T) {
	surface := soft.NewSurface()
	dev := soft.NewDevice(soft.WithPresentTarget(surface))
	defer dev.Shutdown()
	o, _ := newTestOrchestrator(t, dev, surface, 2, time.Second)

	state := testState()

	// The first present fails; the loss surfaces on a later frame, which
	// rebuilds instead of presenting and then resumes normally.
	surface.FailNextPresent(core.ErrSurfaceLost)
	for i := 0; i < 2; i++ {
		if err := o.RenderFrame(state); err != nil {
			t.Fatal(err)
		}
	}
	// Presents retire in submission order, so once the second frame shows
	// up on the surface the first one has already failed and latched.
	deadline := time.Now().Add(5 * time.Second)
	for surface.Presented() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("present never reached the surface")
		}
		time.Sleep(time.Millisecond)
	}

	for i := 0; i < 3; i++ {
		if err := o.RenderFrame(state); err != nil {
			t.Fatalf("frame after surface loss: %v", err)
		}
	}
	if err := dev.Shutdown(); err != nil {
		t.Fatal(err)
	}

	// Five frames total: one failed present, one dropped during the
	// rebuild, three on screen.
	if got := surface.Presented(); got != 3 {
		t.Errorf("presented frames = %d, want 3", got)
	}
	w, h, _ := surface.LastFrame()
	if w != 32 || h != 32 {
		t.Errorf("last presented frame = %dx%d, want 32x32", w, h)
	}
}

func TestResizeRebuildsFrameResources(t *testing.T) {
	dev := soft.NewDevice()
	defer dev.Shutdown()
	o, _ := newTestOrchestrator(t, dev, soft.NewSurface(), 2, time.Second)

	state := testState()
	for i := 0; i < 2; i++ {
		if err := o.RenderFrame(state); err != nil {
			t.Fatal(err)
		}
	}

	if err := o.Resize(64, 48); err != nil {
		t.Fatal(err)
	}
	if got := o.FrameIndex(); got != 0 {
		t.Errorf("frame index after resize = %d, want 0", got)
	}
	if err := o.RenderFrame(state); err != nil {
		t.Fatalf("frame after resize: %v", err)
	}
	if err := o.Drain(); err != nil {
		t.Fatal(err)
	}
	w, h, _, err := dev.ReadImage(o.Slots()[0].Output)
	if err != nil {
		t.Fatal(err)
	}
	if w != 64 || h != 48 {
		t.Errorf("output after resize = %dx%d, want 64x48", w, h)
	}

	// A zero dimension is a minimize, not a resize.
	if err := o.Resize(0, 48); err != nil {
		t.Fatal(err)
	}
	w, h, _, err = dev.ReadImage(o.Slots()[0].Output)
	if err != nil {
		t.Fatal(err)
	}
	if w != 64 || h != 48 {
		t.Errorf("output after minimize = %dx%d, want unchanged 64x48", w, h)
	}
}

func TestReapplyMaterials(t *testing.T) {
	dev := soft.NewDevice()
	defer dev.Shutdown()
	o, materials := newTestOrchestrator(t, dev, soft.NewSurface(), 2, time.Second)

	state := testState()
	if err := o.RenderFrame(state); err != nil {
		t.Fatal(err)
	}

	// The scene references material 1, so a one-entry table is rejected
	// before anything is drained or uploaded.
	err := o.ReapplyMaterials([]renderer.Material{{}})
	if !errors.Is(err, renderer.ErrMaterialIndexOutOfRange) {
		t.Fatalf("reapply with a short table = %v, want ErrMaterialIndexOutOfRange", err)
	}

	replacement := []renderer.Material{
		{AmbientColor: kmath.NewVec4(0, 0, 1, 1), DiffuseColor: kmath.NewVec4(1, 1, 1, 1)},
		{AmbientColor: kmath.NewVec4(1, 1, 0, 1), DiffuseColor: kmath.NewVec4(0, 0, 0, 1)},
	}
	if err := o.ReapplyMaterials(replacement); err != nil {
		t.Fatal(err)
	}
	got, err := materials.Get(0)
	if err != nil {
		t.Fatal(err)
	}
	if got != replacement[0] {
		t.Errorf("material 0 after reapply = %+v, want %+v", got, replacement[0])
	}
	if err := o.RenderFrame(state); err != nil {
		t.Fatalf("frame after reapply: %v", err)
	}
}

func TestOrchestratorRejectsInvalidSetup(t *testing.T) {
	dev := soft.NewDevice()
	defer dev.Shutdown()

	// Ring depth below two defeats CPU/GPU overlap entirely.
	scene, materials := testScene(t)
	_, err := renderer.NewOrchestrator(dev, soft.NewSurface(), renderer.Config{
		FramesInFlight: 1,
		Width:          32,
		Height:         32,
	}, materials, scene)
	if err == nil {
		t.Error("single frame in flight accepted")
	}

	// A draw call referencing one past the table's size is rejected at
	// upload, before any frame is recorded.
	short := renderer.NewMaterialTable()
	if _, err := short.Add(renderer.Material{}); err != nil {
		t.Fatal(err)
	}
	badScene := renderer.NewScene()
	if err := badScene.AddMesh([]kmath.Vertex3D{
		{Position: kmath.NewVec3(0, 0, 0)},
		{Position: kmath.NewVec3(1, 0, 0)},
		{Position: kmath.NewVec3(0, 1, 0)},
	}, []uint16{0, 1, 2}, 1); err != nil {
		t.Fatal(err)
	}
	_, err = renderer.NewOrchestrator(dev, soft.NewSurface(), renderer.Config{
		FramesInFlight: 2,
		Width:          32,
		Height:         32,
	}, short, badScene)
	if !errors.Is(err, renderer.ErrMaterialIndexOutOfRange) {
		t.Errorf("out-of-range material reference = %v, want ErrMaterialIndexOutOfRange", err)
	}
}
