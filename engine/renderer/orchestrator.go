package renderer

import (
	"errors"
	"fmt"
	"time"

	"github.com/spaghettifunk/lumen/engine/core"
)

// Config fixes the orchestrator's resource shape at startup.
type Config struct {
	// Ring depth: how many frames the CPU may run ahead of the GPU.
	FramesInFlight int
	// Render resolution; also the G-buffer resolution.
	Width  uint32
	Height uint32
	// Shadow cubemap face resolution.
	ShadowMapSize uint32
	// Per-wait budget before a fence wait is declared a device hang.
	FenceTimeout time.Duration
	Projection   Projection
}

func (c *Config) validate() error {
	if c.FramesInFlight < 2 {
		return fmt.Errorf("frames in flight must be >= 2, got %d", c.FramesInFlight)
	}
	if c.Width == 0 || c.Height == 0 {
		return fmt.Errorf("render resolution must be non-zero")
	}
	if c.ShadowMapSize == 0 {
		c.ShadowMapSize = 256
	}
	if c.FenceTimeout <= 0 {
		c.FenceTimeout = 5 * time.Second
	}
	return nil
}

// FrameSlot bundles everything one in-flight frame owns exclusively: the
// recording context, the presentable output image, the G-buffer channels
// and the shadow cubemap. A slot is never reused until its fence target has
// been observed reached on the GPU timeline.
type FrameSlot struct {
	Commands *CommandList
	Output   ImageID
	GBuffer  GBufferTargets
	Shadow   ImageID

	// FenceTarget is the timeline value that retires this slot's last
	// submission. Strictly increasing across reuses.
	FenceTarget uint64
}

// Orchestrator owns the frame ring and sequences Shadow -> Geometry ->
// Lighting into each slot. It runs on a single CPU timeline; none of its
// methods are safe for concurrent use.
type Orchestrator struct {
	device  Device
	surface PresentTarget
	config  Config

	materials *MaterialTable
	scene     *Scene

	shadowPass   *ShadowPass
	geometryPass *GeometryPass
	lightingPass *LightingPass

	slots      []FrameSlot
	frameIndex int

	// Highest fence value handed to the device so far.
	latestFenceValue uint64

	// Depth buffer shared by all geometry passes. Safe because pass
	// execution is serialized on the single GPU timeline.
	depth ImageID

	shuttingDown bool
}

// NewOrchestrator uploads the material table and scene, builds the frame
// ring and the passes. Scene geometry must already contain its meshes; it
// is uploaded (and frozen) here. Any failure aborts initialization before
// a frame can be rendered.
func NewOrchestrator(device Device, surface PresentTarget, config Config, materials *MaterialTable, scene *Scene) (*Orchestrator, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	o := &Orchestrator{
		device:    device,
		surface:   surface,
		config:    config,
		materials: materials,
		scene:     scene,
	}

	if err := device.UploadMaterials(materials.Snapshot()); err != nil {
		return nil, fmt.Errorf("upload material table: %w", err)
	}
	if err := scene.Upload(device, materials); err != nil {
		return nil, fmt.Errorf("upload scene: %w", err)
	}

	var err error
	if o.shadowPass, err = NewShadowPass(device); err != nil {
		return nil, err
	}
	if o.geometryPass, err = NewGeometryPass(device); err != nil {
		return nil, err
	}
	if o.lightingPass, err = NewLightingPass(device); err != nil {
		return nil, err
	}

	if err := surface.CreateOrResize(config.Width, config.Height, config.FramesInFlight); err != nil {
		return nil, fmt.Errorf("create surface: %w", err)
	}
	if err := o.createFrameResources(); err != nil {
		return nil, err
	}

	core.LogInfo("orchestrator ready: %d frames in flight, %dx%d, shadow %d",
		config.FramesInFlight, config.Width, config.Height, config.ShadowMapSize)
	return o, nil
}

func (o *Orchestrator) createFrameResources() error {
	w, h := o.config.Width, o.config.Height

	depth, err := o.device.CreateImage(w, h, 1, ImageFormatDepth32F)
	if err != nil {
		return fmt.Errorf("create depth buffer: %w", err)
	}
	o.depth = depth

	o.slots = make([]FrameSlot, o.config.FramesInFlight)
	for i := range o.slots {
		slot := &o.slots[i]
		slot.Commands = NewCommandList()
		if slot.Output, err = o.device.CreateImage(w, h, 1, ImageFormatRGBA32F); err != nil {
			return fmt.Errorf("slot %d output image: %w", i, err)
		}
		if slot.GBuffer.Ambient, err = o.device.CreateImage(w, h, 1, ImageFormatRGBA32F); err != nil {
			return fmt.Errorf("slot %d ambient gbuffer: %w", i, err)
		}
		if slot.GBuffer.Position, err = o.device.CreateImage(w, h, 1, ImageFormatRGBA32F); err != nil {
			return fmt.Errorf("slot %d position gbuffer: %w", i, err)
		}
		if slot.GBuffer.Diffuse, err = o.device.CreateImage(w, h, 1, ImageFormatRGBA32F); err != nil {
			return fmt.Errorf("slot %d diffuse gbuffer: %w", i, err)
		}
		if slot.GBuffer.Normal, err = o.device.CreateImage(w, h, 1, ImageFormatRGBA32F); err != nil {
			return fmt.Errorf("slot %d normal gbuffer: %w", i, err)
		}
		if slot.Shadow, err = o.device.CreateImage(o.config.ShadowMapSize, o.config.ShadowMapSize, 6, ImageFormatRGBA32F); err != nil {
			return fmt.Errorf("slot %d shadow cubemap: %w", i, err)
		}
	}
	return nil
}

func (o *Orchestrator) destroyFrameResources() {
	for i := range o.slots {
		slot := &o.slots[i]
		o.device.DestroyImage(slot.Output)
		o.device.DestroyImage(slot.GBuffer.Ambient)
		o.device.DestroyImage(slot.GBuffer.Position)
		o.device.DestroyImage(slot.GBuffer.Diffuse)
		o.device.DestroyImage(slot.GBuffer.Normal)
		o.device.DestroyImage(slot.Shadow)
	}
	o.device.DestroyImage(o.depth)
	o.slots = nil
}

// AdvanceFrame selects the next ring slot and blocks until the slot's
// previous GPU work has retired. This is the only routine wait in the
// pipeline; a timeout here means the device hung and is fatal.
func (o *Orchestrator) AdvanceFrame() (*FrameSlot, error) {
	if o.shuttingDown {
		return nil, core.ErrShuttingDown
	}
	slot := &o.slots[o.frameIndex]

	if err := o.device.FenceWait(slot.FenceTarget, o.config.FenceTimeout); err != nil {
		return nil, fmt.Errorf("advance frame: slot %d fence %d: %w", o.frameIndex, slot.FenceTarget, err)
	}

	slot.Commands.Reset()
	if err := slot.Commands.Begin(); err != nil {
		return nil, err
	}
	return slot, nil
}

// RecordFrame records the three passes in program order. Lighting
// data-depends on the other two, so the order inside one command list is
// never relaxed.
func (o *Orchestrator) RecordFrame(slot *FrameSlot, state FrameState) error {
	aspect := float32(o.config.Width) / float32(o.config.Height)
	constants := ComputeFrameConstants(state, o.config.Projection, aspect)
	if err := slot.Commands.SetFrameConstants(constants); err != nil {
		return err
	}

	if err := o.shadowPass.Record(slot.Commands, slot, o.scene); err != nil {
		return fmt.Errorf("record shadow pass: %w", err)
	}
	if err := o.geometryPass.Record(slot.Commands, slot, o.depth, o.scene, o.materials); err != nil {
		return fmt.Errorf("record geometry pass: %w", err)
	}
	if err := o.lightingPass.Record(slot.Commands, slot); err != nil {
		return fmt.Errorf("record lighting pass: %w", err)
	}
	return nil
}

// SubmitFrame closes the slot's command list and enqueues it with a fresh
// fence target, strictly greater than every value assigned before.
func (o *Orchestrator) SubmitFrame(slot *FrameSlot) error {
	if err := slot.Commands.End(); err != nil {
		return err
	}

	fenceValue := o.latestFenceValue + 1
	if err := o.device.Submit(slot.Commands, fenceValue); err != nil {
		return fmt.Errorf("submit frame: %w", err)
	}
	o.latestFenceValue = fenceValue
	slot.FenceTarget = fenceValue
	slot.Commands.UpdateSubmitted()
	return nil
}

// PresentFrame hands the slot's output image to the surface and moves to
// the next ring slot. A lost surface observed from an earlier present drains
// the pipeline and rebuilds the surface-backed resources; the current frame
// is dropped rather than presented, since its images no longer exist.
func (o *Orchestrator) PresentFrame(slot *FrameSlot) error {
	if err := o.device.PresentError(); err != nil {
		if !errors.Is(err, core.ErrSurfaceLost) {
			return fmt.Errorf("present frame: %w", err)
		}
		core.LogWarn("surface lost, rebuilding: %v", err)
		// The rebuild drain retires every present enqueued so far, so no
		// pending operation can reference the images destroyed here.
		return o.rebuildSurface(o.config.Width, o.config.Height)
	}

	if err := o.device.Present(slot.Output); err != nil {
		return fmt.Errorf("present frame: %w", err)
	}
	o.frameIndex = (o.frameIndex + 1) % o.config.FramesInFlight
	return nil
}

// RenderFrame runs one full orchestrator step.
func (o *Orchestrator) RenderFrame(state FrameState) error {
	slot, err := o.AdvanceFrame()
	if err != nil {
		return err
	}
	if err := o.RecordFrame(slot, state); err != nil {
		return err
	}
	if err := o.SubmitFrame(slot); err != nil {
		return err
	}
	return o.PresentFrame(slot)
}

// Resize rebuilds the surface-backed resources for new dimensions. All
// in-flight frames are flushed first; no slot may keep rendering into
// images sized for the old surface.
func (o *Orchestrator) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		core.LogDebug("resize to zero dimension ignored (minimized)")
		return nil
	}
	return o.rebuildSurface(width, height)
}

func (o *Orchestrator) rebuildSurface(width, height uint32) error {
	if err := o.Drain(); err != nil {
		return fmt.Errorf("drain before surface rebuild: %w", err)
	}
	o.destroyFrameResources()

	o.config.Width = width
	o.config.Height = height
	if err := o.surface.CreateOrResize(width, height, o.config.FramesInFlight); err != nil {
		return fmt.Errorf("rebuild surface: %w", err)
	}
	if err := o.createFrameResources(); err != nil {
		return err
	}
	o.frameIndex = 0
	core.LogInfo("surface rebuilt at %dx%d", width, height)
	return nil
}

// Drain blocks until the GPU timeline reaches the highest outstanding fence
// value across all slots.
func (o *Orchestrator) Drain() error {
	return o.device.FenceWait(o.latestFenceValue, o.config.FenceTimeout)
}

// ReapplyMaterials swaps the material table contents, draining the timeline
// first so no in-flight frame can observe the swap. Draw calls already
// recorded against the scene must stay in range of the new table.
func (o *Orchestrator) ReapplyMaterials(materials []Material) error {
	for _, draw := range o.scene.DrawCalls() {
		if draw.MaterialIndex >= uint32(len(materials)) {
			return fmt.Errorf("draw call references material %d: %w", draw.MaterialIndex, ErrMaterialIndexOutOfRange)
		}
	}
	if err := o.Drain(); err != nil {
		return fmt.Errorf("drain before material reupload: %w", err)
	}
	if err := o.materials.Replace(materials); err != nil {
		return err
	}
	if err := o.device.UploadMaterials(o.materials.Snapshot()); err != nil {
		return fmt.Errorf("reupload material table: %w", err)
	}
	core.LogInfo("material table replaced: %d entries", len(materials))
	return nil
}

// Cleanup waits for the GPU timeline to reach the highest outstanding fence
// value before releasing anything. No resource is freed while a fence that
// references it is outstanding, including on the error path.
func (o *Orchestrator) Cleanup() error {
	o.shuttingDown = true
	if err := o.device.FenceWait(o.latestFenceValue, o.config.FenceTimeout); err != nil {
		// Do not release resources on a failed drain; leaking is the
		// lesser bug when the device state is unknown.
		return fmt.Errorf("shutdown drain: %w", err)
	}
	o.destroyFrameResources()
	core.LogInfo("orchestrator cleaned up at fence %d", o.latestFenceValue)
	return nil
}

// LatestFenceValue reports the highest fence value assigned so far.
func (o *Orchestrator) LatestFenceValue() uint64 {
	return o.latestFenceValue
}

// FrameIndex reports the ring slot the next AdvanceFrame will use.
func (o *Orchestrator) FrameIndex() int {
	return o.frameIndex
}

// Slots exposes the ring for inspection.
func (o *Orchestrator) Slots() []FrameSlot {
	return o.slots
}
