// Package soft is the reference software device: a CPU rasterizer, a
// bounding-volume ray tracer and a simulated GPU timeline behind the
// renderer.Device contract. It renders the same three-pass pipeline the
// hardware path does, which is what makes the orchestrator's fence and
// occlusion behavior testable without a GPU.
package soft

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer"
)

const defaultQueueDepth = 16

type Option func(*Device)

// WithManualTimeline disables the timeline goroutine; submitted work only
// executes when the caller advances the clock with Step. Used by tests to
// hold fences unreached on purpose.
func WithManualTimeline() Option {
	return func(d *Device) { d.manual = true }
}

// WithPresentTarget routes retired output images to a surface. Without one,
// presents complete without side effects.
func WithPresentTarget(t renderer.PresentTarget) Option {
	return func(d *Device) { d.target = t }
}

func WithQueueDepth(n int) Option {
	return func(d *Device) { d.queueDepth = n }
}

// Device implements renderer.Device in software.
type Device struct {
	images    map[renderer.ImageID]*Image
	buffers   map[renderer.BufferID][]byte
	accels    map[renderer.AccelID]*accel
	pipelines map[renderer.PipelineID]renderer.PipelineKind
	materials []renderer.Material

	target renderer.PresentTarget

	// presentErr is written by the timeline goroutine and consumed by the
	// CPU thread polling PresentError, so it needs its own lock.
	presentMu  sync.Mutex
	presentErr error

	tl         *timeline
	manual     bool
	queueDepth int
}

func NewDevice(options ...Option) *Device {
	d := &Device{
		images:     make(map[renderer.ImageID]*Image),
		buffers:    make(map[renderer.BufferID][]byte),
		accels:     make(map[renderer.AccelID]*accel),
		pipelines:  make(map[renderer.PipelineID]renderer.PipelineKind),
		queueDepth: defaultQueueDepth,
	}
	for _, opt := range options {
		opt(d)
	}
	d.tl = newTimeline(d.queueDepth, d.manual, d.executeOp)
	core.LogDebug("soft device created (manual=%v, queue depth=%d)", d.manual, d.queueDepth)
	return d
}

// Step advances the manual timeline by one submission. Reports whether any
// work was pending.
func (d *Device) Step() bool {
	return d.tl.step()
}

func (d *Device) executeOp(o op) error {
	if len(o.commands) > 0 {
		if err := d.executeCommands(o.commands); err != nil {
			return err
		}
	}
	if o.hasPresent {
		d.executePresent(o.present)
	}
	return nil
}

// executePresent hands the retired image to the surface. Presentation
// failures are sticky surface-lost conditions, not device faults: the
// timeline keeps running and the orchestrator rebuilds on observation.
func (d *Device) executePresent(id renderer.ImageID) {
	if d.target == nil {
		return
	}
	img, ok := d.image(id)
	if !ok {
		d.recordPresentError(fmt.Errorf("present of unknown image %v: %w", id, core.ErrSurfaceLost))
		return
	}
	pix := make([]float32, len(img.Pix))
	copy(pix, img.Pix)
	if err := d.target.PresentPixels(img.Width, img.Height, pix); err != nil {
		d.recordPresentError(err)
	}
}

// recordPresentError latches the first presentation failure; later failures
// are dropped until the sticky error has been consumed.
func (d *Device) recordPresentError(err error) {
	d.presentMu.Lock()
	if d.presentErr == nil {
		d.presentErr = err
	}
	d.presentMu.Unlock()
}

func (d *Device) CreateImage(width, height, layers uint32, format renderer.ImageFormat) (renderer.ImageID, error) {
	if width == 0 || height == 0 || layers == 0 {
		return renderer.NilImage, fmt.Errorf("image with zero extent %dx%dx%d", width, height, layers)
	}
	id := renderer.ImageID(uuid.New())
	d.images[id] = newImage(width, height, layers, format)
	return id, nil
}

func (d *Device) DestroyImage(id renderer.ImageID) {
	delete(d.images, id)
}

func (d *Device) CreateBuffer(size uint64) (renderer.BufferID, error) {
	if size == 0 {
		return renderer.NilBuffer, fmt.Errorf("buffer with zero size")
	}
	id := renderer.BufferID(uuid.New())
	d.buffers[id] = make([]byte, size)
	return id, nil
}

func (d *Device) DestroyBuffer(id renderer.BufferID) {
	delete(d.buffers, id)
}

func (d *Device) Upload(data []byte, dst renderer.BufferID) error {
	buf, ok := d.buffers[dst]
	if !ok {
		return fmt.Errorf("upload to unknown buffer %v", dst)
	}
	if len(data) > len(buf) {
		return fmt.Errorf("upload of %d bytes into %d-byte buffer", len(data), len(buf))
	}
	copy(buf, data)
	return nil
}

func (d *Device) UploadMaterials(materials []renderer.Material) error {
	if len(materials) > renderer.MaxMaterials {
		return fmt.Errorf("%d materials exceed the table capacity %d", len(materials), renderer.MaxMaterials)
	}
	d.materials = append([]renderer.Material(nil), materials...)
	return nil
}

func (d *Device) BuildAccelerationStructure(vertexBuffer, indexBuffer renderer.BufferID, draws []renderer.DrawCall) (renderer.AccelID, error) {
	vb, ok := d.buffers[vertexBuffer]
	if !ok {
		return renderer.NilAccel, fmt.Errorf("acceleration structure over unknown vertex buffer %v", vertexBuffer)
	}
	ib, ok := d.buffers[indexBuffer]
	if !ok {
		return renderer.NilAccel, fmt.Errorf("acceleration structure over unknown index buffer %v", indexBuffer)
	}
	vertices := renderer.DecodeVertices(vb)
	indices := renderer.DecodeIndices(ib)
	for di, draw := range draws {
		if uint32(len(indices)) < draw.StartIndex+draw.IndexCount {
			return renderer.NilAccel, fmt.Errorf("draw %d index range exceeds the index buffer", di)
		}
	}

	a := buildAccel(vertices, ib, indices, draws)
	id := renderer.AccelID(uuid.New())
	d.accels[id] = a
	core.LogDebug("acceleration structure built: %d primitives, %d nodes", len(a.prims), len(a.nodes))
	return id, nil
}

func (d *Device) CreatePipeline(kind renderer.PipelineKind) (renderer.PipelineID, error) {
	id := renderer.PipelineID(uuid.New())
	d.pipelines[id] = kind
	return id, nil
}

func (d *Device) Submit(commands *renderer.CommandList, fenceValue uint64) error {
	if commands.State != renderer.COMMAND_LIST_STATE_RECORDING_ENDED {
		return fmt.Errorf("submit of a command list in state %d", commands.State)
	}
	return d.tl.enqueue(op{
		commands: append([]renderer.Command(nil), commands.Commands...),
		fence:    fenceValue,
	})
}

func (d *Device) Present(image renderer.ImageID) error {
	return d.tl.enqueue(op{present: image, hasPresent: true})
}

func (d *Device) FenceCompleted() uint64 {
	return d.tl.completedValue()
}

func (d *Device) FenceWait(value uint64, timeout time.Duration) error {
	return d.tl.waitFor(value, timeout)
}

func (d *Device) ReadImage(id renderer.ImageID) (uint32, uint32, []float32, error) {
	img, ok := d.images[id]
	if !ok {
		return 0, 0, nil, fmt.Errorf("read of unknown image %v", id)
	}
	pix := make([]float32, len(img.Pix))
	copy(pix, img.Pix)
	return img.Width, img.Height, pix, nil
}

func (d *Device) PresentError() error {
	d.presentMu.Lock()
	defer d.presentMu.Unlock()
	err := d.presentErr
	d.presentErr = nil
	return err
}

func (d *Device) Shutdown() error {
	d.tl.shutdown()
	core.LogDebug("soft device shut down at fence %d", d.tl.completedValue())
	return nil
}

// Executor-side resource lookups.

func (d *Device) image(id renderer.ImageID) (*Image, bool) {
	img, ok := d.images[id]
	return img, ok
}

func (d *Device) buffer(id renderer.BufferID) ([]byte, bool) {
	buf, ok := d.buffers[id]
	return buf, ok
}

func (d *Device) accel(id renderer.AccelID) (*accel, bool) {
	a, ok := d.accels[id]
	return a, ok
}

func (d *Device) pipeline(id renderer.PipelineID) (renderer.PipelineKind, bool) {
	kind, ok := d.pipelines[id]
	return kind, ok
}

func (d *Device) material(index uint32) (renderer.Material, error) {
	if index >= uint32(len(d.materials)) {
		return renderer.Material{}, fmt.Errorf("material index %d out of range (%d uploaded)", index, len(d.materials))
	}
	return d.materials[index], nil
}

func (d *Device) materialSnapshot() []renderer.Material {
	return d.materials
}

func (d *Device) gbuffer(targets renderer.GBufferTargets) (gbufferImages, error) {
	var g gbufferImages
	var ok bool
	if g.ambient, ok = d.images[targets.Ambient]; !ok {
		return g, fmt.Errorf("unknown ambient target %v", targets.Ambient)
	}
	if g.position, ok = d.images[targets.Position]; !ok {
		return g, fmt.Errorf("unknown position target %v", targets.Position)
	}
	if g.diffuse, ok = d.images[targets.Diffuse]; !ok {
		return g, fmt.Errorf("unknown diffuse target %v", targets.Diffuse)
	}
	if g.normal, ok = d.images[targets.Normal]; !ok {
		return g, fmt.Errorf("unknown normal target %v", targets.Normal)
	}
	return g, nil
}
