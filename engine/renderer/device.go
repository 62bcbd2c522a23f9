package renderer

import (
	"time"

	"github.com/google/uuid"
)

// Resource handles. The zero value is the nil handle.
type (
	ImageID    uuid.UUID
	BufferID   uuid.UUID
	AccelID    uuid.UUID
	PipelineID uuid.UUID
)

var (
	NilImage    ImageID
	NilBuffer   BufferID
	NilAccel    AccelID
	NilPipeline PipelineID
)

type ImageFormat uint8

const (
	// 4 x float32 color channels.
	ImageFormatRGBA32F ImageFormat = iota
	// Single float32 depth channel.
	ImageFormatDepth32F
)

// PipelineKind names a compiled stage program set supplied by the device.
// The passes only bind and dispatch them.
type PipelineKind uint8

const (
	PipelineGeometry PipelineKind = iota
	PipelineLighting
	PipelineRayTracedShadow
)

// Device is the GPU-facing contract the orchestrator records against. One
// execution timeline: submissions retire in order and bump the fence value
// they were submitted with. All fence values are assigned by the caller and
// are strictly increasing.
type Device interface {
	// CreateImage allocates a layers-deep 2D image. Cubemap-style images
	// pass layers=6, everything else layers=1.
	CreateImage(width, height, layers uint32, format ImageFormat) (ImageID, error)
	DestroyImage(id ImageID)

	CreateBuffer(size uint64) (BufferID, error)
	DestroyBuffer(id BufferID)

	// Upload synchronously copies host bytes into a device buffer. Used
	// once at startup for geometry; a failure here is fatal to init.
	Upload(data []byte, dst BufferID) error

	// UploadMaterials replaces the device copy of the bounded material
	// table. Callers must drain the timeline first; no in-flight frame may
	// observe the swap.
	UploadMaterials(materials []Material) error

	// BuildAccelerationStructure builds the ray-tracing index over the
	// static geometry. Draws carry the per-geometry shader constants
	// (material index, base index offset).
	BuildAccelerationStructure(vertexBuffer BufferID, indexBuffer BufferID, draws []DrawCall) (AccelID, error)

	CreatePipeline(kind PipelineKind) (PipelineID, error)

	// Submit enqueues a closed command list on the execution timeline.
	// fenceValue is signaled when the submission retires.
	Submit(commands *CommandList, fenceValue uint64) error

	// Present enqueues a presentation of the image on the timeline, after
	// all previously submitted work.
	Present(image ImageID) error

	// FenceCompleted returns the highest fence value the timeline has
	// signaled so far.
	FenceCompleted() uint64

	// FenceWait blocks until the timeline reaches value. A timeout is a
	// possible device hang and surfaces as core.ErrFenceTimeout.
	FenceWait(value uint64, timeout time.Duration) error

	// ReadImage copies image pixels back to the host. Only valid once all
	// writes to the image have retired.
	ReadImage(id ImageID) (width, height uint32, pix []float32, err error)

	// PresentError reports a sticky presentation failure (surface lost)
	// recorded by the timeline, clearing it.
	PresentError() error

	Shutdown() error
}

// PresentTarget consumes retired frames. Implementations: the vulkan
// swapchain presenter and the soft headless surface used in tests.
type PresentTarget interface {
	// CreateOrResize (re)builds the surface backing store. imageCount is
	// the minimum number of buffered images the surface must support.
	CreateOrResize(width, height uint32, imageCount int) error
	// PresentPixels hands over a retired frame at render resolution.
	PresentPixels(width, height uint32, pix []float32) error
	Destroy() error
}
