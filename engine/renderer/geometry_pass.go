package renderer

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/math"
)

// GeometryPass rasterizes opaque scene geometry into the G-buffer channels.
// No lighting math happens here: it is a pure attribute rasterizer, depth
// tested against the shared depth buffer, order-independent within the pass.
type GeometryPass struct {
	pipeline PipelineID
}

func NewGeometryPass(device Device) (*GeometryPass, error) {
	pipeline, err := device.CreatePipeline(PipelineGeometry)
	if err != nil {
		return nil, fmt.Errorf("geometry pipeline: %w", err)
	}
	return &GeometryPass{pipeline: pipeline}, nil
}

// Record appends the pass to the slot's command list. Every draw call's
// material index is re-validated here, at draw-submission time; a stale or
// out-of-range reference rejects the frame before anything reaches the GPU.
func (gp *GeometryPass) Record(cl *CommandList, slot *FrameSlot, depth ImageID, scene *Scene, materials *MaterialTable) error {
	if err := cl.BindPipeline(gp.pipeline); err != nil {
		return err
	}
	if err := cl.BeginGeometryPass(slot.GBuffer, depth, math.NewVec4(0, 0, 0, 1)); err != nil {
		return err
	}
	if err := cl.BindGeometry(scene.VertexBuffer(), scene.IndexBuffer()); err != nil {
		return err
	}
	for i, draw := range scene.DrawCalls() {
		if err := materials.Validate(draw.MaterialIndex); err != nil {
			return fmt.Errorf("geometry pass draw %d: %w", i, err)
		}
		if err := cl.Draw(draw); err != nil {
			return err
		}
	}
	return cl.EndPass()
}
