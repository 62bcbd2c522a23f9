package renderer

import (
	"fmt"
)

// LightingPass composes the final image: one invocation per output pixel,
// consuming the G-buffer channels and the shadow cubemap written earlier in
// the same frame. Intentionally materials-agnostic; all material resolution
// happened upstream.
type LightingPass struct {
	pipeline PipelineID
}

func NewLightingPass(device Device) (*LightingPass, error) {
	pipeline, err := device.CreatePipeline(PipelineLighting)
	if err != nil {
		return nil, fmt.Errorf("lighting pipeline: %w", err)
	}
	return &LightingPass{pipeline: pipeline}, nil
}

// Record appends the composition dispatch. Its inputs are the same slot's
// G-buffer and shadow images: written once, read exactly once, same frame.
func (lp *LightingPass) Record(cl *CommandList, slot *FrameSlot) error {
	if err := cl.BindPipeline(lp.pipeline); err != nil {
		return err
	}
	if slot.Output == NilImage {
		return fmt.Errorf("lighting pass requires a surface-backed output image")
	}
	return cl.Compose(slot.GBuffer, slot.Shadow, slot.Output)
}
