package renderer

import (
	"fmt"
)

// ShadowPass traces rays against the scene's acceleration structure from
// the light's point of view, once per cubemap face. Each dispatch emits the
// per-direction radiance image the lighting pass samples; occlusion is
// resolved by a second, first-hit-terminating ray toward the light.
type ShadowPass struct {
	pipeline PipelineID
}

func NewShadowPass(device Device) (*ShadowPass, error) {
	pipeline, err := device.CreatePipeline(PipelineRayTracedShadow)
	if err != nil {
		return nil, fmt.Errorf("ray traced shadow pipeline: %w", err)
	}
	return &ShadowPass{pipeline: pipeline}, nil
}

// Record dispatches the ray generation program for all six faces of the
// slot's shadow cubemap.
func (sp *ShadowPass) Record(cl *CommandList, slot *FrameSlot, scene *Scene) error {
	if err := cl.BindPipeline(sp.pipeline); err != nil {
		return err
	}
	if scene.Accel() == NilAccel {
		return fmt.Errorf("shadow pass requires an uploaded scene")
	}
	for face := uint32(0); face < 6; face++ {
		if err := cl.TraceRays(slot.Shadow, face, scene.Accel()); err != nil {
			return err
		}
	}
	return nil
}
