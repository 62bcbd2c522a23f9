package soft

import (
	"fmt"

	kmath "github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
)

// executor interprets one submitted command list. It carries the transient
// recording state a hardware queue would: the current frame constants, the
// bound pipeline and geometry, and the open pass attachments.
type executor struct {
	dev *Device

	consts   renderer.FrameConstants
	pipeline renderer.PipelineKind
	bound    bool

	vertices   []kmath.Vertex3D
	indices    []uint16
	indexBytes []byte

	inPass  bool
	targets gbufferImages
	depth   *Image
}

func (d *Device) executeCommands(commands []renderer.Command) error {
	ex := &executor{dev: d}
	for _, c := range commands {
		if err := ex.execute(c); err != nil {
			return err
		}
	}
	if ex.inPass {
		return fmt.Errorf("command list ended inside an open pass")
	}
	return nil
}

func (ex *executor) execute(c renderer.Command) error {
	switch cmd := c.(type) {
	case renderer.CmdSetFrameConstants:
		ex.consts = cmd.Constants
		return nil
	case renderer.CmdBindPipeline:
		kind, ok := ex.dev.pipeline(cmd.Pipeline)
		if !ok {
			return fmt.Errorf("bind of unknown pipeline %v", cmd.Pipeline)
		}
		ex.pipeline = kind
		ex.bound = true
		return nil
	case renderer.CmdBindGeometry:
		return ex.bindGeometry(cmd)
	case renderer.CmdBeginGeometryPass:
		return ex.beginGeometryPass(cmd)
	case renderer.CmdEndPass:
		if !ex.inPass {
			return fmt.Errorf("end pass without begin")
		}
		ex.inPass = false
		return nil
	case renderer.CmdDraw:
		return ex.draw(cmd.Call)
	case renderer.CmdTraceRays:
		return ex.traceRays(cmd)
	case renderer.CmdCompose:
		return ex.compose(cmd)
	default:
		return fmt.Errorf("unknown command %T", c)
	}
}

func (ex *executor) bindGeometry(cmd renderer.CmdBindGeometry) error {
	vb, ok := ex.dev.buffer(cmd.VertexBuffer)
	if !ok {
		return fmt.Errorf("bind of unknown vertex buffer %v", cmd.VertexBuffer)
	}
	ib, ok := ex.dev.buffer(cmd.IndexBuffer)
	if !ok {
		return fmt.Errorf("bind of unknown index buffer %v", cmd.IndexBuffer)
	}
	ex.vertices = renderer.DecodeVertices(vb)
	ex.indexBytes = ib
	ex.indices = renderer.DecodeIndices(ib)
	return nil
}

func (ex *executor) beginGeometryPass(cmd renderer.CmdBeginGeometryPass) error {
	if ex.inPass {
		return fmt.Errorf("begin pass inside an open pass")
	}
	var err error
	ex.targets, err = ex.dev.gbuffer(cmd.Targets)
	if err != nil {
		return err
	}
	depth, ok := ex.dev.image(cmd.Depth)
	if !ok {
		return fmt.Errorf("unknown depth target %v", cmd.Depth)
	}
	ex.depth = depth

	// Attribute channels clear to zero so the lighting stage can tell
	// covered pixels (position w is 1) from background.
	ex.targets.ambient.Clear(cmd.ClearColor)
	ex.targets.diffuse.Clear(cmd.ClearColor)
	ex.targets.position.Clear(kmath.Vec4{})
	ex.targets.normal.Clear(kmath.Vec4{})
	ex.depth.Clear(kmath.NewVec4(1, 0, 0, 0))
	ex.inPass = true
	return nil
}

func (ex *executor) draw(call renderer.DrawCall) error {
	if !ex.inPass {
		return fmt.Errorf("draw outside a pass")
	}
	if !ex.bound || ex.pipeline != renderer.PipelineGeometry {
		return fmt.Errorf("draw without the geometry pipeline bound")
	}
	if len(ex.vertices) == 0 {
		return fmt.Errorf("draw without bound geometry")
	}
	material, err := ex.dev.material(call.MaterialIndex)
	if err != nil {
		return err
	}
	rasterizeDraw(ex.vertices, ex.indices, call, material, ex.consts.WorldViewProj, ex.targets, ex.depth)
	return nil
}

func (ex *executor) traceRays(cmd renderer.CmdTraceRays) error {
	if !ex.bound || ex.pipeline != renderer.PipelineRayTracedShadow {
		return fmt.Errorf("trace rays without the ray-traced shadow pipeline bound")
	}
	if cmd.Face >= 6 {
		return fmt.Errorf("trace rays face %d out of range", cmd.Face)
	}
	a, ok := ex.dev.accel(cmd.Accel)
	if !ok {
		return fmt.Errorf("trace against unknown acceleration structure %v", cmd.Accel)
	}
	target, ok := ex.dev.image(cmd.Target)
	if !ok {
		return fmt.Errorf("trace into unknown image %v", cmd.Target)
	}
	if target.Layers <= cmd.Face {
		return fmt.Errorf("trace face %d into %d-layer image", cmd.Face, target.Layers)
	}
	traceShadowFace(a, ex.dev.materialSnapshot(), ex.consts, cmd.Face, target)
	return nil
}

func (ex *executor) compose(cmd renderer.CmdCompose) error {
	if !ex.bound || ex.pipeline != renderer.PipelineLighting {
		return fmt.Errorf("compose without the lighting pipeline bound")
	}
	g, err := ex.dev.gbuffer(cmd.GBuffer)
	if err != nil {
		return err
	}
	shadow, ok := ex.dev.image(cmd.Shadow)
	if !ok {
		return fmt.Errorf("compose with unknown shadow image %v", cmd.Shadow)
	}
	out, ok := ex.dev.image(cmd.Output)
	if !ok {
		return fmt.Errorf("compose into unknown output image %v", cmd.Output)
	}
	composeLighting(g, shadow, out, ex.consts)
	return nil
}
