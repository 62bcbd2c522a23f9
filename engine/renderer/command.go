package renderer

import (
	"fmt"

	"github.com/spaghettifunk/lumen/engine/math"
)

type CommandListState int

const (
	COMMAND_LIST_STATE_READY CommandListState = iota
	COMMAND_LIST_STATE_RECORDING
	COMMAND_LIST_STATE_RECORDING_ENDED
	COMMAND_LIST_STATE_SUBMITTED
)

// CommandList is a slot-owned recording context. Commands are captured by
// value, which doubles as the per-slot copy of all per-frame constants.
type CommandList struct {
	State    CommandListState
	Commands []Command
}

func NewCommandList() *CommandList {
	return &CommandList{
		State:    COMMAND_LIST_STATE_READY,
		Commands: make([]Command, 0, 64),
	}
}

func (cl *CommandList) Begin() error {
	if cl.State != COMMAND_LIST_STATE_READY {
		return fmt.Errorf("command list begin in state %d", cl.State)
	}
	cl.State = COMMAND_LIST_STATE_RECORDING
	return nil
}

func (cl *CommandList) End() error {
	if cl.State != COMMAND_LIST_STATE_RECORDING {
		return fmt.Errorf("command list end in state %d", cl.State)
	}
	cl.State = COMMAND_LIST_STATE_RECORDING_ENDED
	return nil
}

func (cl *CommandList) UpdateSubmitted() {
	cl.State = COMMAND_LIST_STATE_SUBMITTED
}

// Reset prepares the list for re-recording. Only legal once the slot's
// previous fence target has been reached.
func (cl *CommandList) Reset() {
	cl.Commands = cl.Commands[:0]
	cl.State = COMMAND_LIST_STATE_READY
}

func (cl *CommandList) append(c Command) error {
	if cl.State != COMMAND_LIST_STATE_RECORDING {
		return fmt.Errorf("command recorded outside Begin/End (state %d)", cl.State)
	}
	cl.Commands = append(cl.Commands, c)
	return nil
}

// FrameConstants are the transforms and light state recomputed once per
// frame from camera yaw/pitch/roll and the light position.
type FrameConstants struct {
	WorldView     math.Mat4
	WorldViewProj math.Mat4
	ShadowViews   [6]math.Mat4
	LightPosition math.Vec4
	// Light position transformed into view space, bound alongside the
	// world-space value.
	LightViewPos math.Vec4
}

type Command interface {
	isCommand()
}

type CmdSetFrameConstants struct {
	Constants FrameConstants
}

type CmdBindPipeline struct {
	Pipeline PipelineID
}

type CmdBindGeometry struct {
	VertexBuffer BufferID
	IndexBuffer  BufferID
}

// CmdBeginGeometryPass opens the G-buffer pass. Color targets are cleared to
// ClearColor, the depth target to the far plane.
type CmdBeginGeometryPass struct {
	Targets    GBufferTargets
	Depth      ImageID
	ClearColor math.Vec4
}

type CmdEndPass struct{}

// CmdDraw rasterizes one draw call. The material index travels as a
// per-draw root constant.
type CmdDraw struct {
	Call DrawCall
}

// CmdTraceRays dispatches the ray-traced shadow program for one cubemap
// face of the target image.
type CmdTraceRays struct {
	Target ImageID
	Face   uint32
	Accel  AccelID
}

// CmdCompose runs the deferred lighting program: one invocation per output
// pixel, consuming the G-buffer channels and the shadow cubemap.
type CmdCompose struct {
	GBuffer GBufferTargets
	Shadow  ImageID
	Output  ImageID
}

func (CmdSetFrameConstants) isCommand() {}
func (CmdBindPipeline) isCommand()      {}
func (CmdBindGeometry) isCommand()      {}
func (CmdBeginGeometryPass) isCommand() {}
func (CmdEndPass) isCommand()           {}
func (CmdDraw) isCommand()              {}
func (CmdTraceRays) isCommand()         {}
func (CmdCompose) isCommand()           {}

func (cl *CommandList) SetFrameConstants(c FrameConstants) error {
	return cl.append(CmdSetFrameConstants{Constants: c})
}

func (cl *CommandList) BindPipeline(p PipelineID) error {
	return cl.append(CmdBindPipeline{Pipeline: p})
}

func (cl *CommandList) BindGeometry(vertexBuffer, indexBuffer BufferID) error {
	return cl.append(CmdBindGeometry{VertexBuffer: vertexBuffer, IndexBuffer: indexBuffer})
}

func (cl *CommandList) BeginGeometryPass(targets GBufferTargets, depth ImageID, clearColor math.Vec4) error {
	return cl.append(CmdBeginGeometryPass{Targets: targets, Depth: depth, ClearColor: clearColor})
}

func (cl *CommandList) EndPass() error {
	return cl.append(CmdEndPass{})
}

func (cl *CommandList) Draw(call DrawCall) error {
	return cl.append(CmdDraw{Call: call})
}

func (cl *CommandList) TraceRays(target ImageID, face uint32, accel AccelID) error {
	return cl.append(CmdTraceRays{Target: target, Face: face, Accel: accel})
}

func (cl *CommandList) Compose(gbuffer GBufferTargets, shadow, output ImageID) error {
	return cl.append(CmdCompose{GBuffer: gbuffer, Shadow: shadow, Output: output})
}
