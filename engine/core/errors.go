package core

import (
	"errors"
)

var (
	// ErrDeviceLost indicates the GPU timeline stopped making progress
	// and can no longer be trusted. Fatal to the frame pipeline.
	ErrDeviceLost = errors.New("device lost")
	// ErrSurfaceLost indicates the presentable surface is gone or stale.
	// The orchestrator must drain and rebuild before resuming.
	ErrSurfaceLost = errors.New("surface lost, rebuild required")
	// ErrFenceTimeout indicates a fence wait expired, a possible device
	// hang. Never silently retried.
	ErrFenceTimeout = errors.New("fence wait timed out")
	// ErrShuttingDown is returned by frame operations issued after
	// Cleanup has begun.
	ErrShuttingDown = errors.New("renderer shutting down")
	ErrUnknown      = errors.New("unknown")
)
