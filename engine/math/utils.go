package math

import "golang.org/x/exp/constraints"

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// Saturate clamps the value to the [0, 1] range, mirroring the HLSL/GLSL
// intrinsic of the same name.
func Saturate(f float32) float32 {
	return Clamp(f, 0.0, 1.0)
}
