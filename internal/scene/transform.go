package scene

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidBounds reports a preset whose minimum is not strictly below its maximum.
var ErrInvalidBounds = errors.New("invalid scene bounds")

// Point is a position in either coordinate space.
type Point struct {
	X float64
	Y float64
	Z float64
}

// Bounds describes the physical extent of a scene in meters.
type Bounds struct {
	XMin    float64
	XMax    float64
	YMin    float64
	YMax    float64
	ZMin    float64
	ZMax    float64
	ZOffset float64
}

// Validate ensures every axis has a non-empty, finite range.
func (b Bounds) Validate() error {
	axes := []struct {
		name     string
		min, max float64
	}{
		{"x", b.XMin, b.XMax},
		{"y", b.YMin, b.YMax},
		{"z", b.ZMin, b.ZMax},
	}
	for _, axis := range axes {
		if !finite(axis.min) || !finite(axis.max) {
			return fmt.Errorf("%w: %s bounds must be finite", ErrInvalidBounds, axis.name)
		}
		if axis.min >= axis.max {
			return fmt.Errorf("%w: %s_min (%g) must be less than %s_max (%g)", ErrInvalidBounds, axis.name, axis.min, axis.name, axis.max)
		}
	}
	if !finite(b.ZOffset) {
		return fmt.Errorf("%w: z_offset must be finite", ErrInvalidBounds)
	}
	return nil
}

// ToScene converts a normalized internal position into scene coordinates.
func ToScene(p Point, b Bounds) Point {
	return Point{
		X: b.XMin + p.X*(b.XMax-b.XMin),
		Y: b.YMax - p.Y*(b.YMax-b.YMin),
		Z: p.Z + b.ZOffset,
	}
}

// ToInternal converts a scene position back into normalized internal coordinates.
func ToInternal(p Point, b Bounds) Point {
	return Point{
		X: (p.X - b.XMin) / (b.XMax - b.XMin),
		Y: (b.YMax - p.Y) / (b.YMax - b.YMin),
		Z: p.Z - b.ZOffset,
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
