package world

import (
	"math"
	"math/rand"
)

// Location is an integer block coordinate. Y is the vertical axis.
type Location struct {
	X, Y, Z int32
}

// Above returns the location one block higher.
func (l Location) Above() Location { return Location{X: l.X, Y: l.Y + 1, Z: l.Z} }

// Bounds is an axis-aligned box, inclusive on both ends of every axis.
type Bounds struct {
	MinX, MaxX int32
	MinY, MaxY int32
	MinZ, MaxZ int32
}

// Valid reports whether min <= max holds on every axis.
func (b Bounds) Valid() bool {
	return b.MinX <= b.MaxX && b.MinY <= b.MaxY && b.MinZ <= b.MaxZ
}

// Fits reports whether the block count along every axis fits in an int32.
func (b Bounds) Fits() bool {
	return span(b.MinX, b.MaxX) <= math.MaxInt32 &&
		span(b.MinY, b.MaxY) <= math.MaxInt32 &&
		span(b.MinZ, b.MaxZ) <= math.MaxInt32
}

func span(lo, hi int32) int64 { return int64(hi) - int64(lo) + 1 }

// Contains reports whether l lies inside the box.
func (b Bounds) Contains(l Location) bool {
	return l.X >= b.MinX && l.X <= b.MaxX &&
		l.Y >= b.MinY && l.Y <= b.MaxY &&
		l.Z >= b.MinZ && l.Z <= b.MaxZ
}

// ContainsPoint is Contains for continuous entity coordinates.
func (b Bounds) ContainsPoint(x, y, z float64) bool {
	return x >= float64(b.MinX) && x < float64(b.MaxX)+1 &&
		y >= float64(b.MinY) && y < float64(b.MaxY)+1 &&
		z >= float64(b.MinZ) && z < float64(b.MaxZ)+1
}

// Center returns the block in the middle of the box.
func (b Bounds) Center() Location {
	mid := func(lo, hi int32) int32 { return int32(int64(lo) + (int64(hi)-int64(lo))/2) }
	return Location{X: mid(b.MinX, b.MaxX), Y: mid(b.MinY, b.MaxY), Z: mid(b.MinZ, b.MaxZ)}
}

// RandomLocation draws a uniformly distributed block inside the box. The
// box must be Valid.
func (b Bounds) RandomLocation(rng *rand.Rand) Location {
	pick := func(lo, hi int32) int32 { return int32(int64(lo) + rng.Int63n(span(lo, hi))) }
	return Location{X: pick(b.MinX, b.MaxX), Y: pick(b.MinY, b.MaxY), Z: pick(b.MinZ, b.MaxZ)}
}

// ClampX keeps a continuous X coordinate inside the box.
func (b Bounds) ClampX(x float64) float64 {
	return math.Max(float64(b.MinX), math.Min(x, float64(b.MaxX)))
}

// ClampZ keeps a continuous Z coordinate inside the box.
func (b Bounds) ClampZ(z float64) float64 {
	return math.Max(float64(b.MinZ), math.Min(z, float64(b.MaxZ)))
}
