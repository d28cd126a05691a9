// Package geometry provides wrap-around math for a fixed-size toroidal world.
// Every edge of the map wraps to its opposite edge, so the shortest path
// between two points may cross a boundary.
package geometry

import "math"

// Wrap normalizes a coordinate into [0, extent). The double modulo keeps
// negative inputs correct: Wrap(-100, 1000) == 900.
func Wrap(v, extent float64) float64 {
	return math.Mod(math.Mod(v, extent)+extent, extent)
}

// WrapPoint normalizes both coordinates of a point into map bounds.
func WrapPoint(x, y, width, height float64) (float64, float64) {
	return Wrap(x, width), Wrap(y, height)
}

// axisDelta returns the shorter of the direct and wrap-around deltas along
// one axis, as a magnitude.
func axisDelta(a, b, extent float64) float64 {
	d := math.Abs(a - b)
	return math.Min(d, extent-d)
}

// ShortestDistance returns the Euclidean length of the shortest toroidal
// path between two points. Identical points yield exactly 0.
func ShortestDistance(x1, y1, x2, y2, width, height float64) float64 {
	dx := axisDelta(x1, x2, width)
	dy := axisDelta(y1, y2, height)
	return math.Hypot(dx, dy)
}

// ShortestVector returns the displacement from (x1,y1) to (x2,y2) along the
// shorter wrap direction on each axis. When the raw delta exceeds half the
// extent the full extent is folded out, so the result always points the
// short way around.
//
// This is aiming math only. A projectile already in flight must keep the
// vector captured at launch; recomputing against a moved endpoint can flip
// the wrap direction mid-animation.
func ShortestVector(x1, y1, x2, y2, width, height float64) (float64, float64) {
	return foldAxis(x2-x1, width), foldAxis(y2-y1, height)
}

func foldAxis(delta, extent float64) float64 {
	if delta > extent/2 {
		return delta - extent
	}
	if delta < -extent/2 {
		return delta + extent
	}
	return delta
}
