// Package hierarchy parses and queries UI element trees reported by the
// device bridge, and implements the coordinate math (bounds, percent-to-pixel
// conversion) used by selector resolution.
package hierarchy

import (
	"fmt"
	"regexp"
	"strconv"
)

// Point is an integer pixel coordinate.
type Point struct {
	X, Y int
}

// Bounds is the rectangular region of a UI element, parsed from the wire
// format "[x1,y1][x2,y2]".
type Bounds struct {
	X1, Y1, X2, Y2 int
}

var boundsPattern = regexp.MustCompile(`^\[(-?\d+),(-?\d+)\]\[(-?\d+),(-?\d+)\]$`)

// ParseBounds parses the "[x1,y1][x2,y2]" wire format into a Bounds value.
func ParseBounds(s string) (Bounds, error) {
	m := boundsPattern.FindStringSubmatch(s)
	if m == nil {
		return Bounds{}, fmt.Errorf("hierarchy: invalid bounds format %q", s)
	}
	vals := make([]int, 4)
	for i, g := range m[1:] {
		v, err := strconv.Atoi(g)
		if err != nil {
			return Bounds{}, fmt.Errorf("hierarchy: invalid bounds component %q: %w", g, err)
		}
		vals[i] = v
	}
	return Bounds{X1: vals[0], Y1: vals[1], X2: vals[2], Y2: vals[3]}, nil
}

// String formats the bounds back into the "[x1,y1][x2,y2]" wire format.
// Round-trips with ParseBounds.
func (b Bounds) String() string {
	return fmt.Sprintf("[%d,%d][%d,%d]", b.X1, b.Y1, b.X2, b.Y2)
}

// Center returns the integer midpoint of the bounds.
func (b Bounds) Center() Point {
	return Point{X: (b.X1 + b.X2) / 2, Y: (b.Y1 + b.Y2) / 2}
}

// RelativePoint returns the point at the given fractional position within
// the bounds, e.g. (0.99, 0.99) for the near bottom-right corner.
func (b Bounds) RelativePoint(xPercent, yPercent float64) Point {
	w := b.X2 - b.X1
	h := b.Y2 - b.Y1
	return Point{
		X: b.X1 + int(float64(w)*xPercent),
		Y: b.Y1 + int(float64(h)*yPercent),
	}
}

// PercentToPixel converts a percentage coordinate (0-100) along a dimension
// of size dim into a pixel offset, clamped to [0, dim-1]. Implements
// spec.md §3 Selector.ByPercent: x = round((W-1)*p).
func PercentToPixel(dim int, percent float64) int {
	if dim <= 0 {
		return 0
	}
	px := int(float64(dim-1)*percent/100.0 + 0.5)
	if px < 0 {
		return 0
	}
	if px > dim-1 {
		return dim - 1
	}
	return px
}
