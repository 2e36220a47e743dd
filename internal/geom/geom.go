// Package geom provides the 2D primitives for line-crossing detection:
// points, bounding boxes and oriented line segments in video-pixel space.
package geom

import (
	"fmt"
	"math"
)

// Point is a 2D coordinate in video-pixel space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box is an axis-aligned bounding box given by two opposite corners.
// Detectors emit (X1,Y1) as top-left and (X2,Y2) as bottom-right, but
// nothing here depends on that ordering.
type Box struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Centroid returns the componentwise mean of the box corners.
func (b Box) Centroid() Point {
	return Point{
		X: (b.X1 + b.X2) / 2,
		Y: (b.Y1 + b.Y2) / 2,
	}
}

// Width returns the horizontal extent of the box.
func (b Box) Width() float64 { return math.Abs(b.X2 - b.X1) }

// Height returns the vertical extent of the box.
func (b Box) Height() float64 { return math.Abs(b.Y2 - b.Y1) }

// Area returns the box area in square pixels.
func (b Box) Area() float64 { return b.Width() * b.Height() }

// Line is an oriented segment. Orientation matters: it fixes which
// half-plane is positive and therefore which crossing direction is "in".
type Line struct {
	Start Point `json:"start"`
	End   Point `json:"end"`
}

// Side evaluates the 2D cross product of the line direction against the
// vector from Start to p:
//
//	(x2-x1)*(py-y1) - (y2-y1)*(px-x1)
//
// The sign encodes which half-plane p occupies; exactly zero means p lies
// on the (infinite extension of the) line. The magnitude carries no
// geometric meaning beyond its sign.
func (l Line) Side(p Point) float64 {
	return LineSide(p, l.Start, l.End)
}

// LineSide is the free-function form of Line.Side.
func LineSide(p, start, end Point) float64 {
	return (end.X-start.X)*(p.Y-start.Y) - (end.Y-start.Y)*(p.X-start.X)
}

// Length returns the Euclidean length of the segment. A zero-length line
// degenerates Side to a constant 0, so no crossing can ever be observed
// against it; callers must ensure Length() > 0.
func (l Line) Length() float64 {
	dx := l.End.X - l.Start.X
	dy := l.End.Y - l.Start.Y
	return math.Hypot(dx, dy)
}

func (l Line) String() string {
	return fmt.Sprintf("(%g,%g)->(%g,%g)", l.Start.X, l.Start.Y, l.End.X, l.End.Y)
}

// Crossed reports whether two consecutive side values indicate a crossing:
// true iff their product is strictly negative. A zero on either side is
// treated as not crossed, so a point sitting exactly on the boundary never
// produces a count on its own.
func Crossed(prev, cur float64) bool {
	return prev*cur < 0
}

// DirectionSign classifies a transition between side values:
// +1 for positive to negative, -1 for negative to positive, 0 otherwise
// (no sign change, or either value exactly zero).
func DirectionSign(prev, cur float64) int {
	switch {
	case prev > 0 && cur < 0:
		return 1
	case prev < 0 && cur > 0:
		return -1
	default:
		return 0
	}
}

// Dist returns the Euclidean distance between two points.
func Dist(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
