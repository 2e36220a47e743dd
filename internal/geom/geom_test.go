package geom

import (
	"math"
	"testing"
)

func TestLineSide(t *testing.T) {
	// Horizontal line y=100 oriented left to right: points below the line
	// (larger y) are on the positive side, points above are negative.
	line := Line{Start: Point{0, 100}, End: Point{200, 100}}

	tests := []struct {
		name string
		p    Point
		want float64
	}{
		{"above line", Point{50, 50}, -10000},
		{"below line", Point{50, 150}, 10000},
		{"on line", Point{50, 100}, 0},
		{"on line beyond segment end", Point{500, 100}, 0},
		{"start point itself", Point{0, 100}, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := line.Side(tc.p)
			if got != tc.want {
				t.Errorf("Side(%v) = %v, want %v", tc.p, got, tc.want)
			}
		})
	}
}

func TestLineSideOrientation(t *testing.T) {
	// Reversing the segment flips the sign for every off-line point.
	fwd := Line{Start: Point{0, 100}, End: Point{200, 100}}
	rev := Line{Start: Point{200, 100}, End: Point{0, 100}}

	p := Point{50, 50}
	if fwd.Side(p) != -rev.Side(p) {
		t.Errorf("orientation flip: fwd=%v rev=%v, want negatives of each other",
			fwd.Side(p), rev.Side(p))
	}
}

func TestLineSideDiagonal(t *testing.T) {
	line := Line{Start: Point{0, 0}, End: Point{100, 100}}

	if got := line.Side(Point{100, 0}); got >= 0 {
		t.Errorf("point right of diagonal: side = %v, want negative", got)
	}
	if got := line.Side(Point{0, 100}); got <= 0 {
		t.Errorf("point left of diagonal: side = %v, want positive", got)
	}
	if got := line.Side(Point{50, 50}); got != 0 {
		t.Errorf("point on diagonal: side = %v, want 0", got)
	}
}

func TestCrossed(t *testing.T) {
	tests := []struct {
		name string
		prev float64
		cur  float64
		want bool
	}{
		{"positive to negative", 100, -100, true},
		{"negative to positive", -0.5, 2.0, true},
		{"same side positive", 100, 50, false},
		{"same side negative", -3, -8, false},
		{"previous exactly zero", 0, 100, false},
		{"current exactly zero", 100, 0, false},
		{"both zero", 0, 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Crossed(tc.prev, tc.cur); got != tc.want {
				t.Errorf("Crossed(%v, %v) = %v, want %v", tc.prev, tc.cur, got, tc.want)
			}
		})
	}
}

func TestDirectionSign(t *testing.T) {
	tests := []struct {
		name string
		prev float64
		cur  float64
		want int
	}{
		{"positive to negative", 10, -10, 1},
		{"negative to positive", -10, 10, -1},
		{"no change positive", 10, 20, 0},
		{"no change negative", -10, -20, 0},
		{"from zero", 0, 10, 0},
		{"to zero", 10, 0, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := DirectionSign(tc.prev, tc.cur); got != tc.want {
				t.Errorf("DirectionSign(%v, %v) = %d, want %d", tc.prev, tc.cur, got, tc.want)
			}
		})
	}
}

func TestBoxCentroid(t *testing.T) {
	tests := []struct {
		name string
		box  Box
		want Point
	}{
		{"unit box at origin", Box{0, 0, 1, 1}, Point{0.5, 0.5}},
		{"typical detection", Box{100, 200, 300, 400}, Point{200, 300}},
		{"inverted corners", Box{300, 400, 100, 200}, Point{200, 300}},
		{"degenerate point box", Box{7, 7, 7, 7}, Point{7, 7}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.box.Centroid(); got != tc.want {
				t.Errorf("Centroid(%+v) = %+v, want %+v", tc.box, got, tc.want)
			}
		})
	}
}

func TestBoxDimensions(t *testing.T) {
	b := Box{10, 20, 110, 70}
	if got := b.Width(); got != 100 {
		t.Errorf("Width = %v, want 100", got)
	}
	if got := b.Height(); got != 50 {
		t.Errorf("Height = %v, want 50", got)
	}
	if got := b.Area(); got != 5000 {
		t.Errorf("Area = %v, want 5000", got)
	}
}

func TestLineLength(t *testing.T) {
	tests := []struct {
		name string
		line Line
		want float64
	}{
		{"horizontal", Line{Point{0, 100}, Point{200, 100}}, 200},
		{"3-4-5 triangle", Line{Point{0, 0}, Point{3, 4}}, 5},
		{"degenerate", Line{Point{5, 5}, Point{5, 5}}, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.line.Length(); math.Abs(got-tc.want) > 1e-9 {
				t.Errorf("Length(%v) = %v, want %v", tc.line, got, tc.want)
			}
		})
	}
}

func TestDegenerateLineNeverCrosses(t *testing.T) {
	// A zero-length line reports side 0 everywhere, so Crossed can never
	// fire against it. Callers are expected to validate Length() > 0.
	line := Line{Start: Point{50, 50}, End: Point{50, 50}}

	points := []Point{{0, 0}, {100, 100}, {50, 50}, {-10, 80}}
	for _, p := range points {
		if got := line.Side(p); got != 0 {
			t.Errorf("degenerate line Side(%v) = %v, want 0", p, got)
		}
	}
	if Crossed(line.Side(points[0]), line.Side(points[1])) {
		t.Error("degenerate line reported a crossing")
	}
}

func TestDist(t *testing.T) {
	if got := Dist(Point{0, 0}, Point{3, 4}); got != 5 {
		t.Errorf("Dist = %v, want 5", got)
	}
	if got := Dist(Point{2, 2}, Point{2, 2}); got != 0 {
		t.Errorf("Dist of identical points = %v, want 0", got)
	}
}
