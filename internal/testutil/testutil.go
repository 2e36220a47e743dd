// Package testutil provides shared test fixtures and assertion helpers.
package testutil

import (
	"testing"
	"time"

	"github.com/roadtally/carcount/internal/detect"
	"github.com/roadtally/carcount/internal/geom"
)

// Line returns the canonical counting line used across tests: horizontal
// at y=100 from x=0 to x=200. Points above it (smaller y) sit on the
// negative side, so moving downward across it counts as "out" and moving
// upward counts as "in".
func Line() geom.Line {
	return geom.Line{
		Start: geom.Point{X: 0, Y: 100},
		End:   geom.Point{X: 200, Y: 100},
	}
}

// Box returns a 20x20 detection box centred on (x, y).
func Box(x, y float64) geom.Box {
	return geom.Box{X1: x - 10, Y1: y - 10, X2: x + 10, Y2: y + 10}
}

// Frame builds a wire frame at the given sequence and timestamp carrying
// the supplied detections.
func Frame(seq uint64, ts time.Time, dets ...detect.Detection) *detect.Frame {
	return &detect.Frame{
		Seq:        seq,
		UnixNanos:  ts.UnixNano(),
		Detections: dets,
	}
}

// Car returns a car detection for the given track centred on (x, y).
func Car(trackID int64, x, y float64) detect.Detection {
	return detect.Detection{
		TrackID:    trackID,
		Box:        Box(x, y),
		Confidence: 0.9,
		Class:      "car",
	}
}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}
