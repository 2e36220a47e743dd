package detect

import (
	"context"
	"io"
	"testing"

	"github.com/roadtally/carcount/internal/geom"
	"github.com/roadtally/carcount/internal/linecount"
)

func TestSyntheticDeterministic(t *testing.T) {
	opts := SyntheticOptions{Seed: 42, MaxFrames: 200, VehiclesPerMinute: 600}
	a := NewSynthetic(opts)
	b := NewSynthetic(opts)

	ctx := context.Background()
	for i := 0; i < 200; i++ {
		fa, errA := a.Next(ctx)
		fb, errB := b.Next(ctx)
		if errA != nil || errB != nil {
			t.Fatalf("frame %d: errors %v / %v", i, errA, errB)
		}
		if len(fa.Detections) != len(fb.Detections) {
			t.Fatalf("frame %d: detection counts differ: %d vs %d", i, len(fa.Detections), len(fb.Detections))
		}
		for j := range fa.Detections {
			if fa.Detections[j] != fb.Detections[j] {
				t.Fatalf("frame %d detection %d differs", i, j)
			}
		}
	}
}

func TestSyntheticEndsAfterMaxFrames(t *testing.T) {
	src := NewSynthetic(SyntheticOptions{Seed: 1, MaxFrames: 10})
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if _, err := src.Next(ctx); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}
	if _, err := src.Next(ctx); err != io.EOF {
		t.Errorf("after MaxFrames: err = %v, want io.EOF", err)
	}
}

func TestSyntheticTimestampsAdvance(t *testing.T) {
	src := NewSynthetic(SyntheticOptions{Seed: 1, FPS: 30, MaxFrames: 60})
	ctx := context.Background()

	var prev int64
	for i := 0; i < 60; i++ {
		frame, err := src.Next(ctx)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if i > 0 && frame.UnixNanos <= prev {
			t.Fatalf("frame %d: timestamp %d not after %d", i, frame.UnixNanos, prev)
		}
		prev = frame.UnixNanos
	}
}

// A busy synthetic stream fed through a real tracker must produce
// crossings: vehicles always traverse the full frame height, so every
// track passes any horizontal line.
func TestSyntheticProducesCrossings(t *testing.T) {
	const width, height = 1920, 1080
	src := NewSynthetic(SyntheticOptions{
		Seed:              7,
		FPS:               30,
		VehiclesPerMinute: 1200,
		Width:             width,
		Height:            height,
		MaxFrames:         30 * 30, // 30 seconds
	})

	tracker := linecount.New(linecount.DefaultConfig(geom.Line{
		Start: geom.Point{X: 0, Y: height / 2},
		End:   geom.Point{X: width, Y: height / 2},
	}))

	ctx := context.Background()
	for {
		frame, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		for _, d := range frame.Detections {
			tracker.Update(d.TrackID, d.Box.Centroid(), frame.Time())
		}
	}

	stats := tracker.Statistics()
	if stats.Total == 0 {
		t.Error("expected crossings from a 30s busy synthetic stream, got none")
	}
	if stats.CountIn+stats.CountOut != stats.Total {
		t.Errorf("counter invariant broken: %d + %d != %d", stats.CountIn, stats.CountOut, stats.Total)
	}
}
