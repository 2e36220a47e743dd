package linecount

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/roadtally/carcount/internal/geom"
	"github.com/roadtally/carcount/internal/timeutil"
)

// testLine is a horizontal segment at y=100 oriented left to right. Points
// above it (smaller y) sit on the negative side, points below on the
// positive side, so a downward crossing is DirectionOut and an upward
// crossing is DirectionIn.
var testLine = geom.Line{Start: geom.Point{X: 0, Y: 100}, End: geom.Point{X: 200, Y: 100}}

var (
	above = geom.Point{X: 50, Y: 50}
	below = geom.Point{X: 50, Y: 150}
)

// ts converts seconds into an absolute test timestamp.
func ts(sec float64) time.Time {
	return time.Unix(0, 0).Add(time.Duration(sec * float64(time.Second)))
}

func newTestTracker(cooldown time.Duration) *Tracker {
	return New(Config{Line: testLine, Cooldown: cooldown})
}

func TestFirstUpdateNeverCounts(t *testing.T) {
	tests := []struct {
		name string
		p    geom.Point
	}{
		{"above the line", above},
		{"below the line", below},
		{"exactly on the line", geom.Point{X: 50, Y: 100}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tr := newTestTracker(time.Second)
			if tr.Update(5, tc.p, ts(10)) {
				t.Error("first update reported a crossing")
			}
			stats := tr.Statistics()
			if stats.Total != 0 {
				t.Errorf("total = %d after single observation, want 0", stats.Total)
			}
			if stats.ActiveTracks != 1 {
				t.Errorf("active tracks = %d, want 1", stats.ActiveTracks)
			}
		})
	}
}

func TestCrossingCountsWithDirection(t *testing.T) {
	tests := []struct {
		name    string
		first   geom.Point
		second  geom.Point
		wantIn  int64
		wantOut int64
	}{
		{"downward crossing is out", above, below, 0, 1},
		{"upward crossing is in", below, above, 1, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tr := newTestTracker(time.Second)
			if tr.Update(5, tc.first, ts(0)) {
				t.Fatal("first update reported a crossing")
			}
			// Two seconds elapsed, comfortably past the cooldown.
			if !tr.Update(5, tc.second, ts(2)) {
				t.Fatal("crossing not reported")
			}
			stats := tr.Statistics()
			if stats.CountIn != tc.wantIn || stats.CountOut != tc.wantOut {
				t.Errorf("counts in=%d out=%d, want in=%d out=%d",
					stats.CountIn, stats.CountOut, tc.wantIn, tc.wantOut)
			}
			if stats.Total != 1 {
				t.Errorf("total = %d, want 1", stats.Total)
			}
		})
	}
}

func TestSameSideNeverCounts(t *testing.T) {
	tr := newTestTracker(time.Second)

	positions := []geom.Point{
		{X: 50, Y: 50}, {X: 60, Y: 60}, {X: 70, Y: 40}, {X: 80, Y: 90},
	}
	for i, p := range positions {
		if tr.Update(3, p, ts(float64(i)*2)) {
			t.Errorf("update %d on same side reported a crossing", i)
		}
	}
	if got := tr.Statistics().Total; got != 0 {
		t.Errorf("total = %d, want 0", got)
	}
}

// TestRecrossWithinCooldownSuppressed exercises the stamp-freeze rule: the
// cooldown window is measured from the counted crossing, so a re-cross
// shortly after stays suppressed even though the stored side differs.
func TestRecrossWithinCooldownSuppressed(t *testing.T) {
	tr := newTestTracker(time.Second)

	tr.Update(9, above, ts(0))
	if !tr.Update(9, below, ts(2.0)) {
		t.Fatal("initial crossing not counted")
	}

	// Re-cross 0.5s after the counted crossing: inside the window.
	if tr.Update(9, above, ts(2.5)) {
		t.Error("re-cross inside cooldown was counted")
	}
	// Cross again 0.9s after: still inside, side keeps drifting.
	if tr.Update(9, below, ts(2.9)) {
		t.Error("second re-cross inside cooldown was counted")
	}
	if got := tr.Statistics().Total; got != 1 {
		t.Errorf("total = %d during suppression, want 1", got)
	}

	// 1.1s after the counted crossing the window has passed; the stored
	// side is now "below" from the drift, so moving above counts.
	if !tr.Update(9, above, ts(3.1)) {
		t.Error("crossing after cooldown elapsed was not counted")
	}
	stats := tr.Statistics()
	if stats.CountIn != 1 || stats.CountOut != 1 {
		t.Errorf("counts in=%d out=%d, want 1 and 1", stats.CountIn, stats.CountOut)
	}
}

// TestOscillationWithinCooldown drives a track back and forth across the
// line within a tenth of a second. With a one second cooldown nothing may
// count; only the side is tracked.
func TestOscillationWithinCooldown(t *testing.T) {
	tr := newTestTracker(time.Second)

	tr.Update(7, above, ts(0))
	if tr.Update(7, below, ts(0.03)) {
		t.Error("oscillation counted at 30ms")
	}
	if tr.Update(7, above, ts(0.06)) {
		t.Error("oscillation counted at 60ms")
	}
	if tr.Update(7, below, ts(0.09)) {
		t.Error("oscillation counted at 90ms")
	}

	stats := tr.Statistics()
	if stats.Total != 0 {
		t.Errorf("total = %d, want 0", stats.Total)
	}
	if stats.ActiveTracks != 1 {
		t.Errorf("active tracks = %d, want 1", stats.ActiveTracks)
	}
}

func TestZeroCooldownCountsEverySignChange(t *testing.T) {
	tr := newTestTracker(0)

	tr.Update(1, above, ts(0))
	if !tr.Update(1, below, ts(0.1)) {
		t.Error("first sign change not counted with zero cooldown")
	}
	if !tr.Update(1, above, ts(0.2)) {
		t.Error("second sign change not counted with zero cooldown")
	}
	stats := tr.Statistics()
	if stats.Total != 2 || stats.CountIn != 1 || stats.CountOut != 1 {
		t.Errorf("stats = %+v, want total 2 split 1/1", stats)
	}
}

// TestTotalAlwaysSumOfDirections drives several tracks through a mixed
// update sequence and checks the recomputed total after every single call.
func TestTotalAlwaysSumOfDirections(t *testing.T) {
	tr := newTestTracker(500 * time.Millisecond)

	seq := []struct {
		id  int64
		p   geom.Point
		sec float64
	}{
		{1, above, 0}, {2, below, 0.1}, {3, above, 0.2},
		{1, below, 1.0}, {2, above, 1.1}, {3, geom.Point{X: 10, Y: 20}, 1.2},
		{1, above, 2.5}, {2, below, 2.6}, {1, below, 2.7},
		{4, below, 3.0}, {4, above, 4.0}, {4, below, 4.2},
	}

	for i, step := range seq {
		tr.Update(step.id, step.p, ts(step.sec))
		stats := tr.Statistics()
		if stats.CountIn+stats.CountOut != stats.Total {
			t.Fatalf("after step %d: in=%d out=%d total=%d, sum mismatch",
				i, stats.CountIn, stats.CountOut, stats.Total)
		}
	}
}

func TestCleanupStale(t *testing.T) {
	tr := newTestTracker(time.Second)

	tr.Update(1, above, ts(90)) // stale by now=100, maxAge=5
	tr.Update(2, above, ts(96)) // fresh
	tr.Update(3, below, ts(95)) // age exactly 5: kept, comparison is strict

	removed := tr.CleanupStale(ts(100), 5*time.Second)
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	stats := tr.Statistics()
	if stats.ActiveTracks != 2 {
		t.Errorf("active tracks = %d, want 2", stats.ActiveTracks)
	}
	if stats.Total != 0 {
		t.Errorf("cleanup touched counters: total = %d", stats.Total)
	}

	ids := make(map[int64]bool)
	for _, snap := range tr.ActiveTracks() {
		ids[snap.ID] = true
	}
	if ids[1] || !ids[2] || !ids[3] {
		t.Errorf("surviving tracks = %v, want 2 and 3 only", ids)
	}
}

func TestCleanupStaleEmpty(t *testing.T) {
	tr := newTestTracker(time.Second)
	if removed := tr.CleanupStale(ts(100), 5*time.Second); removed != 0 {
		t.Errorf("removed = %d on empty tracker, want 0", removed)
	}
}

// TestCleanupDoesNotRefreshOnSuppressedUpdates: the stamp the cleanup age is
// measured against freezes on ordinary observations, so a track that keeps
// reporting without ever crossing still goes stale.
func TestCleanupDoesNotRefreshOnSuppressedUpdates(t *testing.T) {
	tr := newTestTracker(time.Minute)

	tr.Update(8, above, ts(0))
	// Frequent same-side updates, all inside the one minute cooldown.
	for sec := 1.0; sec < 10; sec++ {
		tr.Update(8, above, ts(sec))
	}

	if removed := tr.CleanupStale(ts(10), 5*time.Second); removed != 1 {
		t.Errorf("removed = %d, want 1: stamp should not refresh on suppressed updates", removed)
	}
}

func TestEvictedTrackTreatedAsNew(t *testing.T) {
	tr := newTestTracker(time.Second)

	tr.Update(5, above, ts(0))
	if !tr.Update(5, below, ts(2)) {
		t.Fatal("crossing not counted")
	}

	tr.CleanupStale(ts(60), 5*time.Second)
	if got := tr.Statistics().ActiveTracks; got != 0 {
		t.Fatalf("active tracks = %d after cleanup, want 0", got)
	}

	// Same ID reappears on the far side: first sight again, no count even
	// though the last stored side before eviction differed.
	if tr.Update(5, above, ts(61)) {
		t.Error("reappearing evicted track counted on first observation")
	}
	if !tr.Update(5, below, ts(63)) {
		t.Error("crossing after revival not counted")
	}
	if got := tr.Statistics().Total; got != 2 {
		t.Errorf("total = %d, want 2", got)
	}
}

func TestReset(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	tr := New(Config{Line: testLine, Cooldown: time.Second, Clock: clock})

	tr.Update(1, above, ts(0))
	tr.Update(1, below, ts(2))
	tr.Update(2, above, ts(2))
	clock.Advance(30 * time.Second)

	tr.Reset()

	stats := tr.Statistics()
	if stats.CountIn != 0 || stats.CountOut != 0 || stats.Total != 0 {
		t.Errorf("counters after reset = %+v, want zeros", stats)
	}
	if stats.ActiveTracks != 0 {
		t.Errorf("active tracks after reset = %d, want 0", stats.ActiveTracks)
	}
	if stats.ElapsedSeconds != 0 {
		t.Errorf("elapsed after reset = %v, want 0", stats.ElapsedSeconds)
	}

	// Counting still works after a reset, with first-sight semantics.
	if tr.Update(1, above, ts(100)) {
		t.Error("first update after reset counted")
	}
	if !tr.Update(1, below, ts(102)) {
		t.Error("crossing after reset not counted")
	}
}

func TestStatisticsRate(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	tr := New(Config{Line: testLine, Cooldown: time.Second, Clock: clock})

	// No elapsed time yet: the rate must be reported as zero, not NaN.
	if got := tr.Statistics().RatePerMinute; got != 0 {
		t.Errorf("rate with zero elapsed = %v, want 0", got)
	}

	tr.Update(1, above, ts(0))
	tr.Update(1, below, ts(2))
	tr.Update(2, below, ts(0))
	tr.Update(2, above, ts(2))

	clock.Advance(time.Minute)
	stats := tr.Statistics()
	if stats.ElapsedSeconds != 60 {
		t.Errorf("elapsed = %v, want 60", stats.ElapsedSeconds)
	}
	if stats.RatePerMinute != 2 {
		t.Errorf("rate = %v, want 2 crossings/minute", stats.RatePerMinute)
	}
}

// TestSessionClockIndependentOfUpdateTime: update timestamps may run on
// video time while elapsed time runs on the session clock. Feeding epoch
// era timestamps must not bleed into the reported elapsed time.
func TestSessionClockIndependentOfUpdateTime(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	tr := New(Config{Line: testLine, Cooldown: time.Second, Clock: clock})

	tr.Update(1, above, ts(0))
	tr.Update(1, below, ts(3600)) // an hour of video time

	clock.Advance(10 * time.Second) // ten seconds of wall time
	stats := tr.Statistics()
	if stats.ElapsedSeconds != 10 {
		t.Errorf("elapsed = %v, want 10 (session clock, not video time)", stats.ElapsedSeconds)
	}
	if stats.RatePerMinute != 6 {
		t.Errorf("rate = %v, want 6 (1 crossing in 10s)", stats.RatePerMinute)
	}
}

func TestOnCrossingCallback(t *testing.T) {
	var events []Crossing
	tr := New(Config{
		Line:     testLine,
		Cooldown: time.Second,
		OnCrossing: func(c Crossing) {
			events = append(events, c)
		},
	})

	tr.Update(42, above, ts(0))
	tr.Update(42, geom.Point{X: 55, Y: 60}, ts(0.5)) // same side, no event
	tr.Update(42, below, ts(2))
	tr.Update(42, above, ts(2.3)) // suppressed, no event

	if len(events) != 1 {
		t.Fatalf("callback fired %d times, want 1", len(events))
	}
	ev := events[0]
	if ev.TrackID != 42 {
		t.Errorf("event track = %d, want 42", ev.TrackID)
	}
	if ev.Direction != DirectionOut {
		t.Errorf("event direction = %v, want out", ev.Direction)
	}
	if ev.Position != below {
		t.Errorf("event position = %+v, want %+v", ev.Position, below)
	}
	if !ev.Timestamp.Equal(ts(2)) {
		t.Errorf("event timestamp = %v, want %v", ev.Timestamp, ts(2))
	}
}

func TestActiveTracksSnapshot(t *testing.T) {
	tr := newTestTracker(time.Second)

	tr.Update(1, above, ts(5))
	tr.Update(2, below, ts(6))

	snaps := tr.ActiveTracks()
	if len(snaps) != 2 {
		t.Fatalf("snapshots = %d, want 2", len(snaps))
	}
	byID := make(map[int64]TrackSnapshot)
	for _, s := range snaps {
		byID[s.ID] = s
	}
	if s := byID[1]; s.Side >= 0 {
		t.Errorf("track 1 side = %v, want negative", s.Side)
	}
	if s := byID[2]; s.Side <= 0 {
		t.Errorf("track 2 side = %v, want positive", s.Side)
	}
	if !byID[1].LastUpdate.Equal(ts(5)) {
		t.Errorf("track 1 stamp = %v, want %v", byID[1].LastUpdate, ts(5))
	}
}

func TestConcurrentUpdates(t *testing.T) {
	tr := newTestTracker(0)

	const workers = 16
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			tr.Update(id, above, ts(0))
			tr.Update(id, below, ts(1))
		}(int64(w))
	}
	wg.Wait()

	stats := tr.Statistics()
	if stats.Total != workers {
		t.Errorf("total = %d, want %d", stats.Total, workers)
	}
	if stats.CountOut != workers {
		t.Errorf("count out = %d, want %d", stats.CountOut, workers)
	}
	if stats.ActiveTracks != workers {
		t.Errorf("active tracks = %d, want %d", stats.ActiveTracks, workers)
	}
}

func TestDirectionJSON(t *testing.T) {
	b, err := json.Marshal(DirectionIn)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"in"` {
		t.Errorf("marshal in = %s, want \"in\"", b)
	}

	var d Direction
	if err := json.Unmarshal([]byte(`"out"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d != DirectionOut {
		t.Errorf("unmarshal out = %v, want DirectionOut", d)
	}

	if err := json.Unmarshal([]byte(`"sideways"`), &d); err == nil {
		t.Error("unmarshal of unknown direction did not fail")
	}
}

func TestAccessors(t *testing.T) {
	tr := newTestTracker(1500 * time.Millisecond)
	if got := tr.Line(); got != testLine {
		t.Errorf("Line() = %v, want %v", got, testLine)
	}
	if got := tr.Cooldown(); got != 1500*time.Millisecond {
		t.Errorf("Cooldown() = %v, want 1.5s", got)
	}
}
