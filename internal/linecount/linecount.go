// Package linecount implements directional counting of tracked objects
// crossing an oriented line. It consumes per-frame (track ID, centroid,
// timestamp) observations from an upstream detector, decides when an object
// has genuinely crossed, attributes a direction, deduplicates repeat
// triggers from the same track with a cooldown window, and evicts tracks
// that have gone stale.
package linecount

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/roadtally/carcount/internal/geom"
	"github.com/roadtally/carcount/internal/timeutil"
)

// DefaultCooldown is the minimum gap after a counted crossing before the
// same track may count again, matching the roadside deployment this was
// tuned on. The stale-eviction age lives with the rest of the runtime
// defaults in the config package.
const DefaultCooldown = time.Second

// Direction identifies which way a track crossed the counting line,
// relative to the line's orientation.
type Direction int

const (
	// DirectionIn is a crossing from the positive to the negative side.
	DirectionIn Direction = 1
	// DirectionOut is a crossing from the negative to the positive side.
	DirectionOut Direction = -1
)

func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "in"
	case DirectionOut:
		return "out"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the direction as its string form.
func (d Direction) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes "in" or "out".
func (d *Direction) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "in":
		*d = DirectionIn
	case "out":
		*d = DirectionOut
	default:
		return fmt.Errorf("unknown direction %q", s)
	}
	return nil
}

// Crossing describes a single counted line crossing.
type Crossing struct {
	TrackID   int64      `json:"track_id"`
	Direction Direction  `json:"direction"`
	Position  geom.Point `json:"position"`
	Timestamp time.Time  `json:"timestamp"`
}

// Config holds tracker construction parameters.
type Config struct {
	// Line is the counting line, fixed for the tracker's lifetime. Its
	// orientation decides which crossing direction is "in". Must have
	// positive length; a zero-length line reports side 0 everywhere and
	// silently counts nothing.
	Line geom.Line

	// Cooldown is the minimum time since a track's last counted-eligible
	// event (first sight or counted crossing) before a crossing may be
	// counted for it. Zero disables deduplication entirely.
	Cooldown time.Duration

	// Clock supplies session time for Statistics and Reset. Nil means
	// real wall-clock time. Update timestamps are independent of this
	// clock and may run on video time.
	Clock timeutil.Clock

	// OnCrossing, when set, is invoked outside the tracker lock after
	// every counted crossing. The callback must not call back into the
	// tracker's write operations.
	OnCrossing func(Crossing)
}

// DefaultConfig returns a configuration for the given line with the stock
// cooldown.
func DefaultConfig(line geom.Line) Config {
	return Config{
		Line:     line,
		Cooldown: DefaultCooldown,
	}
}

// trackState is the per-track record: the last observed side of the line
// and the stamp of the last counted-eligible event. Ordinary observations
// refresh the side but never the stamp.
type trackState struct {
	lastSide   float64
	lastUpdate time.Time
}

// Tracker maintains per-track crossing state and the authoritative
// directional counters for one counting line.
type Tracker struct {
	mu sync.RWMutex

	line       geom.Line
	cooldown   time.Duration
	clock      timeutil.Clock
	onCrossing func(Crossing)

	tracks       map[int64]*trackState
	countIn      int64
	countOut     int64
	sessionStart time.Time
}

// New creates a tracker from the given configuration.
func New(cfg Config) *Tracker {
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Tracker{
		line:         cfg.Line,
		cooldown:     cfg.Cooldown,
		clock:        clock,
		onCrossing:   cfg.OnCrossing,
		tracks:       make(map[int64]*trackState),
		sessionStart: clock.Now(),
	}
}

// Update records one observation of a track and reports whether that
// observation completed a counted crossing. Observations for a track must
// arrive with non-decreasing timestamps; coordinates must be finite.
// Safe for concurrent use.
func (t *Tracker) Update(trackID int64, centroid geom.Point, ts time.Time) bool {
	t.mu.Lock()
	crossing, counted := t.updateLocked(trackID, centroid, ts)
	t.mu.Unlock()

	if counted && t.onCrossing != nil {
		t.onCrossing(crossing)
	}
	return counted
}

func (t *Tracker) updateLocked(trackID int64, centroid geom.Point, ts time.Time) (Crossing, bool) {
	curSide := t.line.Side(centroid)

	// Step 1: first observation has no prior side to compare against.
	state, ok := t.tracks[trackID]
	if !ok {
		t.tracks[trackID] = &trackState{lastSide: curSide, lastUpdate: ts}
		return Crossing{}, false
	}

	// Step 2: inside the cooldown window the position is followed but the
	// stamp is frozen. The window is measured from the last counted
	// crossing (or first sight), so a track that crossed recently stays
	// suppressed until the full window has passed from that event, no
	// matter how often it reports in between.
	if ts.Sub(state.lastUpdate) < t.cooldown {
		state.lastSide = curSide
		return Crossing{}, false
	}

	// Step 3: cooldown elapsed; a sign change between the stored and the
	// current side is a counted crossing.
	if geom.Crossed(state.lastSide, curSide) {
		dir := Direction(geom.DirectionSign(state.lastSide, curSide))
		if dir == DirectionIn {
			t.countIn++
		} else {
			t.countOut++
		}
		state.lastSide = curSide
		state.lastUpdate = ts
		return Crossing{
			TrackID:   trackID,
			Direction: dir,
			Position:  centroid,
			Timestamp: ts,
		}, true
	}

	// Step 4: no crossing. Only the side moves; the stamp advances solely
	// on first sight and counted crossings.
	state.lastSide = curSide
	return Crossing{}, false
}

// CleanupStale removes every track whose stamp is older than maxAge
// relative to now, returning the number removed. Safe on an empty tracker;
// counters are never touched. A removed ID that reappears later is treated
// as a brand-new track.
func (t *Tracker) CleanupStale(now time.Time, maxAge time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var toRemove []int64
	for id, state := range t.tracks {
		if now.Sub(state.lastUpdate) > maxAge {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range toRemove {
		delete(t.tracks, id)
	}
	return len(toRemove)
}

// Stats is a point-in-time summary of the counting session.
type Stats struct {
	CountIn        int64   `json:"count_in"`
	CountOut       int64   `json:"count_out"`
	Total          int64   `json:"total"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	RatePerMinute  float64 `json:"rate_per_minute"`
	ActiveTracks   int     `json:"active_tracks"`
}

// Statistics returns current counters and rates. Total is recomputed from
// the two directional counters, never stored. Elapsed time comes from the
// session clock, independent of the timestamps fed to Update.
func (t *Tracker) Statistics() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	total := t.countIn + t.countOut
	elapsed := t.clock.Since(t.sessionStart).Seconds()
	var rate float64
	if elapsed > 0 {
		rate = float64(total) / elapsed * 60
	}
	return Stats{
		CountIn:        t.countIn,
		CountOut:       t.countOut,
		Total:          total,
		ElapsedSeconds: elapsed,
		RatePerMinute:  rate,
		ActiveTracks:   len(t.tracks),
	}
}

// Reset zeroes both counters, clears all track state and restamps the
// session start.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.countIn = 0
	t.countOut = 0
	t.tracks = make(map[int64]*trackState)
	t.sessionStart = t.clock.Now()
}

// TrackSnapshot is a read-only copy of one live track's state.
type TrackSnapshot struct {
	ID         int64     `json:"id"`
	Side       float64   `json:"side"`
	LastUpdate time.Time `json:"last_update"`
}

// ActiveTracks returns snapshots of all live tracks, in no particular
// order.
func (t *Tracker) ActiveTracks() []TrackSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]TrackSnapshot, 0, len(t.tracks))
	for id, state := range t.tracks {
		out = append(out, TrackSnapshot{
			ID:         id,
			Side:       state.lastSide,
			LastUpdate: state.lastUpdate,
		})
	}
	return out
}

// Line returns the counting line.
func (t *Tracker) Line() geom.Line { return t.line }

// Cooldown returns the configured cooldown window.
func (t *Tracker) Cooldown() time.Duration { return t.cooldown }
