// Package monitor keeps a rolling per-minute history of counted crossings
// and renders it as charts for the HTTP interface. Data preparation is
// separated from chart rendering so the bucketing logic stays testable
// without parsing HTML.
package monitor

import (
	"sync"
	"time"

	"github.com/roadtally/carcount/internal/linecount"
)

// DefaultHorizon is how much crossing history is retained.
const DefaultHorizon = 60 * time.Minute

type bucket struct {
	in  int64
	out int64
}

// History accumulates crossings into per-minute directional buckets over a
// bounded horizon. It is fed from the tracker's OnCrossing callback and
// read by the chart handlers, so all methods are safe for concurrent use.
type History struct {
	mu      sync.Mutex
	horizon time.Duration
	buckets map[int64]*bucket // unix minute -> counts
}

// NewHistory creates a History retaining the given horizon. Non-positive
// horizons fall back to DefaultHorizon.
func NewHistory(horizon time.Duration) *History {
	if horizon <= 0 {
		horizon = DefaultHorizon
	}
	return &History{
		horizon: horizon,
		buckets: make(map[int64]*bucket),
	}
}

// Add records a crossing into the bucket of its timestamp's minute and
// prunes buckets that have aged out of the horizon.
func (h *History) Add(c linecount.Crossing) {
	minute := c.Timestamp.Unix() / 60

	h.mu.Lock()
	defer h.mu.Unlock()

	b, ok := h.buckets[minute]
	if !ok {
		b = &bucket{}
		h.buckets[minute] = b
	}
	if c.Direction == linecount.DirectionIn {
		b.in++
	} else {
		b.out++
	}

	oldest := minute - int64(h.horizon/time.Minute)
	for m := range h.buckets {
		if m < oldest {
			delete(h.buckets, m)
		}
	}
}

// Series is chart-ready aligned per-minute data. Minutes are truncated to
// minute boundaries; In and Out have the same length as Minutes, with
// zeroes where nothing crossed.
type Series struct {
	Minutes []time.Time `json:"minutes"`
	In      []int64     `json:"in"`
	Out     []int64     `json:"out"`
}

// Series returns the history over the full horizon ending at now.
func (h *History) Series(now time.Time) Series {
	h.mu.Lock()
	defer h.mu.Unlock()

	last := now.Unix() / 60
	n := int(h.horizon / time.Minute)
	first := last - int64(n) + 1

	s := Series{
		Minutes: make([]time.Time, 0, n),
		In:      make([]int64, 0, n),
		Out:     make([]int64, 0, n),
	}
	for m := first; m <= last; m++ {
		s.Minutes = append(s.Minutes, time.Unix(m*60, 0))
		if b, ok := h.buckets[m]; ok {
			s.In = append(s.In, b.in)
			s.Out = append(s.Out, b.out)
		} else {
			s.In = append(s.In, 0)
			s.Out = append(s.Out, 0)
		}
	}
	return s
}

// Totals returns the in/out sums currently held in the history window.
func (h *History) Totals() (in, out int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, b := range h.buckets {
		in += b.in
		out += b.out
	}
	return in, out
}
