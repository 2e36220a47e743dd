package vision

import (
	"github.com/roadtally/carcount/internal/geom"
)

// Associator assigns stable track IDs to per-frame detections by nearest
// centroid. It is a deliberately simple stand-in for a real multi-object
// tracker: good enough for vehicles moving smoothly through a fixed scene,
// and the counter downstream trusts whatever IDs it produces either way.
type Associator struct {
	gate      float64 // max centroid distance for a match, in pixels
	maxMisses int     // frames a track may go unmatched before eviction

	nextID int64
	tracks map[int64]*assocTrack
}

type assocTrack struct {
	pos    geom.Point
	misses int
}

// Association defaults tuned on 1080p footage at 30fps.
const (
	DefaultGate      = 100.0
	DefaultMaxMisses = 15
)

// NewAssociator creates an associator. Non-positive parameters take the
// defaults.
func NewAssociator(gate float64, maxMisses int) *Associator {
	if gate <= 0 {
		gate = DefaultGate
	}
	if maxMisses <= 0 {
		maxMisses = DefaultMaxMisses
	}
	return &Associator{
		gate:      gate,
		maxMisses: maxMisses,
		tracks:    make(map[int64]*assocTrack),
	}
}

// Assign matches this frame's centroids against live tracks and returns
// one track ID per centroid, in input order. Unmatched centroids start new
// tracks with fresh monotonic IDs; tracks unmatched for more than the miss
// budget are evicted. IDs are never reused.
func (a *Associator) Assign(centroids []geom.Point) []int64 {
	ids := make([]int64, len(centroids))
	claimed := make(map[int64]bool, len(a.tracks))

	// Greedy nearest-track match, detections in input order. With a gate
	// far below typical vehicle spacing the assignment order does not
	// matter in practice.
	for i, c := range centroids {
		bestID := int64(-1)
		bestDist := a.gate
		for id, tr := range a.tracks {
			if claimed[id] {
				continue
			}
			if d := geom.Dist(c, tr.pos); d <= bestDist {
				bestDist = d
				bestID = id
			}
		}

		if bestID < 0 {
			bestID = a.nextID
			a.nextID++
			a.tracks[bestID] = &assocTrack{}
		}
		claimed[bestID] = true
		a.tracks[bestID].pos = c
		a.tracks[bestID].misses = 0
		ids[i] = bestID
	}

	var toRemove []int64
	for id, tr := range a.tracks {
		if claimed[id] {
			continue
		}
		tr.misses++
		if tr.misses > a.maxMisses {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range toRemove {
		delete(a.tracks, id)
	}

	return ids
}

// TrackCount returns the number of live tracks.
func (a *Associator) TrackCount() int {
	return len(a.tracks)
}
