// Package vision is the on-box video pipeline: YOLO inference via OpenCV,
// raw output decoding, and a small nearest-centroid associator that gives
// detections stable track IDs before they reach the counter. The decode
// and association logic is pure Go and compiled unconditionally; only the
// capture/inference/overlay glue needs OpenCV and sits behind the video
// build tag.
package vision

import (
	"sort"

	"github.com/roadtally/carcount/internal/geom"
)

// RawDetection is one decoded YOLO output row, scaled to frame pixels.
type RawDetection struct {
	Box        geom.Box
	Confidence float64
	ClassID    int
}

// DecodeYOLO converts raw network output rows into detections. Each row is
// [cx, cy, w, h, objectness, class scores...] with coordinates normalized
// to the input square; boxes are scaled to the frame size. Rows whose
// combined confidence (objectness times best class score) falls below
// minConf are dropped.
func DecodeYOLO(rows [][]float32, frameW, frameH int, minConf float64) []RawDetection {
	var out []RawDetection
	fw := float64(frameW)
	fh := float64(frameH)

	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		objectness := float64(row[4])

		classID := 0
		best := float64(row[5])
		for i := 6; i < len(row); i++ {
			if v := float64(row[i]); v > best {
				best = v
				classID = i - 5
			}
		}

		conf := objectness * best
		if conf < minConf {
			continue
		}

		cx := float64(row[0]) * fw
		cy := float64(row[1]) * fh
		w := float64(row[2]) * fw
		h := float64(row[3]) * fh

		out = append(out, RawDetection{
			Box: geom.Box{
				X1: cx - w/2,
				Y1: cy - h/2,
				X2: cx + w/2,
				Y2: cy + h/2,
			},
			Confidence: conf,
			ClassID:    classID,
		})
	}
	return out
}

// IoU returns the intersection-over-union of two boxes.
func IoU(a, b geom.Box) float64 {
	ix1 := max(a.X1, b.X1)
	iy1 := max(a.Y1, b.Y1)
	ix2 := min(a.X2, b.X2)
	iy2 := min(a.Y2, b.Y2)

	iw := ix2 - ix1
	ih := iy2 - iy1
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// NonMaxSuppression greedily keeps the highest-confidence detection and
// discards any remaining detection overlapping it beyond iouThreshold.
// Suppression is class-agnostic: overlapping boxes of different vehicle
// classes are nearly always the same vehicle.
func NonMaxSuppression(dets []RawDetection, iouThreshold float64) []RawDetection {
	if len(dets) <= 1 {
		return dets
	}

	sorted := make([]RawDetection, len(dets))
	copy(sorted, dets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	var kept []RawDetection
	suppressed := make([]bool, len(sorted))
	for i := range sorted {
		if suppressed[i] {
			continue
		}
		kept = append(kept, sorted[i])
		for j := i + 1; j < len(sorted); j++ {
			if !suppressed[j] && IoU(sorted[i].Box, sorted[j].Box) > iouThreshold {
				suppressed[j] = true
			}
		}
	}
	return kept
}
