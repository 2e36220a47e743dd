// Package detect defines the detection frame model shared by every ingest
// path (file replay, UDP, serial, pcap replay, synthetic) and the Source
// interface the counting loop consumes.
//
// The wire format is NDJSON: one Frame object per line over file and
// serial transports, one Frame object per datagram over UDP.
package detect

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/roadtally/carcount/internal/geom"
)

// Detection is one tracked object observed in a frame. TrackID comes from
// the upstream tracker and is unique among currently live objects, but may
// be recycled after the object leaves the scene.
type Detection struct {
	TrackID    int64    `json:"track_id"`
	Box        geom.Box `json:"box"`
	Confidence float64  `json:"confidence,omitempty"`
	Class      string   `json:"class,omitempty"`
}

// Frame is one detector output cycle: zero or more detections stamped with
// the upstream clock.
type Frame struct {
	Seq        uint64      `json:"seq"`
	UnixNanos  int64       `json:"unix_nanos"`
	Detections []Detection `json:"detections"`
}

// Time returns the frame timestamp as a time.Time.
func (f *Frame) Time() time.Time {
	return time.Unix(0, f.UnixNanos)
}

// ParseFrame decodes and shape-checks one wire frame.
func ParseFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse frame JSON: %w", err)
	}
	for i, d := range f.Detections {
		if d.TrackID < 0 {
			return nil, fmt.Errorf("detection %d: negative track_id %d", i, d.TrackID)
		}
	}
	return &f, nil
}

// FilterDetections applies the class allowlist and confidence floor. An
// empty class list disables class filtering. Detections that carry no
// confidence value pass only when minConfidence is zero.
func FilterDetections(dets []Detection, classes []string, minConfidence float64) []Detection {
	var allow map[string]bool
	if len(classes) > 0 {
		allow = make(map[string]bool, len(classes))
		for _, c := range classes {
			allow[strings.ToLower(c)] = true
		}
	}

	out := make([]Detection, 0, len(dets))
	for _, d := range dets {
		if d.Confidence < minConfidence {
			continue
		}
		if allow != nil && !allow[strings.ToLower(d.Class)] {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Source delivers detection frames in arrival order. Next returns io.EOF
// when the stream is exhausted; for unbounded transports (UDP, serial)
// Close unblocks a pending Next.
type Source interface {
	Next(ctx context.Context) (*Frame, error)
	Close() error
}
