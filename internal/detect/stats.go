package detect

import (
	"sync"
	"time"

	"github.com/roadtally/carcount/internal/monitoring"
)

// StatsCollector receives ingest counters from a Source.
type StatsCollector interface {
	AddFrame(bytes int)
	AddDetections(count int)
	AddInvalid()
	LogStats()
}

// FrameStats tracks ingest statistics with thread-safe operations.
type FrameStats struct {
	mu             sync.Mutex
	frameCount     int64
	byteCount      int64
	detectionCount int64
	invalidCount   int64
	lastReset      time.Time
	startTime      time.Time
}

// NewFrameStats creates a new FrameStats instance.
func NewFrameStats() *FrameStats {
	now := time.Now()
	return &FrameStats{
		lastReset: now,
		startTime: now,
	}
}

// AddFrame increments the frame and byte counters.
func (s *FrameStats) AddFrame(bytes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frameCount++
	s.byteCount += int64(bytes)
}

// AddDetections adds to the detection counter.
func (s *FrameStats) AddDetections(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detectionCount += int64(count)
}

// AddInvalid increments the unparseable-frame counter.
func (s *FrameStats) AddInvalid() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidCount++
}

// GetAndReset returns the counters accumulated since the last reset and
// zeroes them.
func (s *FrameStats) GetAndReset() (frames, bytes, detections, invalid int64, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	duration = now.Sub(s.lastReset)
	frames = s.frameCount
	bytes = s.byteCount
	detections = s.detectionCount
	invalid = s.invalidCount

	s.frameCount = 0
	s.byteCount = 0
	s.detectionCount = 0
	s.invalidCount = 0
	s.lastReset = now

	return
}

// LogStats emits a rate summary for the interval since the last call.
// Quiet intervals with no traffic log nothing.
func (s *FrameStats) LogStats() {
	frames, bytes, detections, invalid, duration := s.GetAndReset()
	if frames == 0 && invalid == 0 {
		return
	}
	secs := duration.Seconds()
	if secs <= 0 {
		return
	}

	monitoring.Logf("Detection ingest (/sec): %.1f frames, %.1f detections, %.1f KB",
		float64(frames)/secs, float64(detections)/secs, float64(bytes)/secs/1024)
	if invalid > 0 {
		monitoring.Logf("Detection ingest: %d unparseable frames dropped", invalid)
	}
}

// Uptime returns the time since the stats were created.
func (s *FrameStats) Uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.startTime)
}

// noopStats is a StatsCollector that does nothing, used as a safe default
// when no collector is supplied.
type noopStats struct{}

func (noopStats) AddFrame(bytes int)      {}
func (noopStats) AddDetections(count int) {}
func (noopStats) AddInvalid()             {}
func (noopStats) LogStats()               {}
