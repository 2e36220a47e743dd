package detect

import (
	"bufio"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/roadtally/carcount/internal/monitoring"
)

// FileOptions controls how a recorded detection log is replayed.
type FileOptions struct {
	// Realtime makes Next honor the recorded inter-frame gaps instead of
	// returning frames as fast as they parse.
	Realtime bool

	// Speed scales realtime replay (2.0 = twice as fast). Values <= 0
	// fall back to 1.0. Ignored unless Realtime is set.
	Speed float64
}

// FileSource replays an NDJSON detection log, transparently decompressing
// files with a .gz suffix.
type FileSource struct {
	file    *os.File
	gz      *gzip.Reader
	scanner *bufio.Scanner
	opts    FileOptions

	line      int
	prevNanos int64
}

// Max line size for a single frame record. A frame with a few hundred
// detections stays far below this.
const maxFrameLine = 8 * 1024 * 1024

// OpenFile opens a detection log for replay.
func OpenFile(path string, opts FileOptions) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open detection log: %w", err)
	}

	src := &FileSource{file: f, opts: opts}
	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to open gzip detection log: %w", err)
		}
		src.gz = gz
		r = gz
	}

	src.scanner = bufio.NewScanner(r)
	src.scanner.Buffer(make([]byte, 0, 64*1024), maxFrameLine)

	if opts.Realtime {
		speed := opts.Speed
		if speed <= 0 {
			speed = 1.0
		}
		src.opts.Speed = speed
		monitoring.Logf("Replaying %s in realtime (speed %.1fx)", path, speed)
	}
	return src, nil
}

// Next returns the next recorded frame, pacing by the recorded timestamps
// when realtime replay is enabled. Returns io.EOF at the end of the log.
func (s *FileSource) Next(ctx context.Context) (*Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, fmt.Errorf("failed to read detection log: %w", err)
			}
			return nil, io.EOF
		}
		s.line++

		data := s.scanner.Bytes()
		if len(data) == 0 {
			continue
		}

		frame, err := ParseFrame(data)
		if err != nil {
			return nil, fmt.Errorf("detection log line %d: %w", s.line, err)
		}

		if s.opts.Realtime && s.prevNanos > 0 {
			delay := time.Duration(float64(frame.UnixNanos-s.prevNanos) / s.opts.Speed)
			if delay > 0 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(delay):
				}
			}
		}
		s.prevNanos = frame.UnixNanos

		return frame, nil
	}
}

// Close releases the underlying file.
func (s *FileSource) Close() error {
	if s.gz != nil {
		s.gz.Close()
	}
	return s.file.Close()
}
