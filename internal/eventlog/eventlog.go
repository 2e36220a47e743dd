// Package eventlog records counted crossings and periodic statistics
// snapshots to an NDJSON log, one record per line, gzip-compressed when the
// filename ends in .gz. Logs are write-only run artifacts: nothing in the
// counting pipeline ever reloads one as state, but the count-report tool
// and tests read them back for offline analysis.
package eventlog

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/roadtally/carcount/internal/fsutil"
	"github.com/roadtally/carcount/internal/geom"
	"github.com/roadtally/carcount/internal/linecount"
)

// Format version written into every log header.
const Version = "1.0"

// Header is the first record of every log: enough context to interpret the
// crossings that follow without the originating config file.
type Header struct {
	Version   string    `json:"version"`
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	Line      geom.Line `json:"line"`
	Cooldown  string    `json:"cooldown"` // duration string like "1s"
}

// Record is one log line. Exactly one of the payload fields is set,
// selected by Type.
type Record struct {
	Type     string              `json:"type"` // "header", "crossing" or "stats"
	Header   *Header             `json:"header,omitempty"`
	Crossing *linecount.Crossing `json:"crossing,omitempty"`
	Stats    *linecount.Stats    `json:"stats,omitempty"`
}

// Recorder appends records to a log file.
type Recorder struct {
	mu     sync.Mutex
	file   io.WriteCloser
	gz     *gzip.Writer
	buf    *bufio.Writer
	closed bool
}

// NewRecorder creates the log file and writes the header record, creating
// parent directories as needed. The filesystem is injected so tests can
// record into memory.
func NewRecorder(fs fsutil.FileSystem, path string, header Header) (*Recorder, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create event log directory: %w", err)
		}
	}
	f, err := fs.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}

	r := &Recorder{file: f}
	var w io.Writer = f
	if strings.HasSuffix(path, ".gz") {
		r.gz = gzip.NewWriter(f)
		w = r.gz
	}
	r.buf = bufio.NewWriter(w)

	header.Version = Version
	if err := r.write(Record{Type: "header", Header: &header}); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func (r *Recorder) write(rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return fmt.Errorf("event log is closed")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode event record: %w", err)
	}
	if _, err := r.buf.Write(data); err != nil {
		return fmt.Errorf("failed to write event record: %w", err)
	}
	return r.buf.WriteByte('\n')
}

// RecordCrossing appends a counted crossing.
func (r *Recorder) RecordCrossing(c linecount.Crossing) error {
	return r.write(Record{Type: "crossing", Crossing: &c})
}

// RecordStats appends a statistics snapshot.
func (r *Recorder) RecordStats(s linecount.Stats) error {
	return r.write(Record{Type: "stats", Stats: &s})
}

// Close flushes buffered records and closes the file. Safe to call twice.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	if err := r.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush event log: %w", err)
	}
	if r.gz != nil {
		if err := r.gz.Close(); err != nil {
			return fmt.Errorf("failed to finish event log gzip stream: %w", err)
		}
	}
	return r.file.Close()
}

// Reader iterates the records of a log.
type Reader struct {
	file    io.Closer
	gz      *gzip.Reader
	scanner *bufio.Scanner
	header  Header
	line    int
}

// OpenReader opens a log and consumes its header record.
func OpenReader(fs fsutil.FileSystem, path string) (*Reader, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}

	r := &Reader{file: f}
	var rd io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(rd)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to open gzip event log: %w", err)
		}
		r.gz = gz
		rd = gz
	}
	r.scanner = bufio.NewScanner(rd)
	r.scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	rec, err := r.Next()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read event log header: %w", err)
	}
	if rec.Type != "header" || rec.Header == nil {
		f.Close()
		return nil, fmt.Errorf("event log does not start with a header record")
	}
	r.header = *rec.Header
	return r, nil
}

// Header returns the log's header record.
func (r *Reader) Header() Header { return r.header }

// Next returns the next record, or io.EOF at the end of the log.
func (r *Reader) Next() (*Record, error) {
	for {
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return nil, fmt.Errorf("failed to read event log: %w", err)
			}
			return nil, io.EOF
		}
		r.line++
		data := r.scanner.Bytes()
		if len(data) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("event log line %d: %w", r.line, err)
		}
		return &rec, nil
	}
}

// Crossings reads all remaining crossing records, skipping stats snapshots.
func (r *Reader) Crossings() ([]linecount.Crossing, error) {
	var out []linecount.Crossing
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		if rec.Type == "crossing" && rec.Crossing != nil {
			out = append(out, *rec.Crossing)
		}
	}
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	if r.gz != nil {
		r.gz.Close()
	}
	return r.file.Close()
}
