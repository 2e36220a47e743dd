package detect

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"go.bug.st/serial"

	"github.com/roadtally/carcount/internal/monitoring"
)

// DefaultBaudRate matches the detection boards this was developed against
// (8 data bits, no parity, one stop bit).
const DefaultBaudRate = 115200

// SerialSource reads NDJSON detection frames from a serial port. The port
// is abstracted to an io.ReadCloser so tests can feed canned bytes without
// hardware.
type SerialSource struct {
	port    io.ReadCloser
	scanner *bufio.Scanner
	stats   StatsCollector
}

// OpenSerial opens the named serial port at the given baud rate and reads
// frames from it. A non-positive baud falls back to DefaultBaudRate.
func OpenSerial(portName string, baud int) (*SerialSource, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	monitoring.Logf("Serial detection source on %s at %d baud", portName, baud)
	return NewSerialSource(port, nil), nil
}

// NewSerialSource wraps an already-open port (or any reader in tests).
// A nil stats collector is replaced with a no-op one.
func NewSerialSource(port io.ReadCloser, stats StatsCollector) *SerialSource {
	if stats == nil {
		stats = noopStats{}
	}
	scanner := bufio.NewScanner(port)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameLine)
	return &SerialSource{
		port:    port,
		scanner: scanner,
		stats:   stats,
	}
}

// Next returns the next frame from the port. Lines that fail to parse are
// counted and skipped rather than failing the stream: serial links garble
// the occasional line and recover on the next newline. Returns io.EOF when
// the port closes. The underlying read does not honor ctx; Close unblocks
// a pending Next.
func (s *SerialSource) Next(ctx context.Context) (*Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return nil, fmt.Errorf("failed to read from serial port: %w", err)
			}
			return nil, io.EOF
		}

		data := s.scanner.Bytes()
		if len(data) == 0 {
			continue
		}
		s.stats.AddFrame(len(data))

		frame, err := ParseFrame(data)
		if err != nil {
			s.stats.AddInvalid()
			monitoring.Diagf("dropping garbled serial frame: %v", err)
			continue
		}
		s.stats.AddDetections(len(frame.Detections))
		return frame, nil
	}
}

// Close closes the serial port.
func (s *SerialSource) Close() error {
	return s.port.Close()
}
