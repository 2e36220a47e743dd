package detect

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/roadtally/carcount/internal/monitoring"
)

// UDPOptions configures a UDPSource.
type UDPOptions struct {
	// RcvBuf is the socket receive buffer size in bytes. Zero keeps the
	// OS default.
	RcvBuf int

	// Queue is the frame hand-off queue depth between the socket reader
	// and Next. Frames arriving while the queue is full are dropped and
	// counted. Zero means 64.
	Queue int

	// LogInterval is the cadence of ingest-rate log lines. Zero means
	// one minute.
	LogInterval time.Duration

	// Stats receives ingest counters. Nil installs a no-op collector.
	Stats StatsCollector
}

// UDPSource receives detection frames over UDP, one JSON frame per
// datagram. A background goroutine owns the socket; Next drains a buffered
// queue so a slow consumer drops frames instead of backing up the sender.
type UDPSource struct {
	conn   *net.UDPConn
	frames chan *Frame
	stats  StatsCollector

	closeOnce sync.Once
	done      chan struct{}

	mu      sync.Mutex
	dropped int64
}

// Datagram size limit. A frame with a few dozen detections is well under
// 64KB, the UDP maximum.
const maxDatagram = 65536

// OpenUDP binds the given address and starts receiving frames.
func OpenUDP(address string, opts UDPOptions) (*UDPSource, error) {
	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on UDP address: %w", err)
	}

	if opts.RcvBuf > 0 {
		if err := conn.SetReadBuffer(opts.RcvBuf); err != nil {
			monitoring.Logf("Warning: failed to set UDP receive buffer to %d: %v", opts.RcvBuf, err)
		}
	}

	queue := opts.Queue
	if queue <= 0 {
		queue = 64
	}
	stats := opts.Stats
	if stats == nil {
		stats = noopStats{}
	}
	logInterval := opts.LogInterval
	if logInterval == 0 {
		logInterval = time.Minute
	}

	s := &UDPSource{
		conn:   conn,
		frames: make(chan *Frame, queue),
		stats:  stats,
		done:   make(chan struct{}),
	}

	monitoring.Logf("UDP detection source listening on %s", conn.LocalAddr())
	go s.readLoop()
	go s.statsLoop(logInterval)
	return s, nil
}

func (s *UDPSource) readLoop() {
	defer close(s.frames)
	buf := make([]byte, maxDatagram)
	for {
		// Short read deadline so Close is noticed promptly.
		s.conn.SetReadDeadline(time.Now().Add(time.Second))
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				select {
				case <-s.done:
					return
				default:
					continue
				}
			}
			select {
			case <-s.done:
			default:
				monitoring.Logf("UDP read error: %v", err)
			}
			return
		}

		s.stats.AddFrame(n)
		frame, err := ParseFrame(buf[:n])
		if err != nil {
			s.stats.AddInvalid()
			monitoring.Diagf("dropping unparseable frame from %v: %v", addr, err)
			continue
		}
		s.stats.AddDetections(len(frame.Detections))

		select {
		case s.frames <- frame:
		default:
			// Consumer is behind; dropping beats unbounded queueing.
			s.mu.Lock()
			s.dropped++
			s.mu.Unlock()
		}
	}
}

func (s *UDPSource) statsLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.stats.LogStats()
			if n := s.Dropped(); n > 0 {
				monitoring.Logf("UDP detection source: %d frames dropped on hand-off", n)
			}
		}
	}
}

// Next returns the next received frame. It returns io.EOF after Close and
// ctx.Err if the context ends first.
func (s *UDPSource) Next(ctx context.Context) (*Frame, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case frame, ok := <-s.frames:
		if !ok {
			return nil, io.EOF
		}
		return frame, nil
	}
}

// Dropped returns the number of frames discarded because the consumer fell
// behind.
func (s *UDPSource) Dropped() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close stops the reader and releases the socket. A pending Next unblocks
// with io.EOF once the queue drains.
func (s *UDPSource) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}
