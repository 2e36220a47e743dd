//go:build pcap
// +build pcap

package detect

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/roadtally/carcount/internal/monitoring"
)

// PcapSource replays captured UDP detection traffic from a pcap file,
// respecting the original packet timing scaled by a speed multiplier.
type PcapSource struct {
	handle *pcap.Handle
	source *gopacket.PacketSource
	speed  float64
	stats  StatsCollector

	packets     int
	lastCapture time.Time
}

// OpenPcap opens a capture file and filters it to UDP traffic on the given
// port. speed 1.0 replays in real time; 0 or less means 1.0.
func OpenPcap(path string, udpPort int, speed float64, stats StatsCollector) (*PcapSource, error) {
	if speed <= 0 {
		speed = 1.0
	}
	if stats == nil {
		stats = noopStats{}
	}

	handle, err := pcap.OpenOffline(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open pcap file %s: %w", path, err)
	}

	filter := fmt.Sprintf("udp port %d", udpPort)
	if err := handle.SetBPFFilter(filter); err != nil {
		handle.Close()
		return nil, fmt.Errorf("failed to set BPF filter %q: %w", filter, err)
	}
	monitoring.Logf("Pcap replay: %s, filter %q, speed %.1fx", path, filter, speed)

	return &PcapSource{
		handle: handle,
		source: gopacket.NewPacketSource(handle, handle.LinkType()),
		speed:  speed,
		stats:  stats,
	}, nil
}

// Next returns the next captured frame, sleeping between packets to match
// the capture timing. Non-UDP packets and unparseable payloads are skipped.
// Returns io.EOF at the end of the capture.
func (s *PcapSource) Next(ctx context.Context) (*Frame, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		packet, err := s.source.NextPacket()
		if err == io.EOF {
			monitoring.Logf("Pcap replay complete: %d packets", s.packets)
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read pcap packet: %w", err)
		}
		s.packets++

		captureTime := packet.Metadata().Timestamp
		if !s.lastCapture.IsZero() {
			delay := time.Duration(float64(captureTime.Sub(s.lastCapture)) / s.speed)
			if delay > 0 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(delay):
				}
			}
		}
		s.lastCapture = captureTime

		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp, ok := udpLayer.(*layers.UDP)
		if !ok || len(udp.Payload) == 0 {
			continue
		}

		s.stats.AddFrame(len(udp.Payload))
		frame, err := ParseFrame(udp.Payload)
		if err != nil {
			s.stats.AddInvalid()
			monitoring.Diagf("pcap packet %d: unparseable frame: %v", s.packets, err)
			continue
		}
		s.stats.AddDetections(len(frame.Detections))
		return frame, nil
	}
}

// Close releases the capture handle.
func (s *PcapSource) Close() error {
	s.handle.Close()
	return nil
}
