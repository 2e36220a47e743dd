//go:build !pcap
// +build !pcap

package detect

import (
	"context"
	"fmt"
)

// PcapSource replays captured UDP detection traffic. This stub is compiled
// when pcap support is disabled.
type PcapSource struct{}

// Next is never reachable: OpenPcap fails before a stub source exists.
func (s *PcapSource) Next(ctx context.Context) (*Frame, error) {
	return nil, fmt.Errorf("pcap support not enabled")
}

// Close implements Source.
func (s *PcapSource) Close() error { return nil }

// OpenPcap is a stub when pcap support is disabled. Build with -tags=pcap
// to enable replay of capture files.
func OpenPcap(path string, udpPort int, speed float64, stats StatsCollector) (*PcapSource, error) {
	return nil, fmt.Errorf("pcap support not enabled: rebuild with -tags=pcap to replay capture files")
}
