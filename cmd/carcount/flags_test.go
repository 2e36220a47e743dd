package main

import (
	"flag"
	"testing"
	"time"

	"github.com/roadtally/carcount/internal/detect"
)

// The source flags are mutually exclusive; this mirrors the count check in
// main.
func sourceCount(video, replay, udp, serial, pcap string, synth bool) int {
	n := 0
	for _, set := range []bool{video != "", replay != "", udp != "", serial != "", pcap != "", synth} {
		if set {
			n++
		}
	}
	return n
}

func TestSourceMutualExclusion(t *testing.T) {
	tests := []struct {
		name   string
		video  string
		replay string
		udp    string
		synth  bool
		want   int
	}{
		{name: "none selected", want: 0},
		{name: "one selected", replay: "run.ndjson", want: 1},
		{name: "two selected", video: "clip.mp4", synth: true, want: 2},
		{name: "three selected", video: "clip.mp4", udp: ":5005", synth: true, want: 3},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := sourceCount(tc.video, tc.replay, tc.udp, "", "", tc.synth)
			if got != tc.want {
				t.Errorf("sourceCount = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestFlagDefaults(t *testing.T) {
	if *listen != ":8080" {
		t.Errorf("listen default = %q, want :8080", *listen)
	}
	if *serialBaud != detect.DefaultBaudRate {
		t.Errorf("baud default = %d, want %d", *serialBaud, detect.DefaultBaudRate)
	}
	if *replaySpeed != 1.0 {
		t.Errorf("speed default = %v, want 1.0", *replaySpeed)
	}
	if *statsInterval != time.Minute {
		t.Errorf("stats-interval default = %v, want 1m", *statsInterval)
	}
	if *cooldown != 0 {
		t.Errorf("cooldown default = %v, want 0 (use config)", *cooldown)
	}
	if *verbose || *trace {
		t.Error("verbosity flags default to off")
	}
}

func TestFlagParsing(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	lineArg := fs.String("line", "", "")
	cooldownArg := fs.Duration("cooldown", 0, "")

	if err := fs.Parse([]string{"--line=0.1,0.5,0.9,0.5", "--cooldown=2s"}); err != nil {
		t.Fatalf("failed to parse flags: %v", err)
	}
	if *lineArg != "0.1,0.5,0.9,0.5" {
		t.Errorf("line = %q", *lineArg)
	}
	if *cooldownArg != 2*time.Second {
		t.Errorf("cooldown = %v, want 2s", *cooldownArg)
	}
}
