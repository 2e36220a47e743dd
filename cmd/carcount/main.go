// Command carcount counts vehicles crossing a virtual line. Detections
// come from exactly one source per run: the on-box video pipeline, a
// recorded detection log, a UDP or serial feed, a pcap capture, or the
// synthetic generator. Counting state is served over HTTP while the run
// is live and optionally recorded to an event log.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/roadtally/carcount/internal/api"
	"github.com/roadtally/carcount/internal/config"
	"github.com/roadtally/carcount/internal/detect"
	"github.com/roadtally/carcount/internal/eventlog"
	"github.com/roadtally/carcount/internal/fsutil"
	"github.com/roadtally/carcount/internal/linecount"
	"github.com/roadtally/carcount/internal/monitor"
	"github.com/roadtally/carcount/internal/monitoring"
	"github.com/roadtally/carcount/internal/units"
	"github.com/roadtally/carcount/internal/vision"
)

var (
	configPath = flag.String("config", "", "path to JSON config file")
	listen     = flag.String("listen", ":8080", "HTTP listen address (empty disables the server)")
	lineFlag   = flag.String("line", "", "counting line as x1,y1,x2,y2 (values in 0..1 are frame-relative)")
	cooldown   = flag.Duration("cooldown", 0, "crossing cooldown (overrides config when set)")
	eventLog   = flag.String("event-log", "", "record crossings to this NDJSON file (.gz compresses)")

	videoInput = flag.String("video", "", "video file or capture device index (requires -tags=video)")
	replayPath = flag.String("replay", "", "replay a recorded detection log (NDJSON, .gz supported)")
	udpAddr    = flag.String("udp", "", "receive detection frames on this UDP address, e.g. :5005")
	serialPort = flag.String("serial", "", "read detection frames from this serial port")
	pcapPath   = flag.String("pcap", "", "replay detection traffic from a pcap file (requires -tags=pcap)")
	synthetic  = flag.Bool("synthetic", false, "generate synthetic traffic (demo mode)")

	serialBaud  = flag.Int("baud", detect.DefaultBaudRate, "serial baud rate")
	pcapPort    = flag.Int("pcap-port", 5005, "UDP port to filter in pcap replay")
	replaySpeed = flag.Float64("speed", 1.0, "replay speed multiplier for -replay and -pcap")
	realtime    = flag.Bool("realtime", false, "pace -replay by recorded timestamps")
	synthRate   = flag.Float64("synth-rate", 20, "synthetic vehicles per minute")

	weights     = flag.String("weights", "yolov4.weights", "YOLO weights file (video mode)")
	modelConfig = flag.String("model-config", "yolov4.cfg", "YOLO network config file (video mode)")
	namesPath   = flag.String("names", "coco.names", "class names file (video mode)")
	inputSize   = flag.Int("input-size", 416, "network input square size (video mode)")
	useCUDA     = flag.Bool("cuda", false, "prefer the CUDA backend (video mode)")
	outputVideo = flag.String("output", "", "write annotated video to this file (video mode)")

	verbose     = flag.Bool("verbose", false, "log periodic diagnostics")
	trace       = flag.Bool("trace", false, "log per-frame telemetry (very noisy)")
	showVersion = flag.Bool("version", false, "print version and exit")

	statsInterval = flag.Duration("stats-interval", time.Minute, "cadence of periodic stats log lines")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(versionString())
		return
	}

	var diagW, traceW io.Writer
	if *verbose || *trace {
		diagW = os.Stderr
	}
	if *trace {
		traceW = os.Stderr
	}
	monitoring.SetStreamWriters(monitoring.StreamWriters{
		Ops:   os.Stderr,
		Diag:  diagW,
		Trace: traceW,
	})

	cfg := config.Empty()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	lineSpec := cfg.GetLine()
	if *lineFlag != "" {
		var err error
		lineSpec, err = config.ParseLineSpec(*lineFlag)
		if err != nil {
			log.Fatalf("invalid -line: %v", err)
		}
	}
	if err := lineSpec.Validate(); err != nil {
		log.Fatalf("invalid counting line: %v", err)
	}

	cool := cfg.GetCooldown()
	if *cooldown > 0 {
		cool = *cooldown
	}

	width, height := cfg.GetFrameSize()
	line := lineSpec.Resolve(width, height)

	sources := 0
	for _, set := range []bool{*videoInput != "", *replayPath != "", *udpAddr != "", *serialPort != "", *pcapPath != "", *synthetic} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		log.Fatalf("exactly one of -video, -replay, -udp, -serial, -pcap or -synthetic is required (got %d)", sources)
	}

	runID := uuid.NewString()
	monitoring.Logf("carcount %s starting: run %s, line %s, cooldown %v", versionString(), runID, line, cool)

	var recorder *eventlog.Recorder
	if *eventLog != "" {
		var err error
		recorder, err = eventlog.NewRecorder(fsutil.OSFileSystem{}, *eventLog, eventlog.Header{
			RunID:     runID,
			StartedAt: time.Now(),
			Line:      line,
			Cooldown:  cool.String(),
		})
		if err != nil {
			log.Fatalf("failed to open event log: %v", err)
		}
		defer recorder.Close()
		monitoring.Logf("Recording crossings to %s", *eventLog)
	}

	history := monitor.NewHistory(0)

	trackerCfg := linecount.Config{
		Line:     line,
		Cooldown: cool,
		OnCrossing: func(c linecount.Crossing) {
			history.Add(c)
			monitoring.Diagf("crossing: track %d %s at (%.0f,%.0f)",
				c.TrackID, c.Direction, c.Position.X, c.Position.Y)
			if recorder != nil {
				if err := recorder.RecordCrossing(c); err != nil {
					monitoring.Logf("failed to record crossing: %v", err)
				}
			}
		},
	}
	tracker := linecount.New(trackerCfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup

	// Counting goroutine: either the video pipeline or a detection-frame
	// source loop. The run winds down when the source ends.
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer stop()

		if *videoInput != "" {
			opts := vision.Options{
				Input:         *videoInput,
				Output:        *outputVideo,
				Weights:       *weights,
				ModelConfig:   *modelConfig,
				Names:         *namesPath,
				InputSize:     *inputSize,
				UseCUDA:       *useCUDA,
				SkipFrames:    cfg.GetSkipFrames(),
				MinConfidence: cfg.GetMinConfidence(),
				Classes:       cfg.GetClasses(),
			}
			if err := vision.RunVideo(ctx, opts, tracker, line, cfg.GetStaleAfter()); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("video pipeline failed: %v", err)
			}
			return
		}

		src, err := openSource()
		if err != nil {
			log.Printf("failed to open detection source: %v", err)
			return
		}
		defer src.Close()

		if err := runSource(ctx, src, cfg, tracker); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("detection source failed: %v", err)
		}
	}()

	// Periodic stats logging on the wall clock.
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(*statsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s := tracker.Statistics()
				monitoring.Logf("Counts: in=%d out=%d total=%d (%.1f/min, %s), %d live tracks",
					s.CountIn, s.CountOut, s.Total, s.RatePerMinute,
					units.LevelFor(units.Rate(s.RatePerMinute)), s.ActiveTracks)
			}
		}
	}()

	if *listen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveHTTP(ctx, tracker, history, cfg, runID)
		}()
	}

	wg.Wait()

	s := tracker.Statistics()
	monitoring.Logf("Run %s complete: in=%d out=%d total=%d in %.0fs (%.1f/min, traffic %s)",
		runID, s.CountIn, s.CountOut, s.Total, s.ElapsedSeconds, s.RatePerMinute,
		units.LevelFor(units.Rate(s.RatePerMinute)))
	if recorder != nil {
		if err := recorder.RecordStats(s); err != nil {
			monitoring.Logf("failed to record final stats: %v", err)
		}
	}
}

// openSource builds the single configured non-video detection source.
func openSource() (detect.Source, error) {
	switch {
	case *replayPath != "":
		src, err := detect.OpenFile(*replayPath, detect.FileOptions{
			Realtime: *realtime,
			Speed:    *replaySpeed,
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	case *udpAddr != "":
		src, err := detect.OpenUDP(*udpAddr, detect.UDPOptions{Stats: detect.NewFrameStats()})
		if err != nil {
			return nil, err
		}
		return src, nil
	case *serialPort != "":
		src, err := detect.OpenSerial(*serialPort, *serialBaud)
		if err != nil {
			return nil, err
		}
		return src, nil
	case *pcapPath != "":
		src, err := detect.OpenPcap(*pcapPath, *pcapPort, *replaySpeed, detect.NewFrameStats())
		if err != nil {
			return nil, err
		}
		return src, nil
	case *synthetic:
		return detect.NewSynthetic(detect.SyntheticOptions{
			VehiclesPerMinute: *synthRate,
			Realtime:          true,
		}), nil
	}
	return nil, fmt.Errorf("no detection source selected")
}

// runSource drives the counting loop for a detection-frame source. Stale
// eviction runs on frame time, not the wall clock, so fast replays age
// tracks at replay speed.
func runSource(ctx context.Context, src detect.Source, cfg *config.Config, tracker *linecount.Tracker) error {
	classes := cfg.GetClasses()
	minConf := cfg.GetMinConfidence()
	staleAfter := cfg.GetStaleAfter()
	cleanupEvery := cfg.GetCleanupInterval()

	var nextCleanup time.Time
	var frames int
	for {
		frame, err := src.Next(ctx)
		if err == io.EOF {
			monitoring.Logf("Detection source ended after %d frames", frames)
			return nil
		}
		if err != nil {
			return err
		}
		frames++
		ts := frame.Time()

		for _, d := range detect.FilterDetections(frame.Detections, classes, minConf) {
			tracker.Update(d.TrackID, d.Box.Centroid(), ts)
		}

		if nextCleanup.IsZero() {
			nextCleanup = ts.Add(cleanupEvery)
		} else if ts.After(nextCleanup) {
			if removed := tracker.CleanupStale(ts, staleAfter); removed > 0 {
				monitoring.Diagf("evicted %d stale tracks", removed)
			}
			nextCleanup = ts.Add(cleanupEvery)
		}
	}
}

// serveHTTP runs the API server until ctx ends, then shuts it down
// gracefully.
func serveHTTP(ctx context.Context, tracker *linecount.Tracker, history *monitor.History, cfg *config.Config, runID string) {
	srv := api.NewServer(tracker, history, cfg, runID)
	mux := srv.ServeMux()
	srv.AttachDebugRoutes(mux)

	server := &http.Server{
		Addr:    *listen,
		Handler: api.LoggingMiddleware(mux),
	}

	go func() {
		monitoring.Logf("HTTP server listening on %s", *listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start HTTP server: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}
	monitoring.Logf("HTTP server stopped")
}
