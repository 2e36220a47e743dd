//go:build video
// +build video

package vision

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"strings"
	"time"

	"gocv.io/x/gocv"

	"github.com/roadtally/carcount/internal/geom"
	"github.com/roadtally/carcount/internal/linecount"
	"github.com/roadtally/carcount/internal/monitoring"
	"github.com/roadtally/carcount/internal/timeutil"
	"github.com/roadtally/carcount/internal/units"
)

var (
	lineColor     = color.RGBA{255, 0, 0, 255}   // counting line: red
	boxColor      = color.RGBA{0, 255, 0, 255}   // tracked vehicle: green
	crossColor    = color.RGBA{0, 128, 255, 255} // flash on a counted crossing
	panelColor    = color.RGBA{255, 255, 255, 255}
	centroidColor = color.RGBA{0, 255, 255, 255}
)

// RunVideo processes a video file or capture device through detection,
// association and counting, drawing the overlay as it goes. The counting
// line must already be resolved to the pixel space of the footage; when
// the opened stream's size differs from line expectations that is the
// caller's configuration problem and only a warning is logged.
func RunVideo(ctx context.Context, opts Options, tracker *linecount.Tracker, line geom.Line, stale time.Duration) error {
	opts.applyDefaults()

	capture, err := gocv.OpenVideoCapture(opts.Input)
	if err != nil {
		return fmt.Errorf("failed to open video input %s: %w", opts.Input, err)
	}
	defer capture.Close()

	fps := capture.Get(gocv.VideoCaptureFPS)
	width := int(capture.Get(gocv.VideoCaptureFrameWidth))
	height := int(capture.Get(gocv.VideoCaptureFrameHeight))
	monitoring.Logf("Video input %s: %dx%d at %.1f fps", opts.Input, width, height, fps)

	detector, err := NewDetector(opts.Weights, opts.ModelConfig, opts.InputSize, opts.UseCUDA)
	if err != nil {
		return err
	}
	defer detector.Close()

	names, err := LoadClassNames(opts.Names)
	if err != nil {
		return err
	}

	allow := make(map[string]bool, len(opts.Classes))
	for _, c := range opts.Classes {
		allow[strings.ToLower(c)] = true
	}

	var writer *gocv.VideoWriter
	if opts.Output != "" {
		writer, err = gocv.VideoWriterFile(opts.Output, "mp4v", fps, width, height, true)
		if err != nil {
			return fmt.Errorf("failed to open video output %s: %w", opts.Output, err)
		}
		defer writer.Close()
	}

	assoc := NewAssociator(opts.Gate, opts.MaxMisses)
	clock := timeutil.NewFrameClock(time.Now(), fps)

	img := gocv.NewMat()
	defer img.Close()

	frameIdx := 0
	processed := 0
	start := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !capture.Read(&img) || img.Empty() {
			break
		}
		frameIdx++
		if (frameIdx-1)%opts.SkipFrames != 0 {
			continue
		}
		processed++
		ts := clock.At(frameIdx - 1)

		rows, err := detector.Detect(img)
		if err != nil {
			return fmt.Errorf("inference failed on frame %d: %w", frameIdx, err)
		}
		dets := NonMaxSuppression(DecodeYOLO(rows, width, height, opts.MinConfidence), opts.NMSThreshold)

		// Class allowlist before association so stray pedestrians never
		// consume track IDs.
		kept := dets[:0]
		for _, d := range dets {
			if len(allow) == 0 || allow[strings.ToLower(ClassName(names, d.ClassID))] {
				kept = append(kept, d)
			}
		}
		dets = kept

		centroids := make([]geom.Point, len(dets))
		for i, d := range dets {
			centroids[i] = d.Box.Centroid()
		}
		ids := assoc.Assign(centroids)

		drawLine(&img, line)
		for i, d := range dets {
			crossed := tracker.Update(ids[i], centroids[i], ts)
			drawDetection(&img, d, names, ids[i], centroids[i], crossed)
			monitoring.Tracef("frame %d track %d at (%.0f,%.0f) crossed=%v",
				frameIdx, ids[i], centroids[i].X, centroids[i].Y, crossed)
		}
		drawStatsPanel(&img, tracker.Statistics())

		if writer != nil {
			if err := writer.Write(img); err != nil {
				return fmt.Errorf("failed to write output frame: %w", err)
			}
		}

		if processed%opts.ProgressEvery == 0 {
			stats := tracker.Statistics()
			monitoring.Diagf("frame %d: %d tracked, in=%d out=%d total=%d",
				frameIdx, len(dets), stats.CountIn, stats.CountOut, stats.Total)
		}
		if processed%opts.CleanupEvery == 0 {
			if removed := tracker.CleanupStale(ts, stale); removed > 0 {
				monitoring.Diagf("evicted %d stale tracks", removed)
			}
		}
	}

	stats := tracker.Statistics()
	monitoring.Logf("Video complete: %d frames (%d processed) in %v; in=%d out=%d total=%d (%.1f/min, %s)",
		frameIdx, processed, time.Since(start).Truncate(time.Millisecond),
		stats.CountIn, stats.CountOut, stats.Total, stats.RatePerMinute,
		units.LevelFor(units.Rate(stats.RatePerMinute)))
	return nil
}

func drawLine(img *gocv.Mat, line geom.Line) {
	gocv.Line(img,
		image.Pt(int(line.Start.X), int(line.Start.Y)),
		image.Pt(int(line.End.X), int(line.End.Y)),
		lineColor, 3)
}

func drawDetection(img *gocv.Mat, d RawDetection, names []string, id int64, centroid geom.Point, crossed bool) {
	c := boxColor
	if crossed {
		c = crossColor
	}
	rect := image.Rect(int(d.Box.X1), int(d.Box.Y1), int(d.Box.X2), int(d.Box.Y2))
	gocv.Rectangle(img, rect, c, 2)
	gocv.Circle(img, image.Pt(int(centroid.X), int(centroid.Y)), 4, centroidColor, -1)

	label := fmt.Sprintf("%s %.2f #%d", ClassName(names, d.ClassID), d.Confidence, id)
	gocv.PutText(img, label, image.Pt(rect.Min.X, rect.Min.Y-6),
		gocv.FontHersheySimplex, 0.5, c, 1)
}

func drawStatsPanel(img *gocv.Mat, stats linecount.Stats) {
	lines := []string{
		fmt.Sprintf("IN:  %d", stats.CountIn),
		fmt.Sprintf("OUT: %d", stats.CountOut),
		fmt.Sprintf("TOTAL: %d", stats.Total),
		fmt.Sprintf("%.1f/min (%s)", stats.RatePerMinute,
			units.LevelFor(units.Rate(stats.RatePerMinute))),
	}
	for i, s := range lines {
		gocv.PutText(img, s, image.Pt(12, 28+i*26), gocv.FontHersheySimplex, 0.7, panelColor, 2)
	}
}
