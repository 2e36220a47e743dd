// Command gen-detlog writes a synthetic detection log for testing replay
// and the count-report tool without a camera.
package main

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/roadtally/carcount/internal/detect"
)

func main() {
	output := flag.String("o", "sample.ndjson.gz", "output path (.gz compresses)")
	duration := flag.Duration("duration", time.Minute, "length of generated footage")
	fps := flag.Float64("fps", 30, "frames per second")
	rate := flag.Float64("rate", 20, "vehicles per minute")
	seed := flag.Int64("seed", 1, "rng seed (same seed, same log)")
	width := flag.Int("width", 1920, "frame width in pixels")
	height := flag.Int("height", 1080, "frame height in pixels")
	flag.Parse()

	frames := int(duration.Seconds() * *fps)
	src := detect.NewSynthetic(detect.SyntheticOptions{
		FPS:               *fps,
		VehiclesPerMinute: *rate,
		Width:             *width,
		Height:            *height,
		Seed:              *seed,
		MaxFrames:         frames,
		Base:              time.Now(),
	})

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("failed to create output: %v", err)
	}
	defer f.Close()

	var w io.Writer = f
	var gz *gzip.Writer
	if strings.HasSuffix(*output, ".gz") {
		gz = gzip.NewWriter(f)
		defer gz.Close()
		w = gz
	}
	buf := bufio.NewWriter(w)
	defer buf.Flush()

	enc := json.NewEncoder(buf)
	ctx := context.Background()
	written := 0
	for {
		frame, err := src.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatalf("generation failed: %v", err)
		}
		if err := enc.Encode(frame); err != nil {
			log.Fatalf("failed to write frame: %v", err)
		}
		written++
		if written%1000 == 0 {
			log.Printf("%d/%d frames", written, frames)
		}
	}

	log.Printf("Wrote %d frames (%v at %.0f fps, %.0f vehicles/min) to %s",
		written, *duration, *fps, *rate, *output)
}
