//go:build !video
// +build !video

package vision

import (
	"context"
	"fmt"
	"time"

	"github.com/roadtally/carcount/internal/geom"
	"github.com/roadtally/carcount/internal/linecount"
)

// RunVideo is a stub when the OpenCV pipeline is disabled. Build with
// -tags=video (and OpenCV installed) to process footage directly.
func RunVideo(ctx context.Context, opts Options, tracker *linecount.Tracker, line geom.Line, stale time.Duration) error {
	return fmt.Errorf("video support not enabled: rebuild with -tags=video to process video input")
}
