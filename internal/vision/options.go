package vision

// Options configures the video pipeline. It is compiled regardless of the
// video build tag so flag wiring does not need conditional code.
type Options struct {
	// Input is a video file path or a numeric capture device index.
	Input string

	// Output, when set, writes the annotated frames to this video file.
	Output string

	// Weights, ModelConfig and Names locate the YOLO model files.
	Weights     string
	ModelConfig string
	Names       string

	// InputSize is the square network input in pixels (416 or 832 for the
	// models this was run with). Zero means 416.
	InputSize int

	// UseCUDA prefers the CUDA backend, falling back to CPU when OpenCV
	// was built without it.
	UseCUDA bool

	// SkipFrames processes every Nth frame. 1 processes everything.
	SkipFrames int

	// MinConfidence is the decode confidence floor.
	MinConfidence float64

	// NMSThreshold is the IoU above which overlapping boxes are merged.
	// Zero means 0.4.
	NMSThreshold float64

	// Classes is the vehicle class allowlist applied after decoding.
	Classes []string

	// Gate and MaxMisses tune the centroid associator. Zero takes the
	// package defaults.
	Gate      float64
	MaxMisses int

	// CleanupEvery and ProgressEvery are frame cadences for stale-track
	// eviction and progress logging. Zero means 100 and 30.
	CleanupEvery  int
	ProgressEvery int
}

func (o *Options) applyDefaults() {
	if o.InputSize <= 0 {
		o.InputSize = 416
	}
	if o.SkipFrames < 1 {
		o.SkipFrames = 1
	}
	if o.NMSThreshold <= 0 {
		o.NMSThreshold = 0.4
	}
	if o.CleanupEvery <= 0 {
		o.CleanupEvery = 100
	}
	if o.ProgressEvery <= 0 {
		o.ProgressEvery = 30
	}
}
