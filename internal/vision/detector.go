//go:build video
// +build video

package vision

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/roadtally/carcount/internal/monitoring"
)

// Detector wraps an OpenCV DNN for YOLO inference.
type Detector struct {
	net  gocv.Net
	size int
}

// NewDetector loads the network from weights and config files. With
// useCUDA the CUDA backend is preferred; OpenCV silently falls back to CPU
// at inference time when CUDA is unavailable.
func NewDetector(weights, config string, size int, useCUDA bool) (*Detector, error) {
	net := gocv.ReadNet(weights, config)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s / %s", weights, config)
	}

	if useCUDA {
		net.SetPreferableBackend(gocv.NetBackendCUDA)
		net.SetPreferableTarget(gocv.NetTargetCUDA)
		monitoring.Logf("Detector: CUDA backend requested")
	} else {
		net.SetPreferableBackend(gocv.NetBackendDefault)
		net.SetPreferableTarget(gocv.NetTargetCPU)
	}

	if size <= 0 {
		size = 416
	}
	return &Detector{net: net, size: size}, nil
}

// Detect runs one forward pass and returns the raw output rows for
// DecodeYOLO.
func (d *Detector) Detect(img gocv.Mat) ([][]float32, error) {
	blob := gocv.BlobFromImage(img, 1.0/255.0, image.Pt(d.size, d.size),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	rows := make([][]float32, 0, output.Rows())
	cols := output.Cols()
	for i := 0; i < output.Rows(); i++ {
		row := make([]float32, cols)
		for j := 0; j < cols; j++ {
			row[j] = output.GetFloatAt(i, j)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Close releases the network.
func (d *Detector) Close() error {
	return d.net.Close()
}
