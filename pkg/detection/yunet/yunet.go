// Package yunet runs OpenCV's YuNet face detector locally. YuNet only
// yields five keypoints per face, so its landmarks are sparse: the nose
// tip drives gaze and eye openness is left to expression-capable backends.
package yunet

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"sync"

	"github.com/teslashibe/go-gaze/internal/httpc"
	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/camera"
	"github.com/teslashibe/go-gaze/pkg/detection"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"gocv.io/x/gocv"
)

// Config holds detector thresholds
type Config struct {
	ConfidenceThresh float64 `yaml:"confidence_thresh" json:"confidence_thresh"` // Minimum face score
	NMSThresh        float64 `yaml:"nms_thresh" json:"nms_thresh"`
	InputWidth       int     `yaml:"input_width" json:"input_width"`
	InputHeight      int     `yaml:"input_height" json:"input_height"`
}

// DefaultConfig returns production defaults for YuNet
func DefaultConfig() Config {
	return Config{
		ConfidenceThresh: 0.5,
		NMSThresh:        0.3,
		InputWidth:       320,
		InputHeight:      320,
	}
}

// Box is one YuNet face, normalized to 0-1.
type Box struct {
	X, Y, W, H float64
	Confidence float64
	Nose       gaze.Point
}

// Area returns the area of the bounding box
func (b Box) Area() float64 {
	return b.W * b.H
}

// SelectBest picks the face to track from multiple detections.
// Priority: confidence * 0.7 + relative area * 0.3
func SelectBest(boxes []Box) *Box {
	if len(boxes) == 0 {
		return nil
	}
	if len(boxes) == 1 {
		return &boxes[0]
	}

	maxArea := 0.0
	for _, b := range boxes {
		maxArea = max(maxArea, b.Area())
	}

	bestScore := -1.0
	var best *Box
	for i := range boxes {
		score := boxes[i].Confidence * 0.7
		if maxArea > 0 {
			score += boxes[i].Area() / maxArea * 0.3
		}
		if score > bestScore {
			bestScore = score
			best = &boxes[i]
		}
	}
	return best
}

// Loader creates YuNet detectors
type Loader struct {
	config Config
	client *http.Client // model downloads
}

// NewLoader returns a Loader using cfg thresholds.
func NewLoader(cfg Config) *Loader {
	return &Loader{config: cfg, client: httpc.Downloads}
}

// Load reads the ONNX model named by opts.ModelPath, fetching it from
// opts.ModelURL first if it is missing.
func (l *Loader) Load(ctx context.Context, opts detection.Options) (detection.Detector, error) {
	if err := detection.EnsureModel(ctx, l.client, opts); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fd := gocv.NewFaceDetectorYNWithParams(
		opts.ModelPath,
		"", // No config file needed for ONNX
		image.Pt(l.config.InputWidth, l.config.InputHeight),
		float32(l.config.ConfidenceThresh),
		float32(l.config.NMSThresh),
		5000, // Top K
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	log.Component("yunet").Info("model loaded", "path", opts.ModelPath)
	return &Detector{detector: fd}, nil
}

// Detector wraps gocv.FaceDetectorYN
type Detector struct {
	detector gocv.FaceDetectorYN
	mu       sync.Mutex // Protects inference
	closed   bool
}

// Detect decodes the JPEG frame and returns the best face's nose tip.
func (d *Detector) Detect(_ context.Context, frame camera.Frame, _ int64) (detection.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return detection.Result{}, detection.ErrClosed
	}

	img, err := gocv.IMDecode(frame.Data, gocv.IMReadColor)
	if err != nil {
		return detection.Result{}, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return detection.Result{}, fmt.Errorf("empty image")
	}

	d.detector.SetInputSize(image.Pt(img.Cols(), img.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()
	d.detector.Detect(img, &faces)

	best := SelectBest(parseFaces(faces, float64(img.Cols()), float64(img.Rows())))
	if best == nil {
		return detection.Result{}, nil
	}

	lm := gaze.Sparse(map[int]gaze.Point{gaze.NoseTip: best.Nose})
	return detection.Result{Landmarks: []gaze.Landmarks{lm}}, nil
}

// parseFaces reads YuNet's output rows (15 columns):
// 0-3 box in pixels, 4-13 five keypoints (right eye, left eye, nose tip,
// right mouth, left mouth), 14 score.
func parseFaces(faces gocv.Mat, imgW, imgH float64) []Box {
	var boxes []Box
	for r := 0; r < faces.Rows(); r++ {
		at := func(c int) float64 { return float64(faces.GetFloatAt(r, c)) }
		boxes = append(boxes, Box{
			X:          at(0) / imgW,
			Y:          at(1) / imgH,
			W:          at(2) / imgW,
			H:          at(3) / imgH,
			Confidence: at(14),
			Nose:       gaze.Point{X: at(8) / imgW, Y: at(9) / imgH},
		})
	}
	return boxes
}

// Close releases the detector resources
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	d.detector.Close()
	return nil
}
