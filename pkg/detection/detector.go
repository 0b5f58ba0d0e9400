// Package detection defines the face landmark detector boundary and its
// backends: a MediaPipe landmarker sidecar and a local YuNet model.
package detection

import (
	"context"
	"errors"

	"github.com/teslashibe/go-gaze/pkg/camera"
	"github.com/teslashibe/go-gaze/pkg/gaze"
)

var (
	// ErrModelLoad is returned when the detector model is missing or corrupt.
	ErrModelLoad = errors.New("detection: model load failed")

	// ErrClosed is returned by Detect after Close.
	ErrClosed = errors.New("detection: detector closed")
)

// Options configures detector initialization
type Options struct {
	ModelPath       string `yaml:"model_path" json:"model_path"`
	ModelURL        string `yaml:"model_url" json:"model_url,omitempty"` // fetched to ModelPath when missing
	MaxFaces        int    `yaml:"max_faces" json:"max_faces"`
	WantExpressions bool   `yaml:"want_expressions" json:"want_expressions"`
}

// DefaultOptions returns single-face detection with blendshapes.
func DefaultOptions() Options {
	return Options{
		ModelPath:       "models/face_landmarker.task",
		MaxFaces:        1,
		WantExpressions: true,
	}
}

// Result is one detection pass.
type Result struct {
	Landmarks   []gaze.Landmarks   // 0 or 1 entries
	Expressions []gaze.Expressions // nil when expressions were not requested
}

// Face returns the first face, or false if none was detected.
func (r Result) Face() (gaze.Face, bool) {
	if len(r.Landmarks) == 0 || len(r.Landmarks[0]) == 0 {
		return gaze.Face{}, false
	}
	face := gaze.Face{Landmarks: r.Landmarks[0]}
	if len(r.Expressions) > 0 {
		face.Expressions = r.Expressions[0]
	}
	return face, true
}

// Detector finds face landmarks in frames
type Detector interface {
	// Detect runs the model on a frame. timestampMs must increase between
	// calls within one detector's lifetime.
	Detect(ctx context.Context, frame camera.Frame, timestampMs int64) (Result, error)

	// Close releases resources
	Close() error
}

// Loader initializes detectors.
type Loader interface {
	Load(ctx context.Context, opts Options) (Detector, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, opts Options) (Detector, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, opts Options) (Detector, error) {
	return f(ctx, opts)
}
