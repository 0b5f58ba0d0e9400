package detection

import (
	"context"
	"sync"

	"github.com/teslashibe/go-gaze/pkg/camera"
	"github.com/teslashibe/go-gaze/pkg/gaze"
)

// Mock implements Detector for testing.
// Behavior can be customized via function fields.
type Mock struct {
	// DetectFunc is called when Detect is invoked.
	// If nil, Detect reports no face.
	DetectFunc func(ctx context.Context, frame camera.Frame, timestampMs int64) (Result, error)

	// CloseFunc is called when Close is invoked.
	// If nil, returns nil.
	CloseFunc func() error

	mu         sync.Mutex
	timestamps []int64
	closes     int
}

// NewMock creates a mock that never finds a face.
func NewMock() *Mock {
	return &Mock{}
}

// NewFaceMock creates a mock that always returns face.
func NewFaceMock(face gaze.Face) *Mock {
	return &Mock{
		DetectFunc: func(context.Context, camera.Frame, int64) (Result, error) {
			return FaceResult(face), nil
		},
	}
}

// FaceResult wraps a single face in a Result.
func FaceResult(face gaze.Face) Result {
	res := Result{Landmarks: []gaze.Landmarks{face.Landmarks}}
	if face.Expressions != nil {
		res.Expressions = []gaze.Expressions{face.Expressions}
	}
	return res
}

// Detect records the call and delegates to DetectFunc.
func (m *Mock) Detect(ctx context.Context, frame camera.Frame, timestampMs int64) (Result, error) {
	m.mu.Lock()
	m.timestamps = append(m.timestamps, timestampMs)
	fn := m.DetectFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, frame, timestampMs)
	}
	return Result{}, nil
}

// Close records the call and delegates to CloseFunc.
func (m *Mock) Close() error {
	m.mu.Lock()
	m.closes++
	fn := m.CloseFunc
	m.mu.Unlock()

	if fn != nil {
		return fn()
	}
	return nil
}

// DetectCalls returns how many times Detect was called.
func (m *Mock) DetectCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timestamps)
}

// Timestamps returns the timestamps passed to Detect.
func (m *Mock) Timestamps() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64(nil), m.timestamps...)
}

// CloseCalls returns how many times Close was called.
func (m *Mock) CloseCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}
