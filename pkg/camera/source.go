package camera

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrPermissionDenied is returned when camera access is refused.
	ErrPermissionDenied = errors.New("camera: permission denied")

	// ErrDeviceUnavailable is returned when no matching camera exists.
	ErrDeviceUnavailable = errors.New("camera: device unavailable")
)

// Frame is one decoded video frame, JPEG-encoded for the detector.
type Frame struct {
	Data      []byte
	Width     int
	Height    int
	Seq       uint64
	Timestamp time.Time
}

// Source acquires camera streams.
type Source interface {
	// Open acquires a stream. It may block until the user grants access;
	// implementations should return promptly once ctx is cancelled.
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is an acquired camera.
type Stream interface {
	// Current returns the latest frame, or false if none has arrived yet.
	Current() (Frame, bool)

	// Close stops capture and releases the device. Safe to call twice.
	Close() error
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, c Constraints) (Stream, error)

// Open calls f.
func (f SourceFunc) Open(ctx context.Context, c Constraints) (Stream, error) {
	return f(ctx, c)
}
