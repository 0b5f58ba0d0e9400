// Package webcam captures frames from a local camera with OpenCV.
package webcam

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/camera"
	"gocv.io/x/gocv"
)

// Source opens local capture devices
type Source struct {
	config camera.Config
	logger *slog.Logger
}

// New creates a webcam source using cfg for device selection and encoding.
func New(cfg camera.Config) *Source {
	return &Source{
		config: cfg,
		logger: log.Component("webcam"),
	}
}

// Open starts capturing from the device matching c.Facing.
func (s *Source) Open(ctx context.Context, c camera.Constraints) (camera.Stream, error) {
	device := s.config.Device(c.Facing)

	if err := probeDevice(device); err != nil {
		return nil, err
	}

	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("%w: open device %d: %v", camera.ErrDeviceUnavailable, device, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w: device %d did not open", camera.ErrDeviceUnavailable, device)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(c.Width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(c.Height))
	if s.config.Framerate > 0 {
		capture.Set(gocv.VideoCaptureFPS, float64(s.config.Framerate))
	}

	if err := ctx.Err(); err != nil {
		capture.Close()
		return nil, err
	}

	st := &stream{
		capture: capture,
		quality: s.config.Quality,
		logger:  s.logger.With("device", device),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go st.run()

	s.logger.Info("camera opened", "device", device, "width", c.Width, "height", c.Height, "facing", c.Facing)
	return st, nil
}

// probeDevice maps V4L2 node errors onto the camera sentinels. Other
// platforms leave the check to OpenCV.
func probeDevice(device int) error {
	if runtime.GOOS != "linux" {
		return nil
	}
	path := fmt.Sprintf("/dev/video%d", device)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	switch {
	case err == nil:
		return f.Close()
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s", camera.ErrPermissionDenied, path)
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s", camera.ErrDeviceUnavailable, path)
	default:
		return fmt.Errorf("%w: %s: %v", camera.ErrDeviceUnavailable, path, err)
	}
}

// stream keeps the most recent encoded frame (mailbox semantics)
type stream struct {
	capture *gocv.VideoCapture
	quality int
	logger  *slog.Logger

	mu     sync.RWMutex
	latest camera.Frame
	ready  bool

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func (s *stream) run() {
	defer close(s.done)

	img := gocv.NewMat()
	defer img.Close()

	var seq uint64
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		if ok := s.capture.Read(&img); !ok || img.Empty() {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{int(gocv.IMWriteJpegQuality), s.quality})
		if err != nil {
			s.logger.Debug("encode frame", "error", err)
			continue
		}
		data := append([]byte(nil), buf.GetBytes()...)
		buf.Close()

		seq++
		frame := camera.Frame{
			Data:      data,
			Width:     img.Cols(),
			Height:    img.Rows(),
			Seq:       seq,
			Timestamp: time.Now(),
		}

		s.mu.Lock()
		s.latest = frame
		s.ready = true
		s.mu.Unlock()
	}
}

// Current returns the newest frame once the first one has been captured.
func (s *stream) Current() (camera.Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.ready
}

// Close stops the capture goroutine and releases the device.
func (s *stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stop)
		<-s.done
		err = s.capture.Close()
		s.logger.Info("camera released")
	})
	return err
}
