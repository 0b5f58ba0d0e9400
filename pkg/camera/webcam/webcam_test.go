package webcam

import (
	"context"
	"errors"
	"os"
	"runtime"
	"testing"
	"time"

	"github.com/teslashibe/go-gaze/pkg/camera"
)

func TestProbeDevice_Missing(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("V4L2 probing is linux only")
	}

	err := probeDevice(987)
	if !errors.Is(err, camera.ErrDeviceUnavailable) {
		t.Errorf("Expected ErrDeviceUnavailable, got %v", err)
	}
}

func TestOpen_MissingDevice(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("V4L2 probing is linux only")
	}

	cfg := camera.DefaultConfig()
	cfg.UserDevice = 987
	_, err := New(cfg).Open(context.Background(), cfg.Constraints())
	if !errors.Is(err, camera.ErrDeviceUnavailable) {
		t.Errorf("Expected ErrDeviceUnavailable, got %v", err)
	}
}

// TestOpen_RealDevice captures a frame when a camera is attached
func TestOpen_RealDevice(t *testing.T) {
	if _, err := os.Stat("/dev/video0"); err != nil {
		t.Skip("No camera attached, skipping test")
	}

	cfg := camera.LowConfig()
	st, err := New(cfg).Open(context.Background(), cfg.Constraints())
	if err != nil {
		t.Skipf("Camera not usable: %v", err)
	}
	defer st.Close()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if f, ok := st.Current(); ok {
			if len(f.Data) == 0 || f.Seq == 0 {
				t.Errorf("Expected encoded frame, got %d bytes seq=%d", len(f.Data), f.Seq)
			}
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	if err := st.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	// Second close is a no-op
	if err := st.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}
}
