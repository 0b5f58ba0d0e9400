package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-gaze/pkg/camera"
	"github.com/teslashibe/go-gaze/pkg/web"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gaze.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	assert.Empty(t, cfg.Validate())
	assert.Equal(t, 33*time.Millisecond, cfg.Tracking.MinInterval)
	assert.Equal(t, web.ModeCursor, cfg.Web.StartMode)
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, `
log_level: debug
detector: yunet
web:
  port: "9090"
  start_mode: face
camera:
  width: 320
  height: 240
tracking:
  min_interval: 50ms
detection:
  model_path: models/face_detection_yunet.onnx
gaze:
  smoothing: 0.5
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, DetectorYuNet, cfg.Detector)
	assert.Equal(t, "9090", cfg.Web.Port)
	assert.Equal(t, web.ModeFace, cfg.Web.StartMode)
	assert.Equal(t, 320, cfg.Camera.Width)
	assert.Equal(t, 30, cfg.Camera.Framerate, "unset fields keep defaults")
	assert.Equal(t, 50*time.Millisecond, cfg.Tracking.MinInterval)
	assert.Equal(t, 16*time.Millisecond, cfg.Tracking.RefreshInterval)
	assert.Equal(t, 0.5, cfg.Gaze.Smoothing)
	assert.Equal(t, 1.5, cfg.Gaze.GazeGain)

	tc := cfg.TrackingConfig()
	assert.Equal(t, camera.Constraints{Width: 320, Height: 240, Facing: camera.FacingUser}, tc.Camera)
	assert.Equal(t, "models/face_detection_yunet.onnx", tc.Detector.ModelPath)
	assert.Equal(t, 0.5, tc.Gaze.Smoothing)
}

func TestLoad_CameraPreset(t *testing.T) {
	path := writeConfig(t, `
camera_preset: 720p
camera:
  quality: 60
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1280, cfg.Camera.Width)
	assert.Equal(t, 720, cfg.Camera.Height)
	assert.Equal(t, 60, cfg.Camera.Quality)
}

func TestLoad_UnknownPreset(t *testing.T) {
	_, err := Load(writeConfig(t, "camera_preset: 8k\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown camera preset")
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("GAZE_PORT", "7000")
	t.Setenv("GAZE_CAMERA_DEVICE", "2")
	t.Setenv("GAZE_MODEL_PATH", "/opt/models/face_landmarker.task")
	t.Setenv("GAZE_SIDECAR_URL", "ws://landmarker:8765/landmarker")
	t.Setenv("GAZE_LOG_LEVEL", "warn")

	path := writeConfig(t, "web:\n  port: \"9090\"\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Web.Port, "env beats file")
	assert.Equal(t, 2, cfg.Camera.UserDevice)
	assert.Equal(t, "/opt/models/face_landmarker.task", cfg.Detection.ModelPath)
	assert.Equal(t, "ws://landmarker:8765/landmarker", cfg.Sidecar.URL)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("GAZE_CAMERA_DEVICE", "front")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GAZE_CAMERA_DEVICE")
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "web: [unclosed\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"detector", func(c *Config) { c.Detector = "dlib" }, "detector must be"},
		{"port", func(c *Config) { c.Web.Port = "http" }, "port must be numeric"},
		{"mode", func(c *Config) { c.Web.StartMode = "eyes" }, "start_mode"},
		{"model", func(c *Config) { c.Detection.ModelPath = "" }, "model_path is required"},
		{"yunet model", func(c *Config) { c.Detector = DetectorYuNet }, ".onnx"},
		{"camera", func(c *Config) { c.Camera.Width = 10 }, "width must be"},
		{"refresh", func(c *Config) { c.Tracking.RefreshInterval = 0 }, "refresh_interval"},
		{"gaze", func(c *Config) { c.Gaze.Smoothing = 2 }, "smoothing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			problems := cfg.Validate()
			require.NotEmpty(t, problems)
			assert.Contains(t, problems[0], tt.want)
		})
	}
}
