// Package config loads the gaze server configuration from defaults, an
// optional YAML file and GAZE_* environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-gaze/pkg/camera"
	"github.com/teslashibe/go-gaze/pkg/detection"
	"github.com/teslashibe/go-gaze/pkg/detection/yunet"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/tracking"
	"github.com/teslashibe/go-gaze/pkg/web"
)

// Detector backends
const (
	DetectorYuNet   = "yunet"
	DetectorSidecar = "sidecar"
)

// Config is the full server configuration.
type Config struct {
	LogLevel string `yaml:"log_level" json:"log_level"`
	LogFile  string `yaml:"log_file" json:"log_file,omitempty"` // rotated copy of stdout logs
	Detector string `yaml:"detector" json:"detector"`           // yunet or sidecar

	// CameraPreset seeds Camera before the file's camera section applies.
	CameraPreset string `yaml:"camera_preset" json:"camera_preset,omitempty"`

	Web       web.Config              `yaml:"web" json:"web"`
	Camera    camera.Config           `yaml:"camera" json:"camera"`
	Tracking  tracking.Config         `yaml:"tracking" json:"tracking"`
	Detection detection.Options       `yaml:"detection" json:"detection"`
	Sidecar   detection.SidecarConfig `yaml:"sidecar" json:"sidecar"`
	YuNet     yunet.Config            `yaml:"yunet" json:"yunet"`
	Gaze      gaze.Config             `yaml:"gaze" json:"gaze"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:  "info",
		Detector:  DetectorSidecar,
		Web:       web.DefaultConfig(),
		Camera:    camera.DefaultConfig(),
		Tracking:  tracking.DefaultConfig(),
		Detection: detection.DefaultOptions(),
		Sidecar:   detection.DefaultSidecarConfig(),
		YuNet:     yunet.DefaultConfig(),
		Gaze:      gaze.DefaultConfig(),
	}
}

// Load builds a config from defaults, the YAML file at path (skipped when
// empty) and the environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}

	if problems := cfg.Validate(); len(problems) > 0 {
		return cfg, fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return cfg, nil
}

// decode applies YAML over cfg. A camera preset is applied first so the
// file's camera fields refine it.
func (c *Config) decode(data []byte) error {
	var head struct {
		CameraPreset string `yaml:"camera_preset"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return err
	}
	if head.CameraPreset != "" {
		preset := camera.GetPreset(head.CameraPreset)
		if preset == nil {
			return fmt.Errorf("unknown camera preset %q (have %s)", head.CameraPreset, strings.Join(camera.PresetNames(), ", "))
		}
		c.Camera = *preset
	}
	return yaml.Unmarshal(data, c)
}

// applyEnv overrides fields from GAZE_* variables.
func (c *Config) applyEnv() error {
	c.Web.Port = Env("GAZE_PORT", c.Web.Port)
	c.LogLevel = Env("GAZE_LOG_LEVEL", c.LogLevel)
	c.LogFile = Env("GAZE_LOG_FILE", c.LogFile)
	c.Detector = Env("GAZE_DETECTOR", c.Detector)
	c.Detection.ModelPath = Env("GAZE_MODEL_PATH", c.Detection.ModelPath)
	c.Sidecar.URL = Env("GAZE_SIDECAR_URL", c.Sidecar.URL)
	c.Web.StartMode = web.Mode(Env("GAZE_MODE", string(c.Web.StartMode)))

	if v := os.Getenv("GAZE_CAMERA_DEVICE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GAZE_CAMERA_DEVICE: %w", err)
		}
		c.Camera.UserDevice = n
	}
	return nil
}

// Env returns the named variable, or def if it is unset or empty.
func Env(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

// Validate returns a list of problems, or nil if the config is usable.
func (c *Config) Validate() []string {
	var problems []string

	if c.Detector != DetectorYuNet && c.Detector != DetectorSidecar {
		problems = append(problems, fmt.Sprintf("detector must be %s or %s, got %q", DetectorYuNet, DetectorSidecar, c.Detector))
	}
	if _, err := strconv.Atoi(c.Web.Port); err != nil {
		problems = append(problems, fmt.Sprintf("web port must be numeric, got %q", c.Web.Port))
	}
	if !c.Web.StartMode.Valid() {
		problems = append(problems, fmt.Sprintf("web start_mode must be cursor or face, got %q", c.Web.StartMode))
	}
	if c.Detection.ModelPath == "" {
		problems = append(problems, "detection model_path is required")
	}
	if c.Detector == DetectorYuNet && strings.HasSuffix(c.Detection.ModelPath, ".task") {
		problems = append(problems, "yunet needs an .onnx model, set detection model_path")
	}
	if c.Detector == DetectorSidecar && c.Sidecar.URL == "" {
		problems = append(problems, "sidecar url is required")
	}

	problems = append(problems, c.Camera.Validate()...)
	problems = append(problems, c.TrackingConfig().Validate()...)
	return problems
}

// TrackingConfig assembles the per-session config.
func (c *Config) TrackingConfig() tracking.Config {
	tc := c.Tracking
	tc.Camera = c.Camera.Constraints()
	tc.Detector = c.Detection
	tc.Gaze = c.Gaze
	return tc
}
