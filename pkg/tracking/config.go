package tracking

import (
	"fmt"
	"time"

	"github.com/teslashibe/go-gaze/pkg/camera"
	"github.com/teslashibe/go-gaze/pkg/detection"
	"github.com/teslashibe/go-gaze/pkg/gaze"
)

// Config holds all tunable parameters for a tracking session
type Config struct {
	// Timing
	MinInterval     time.Duration `yaml:"min_interval" json:"min_interval"`         // Minimum time between detector calls
	RefreshInterval time.Duration `yaml:"refresh_interval" json:"refresh_interval"` // Loop wake-up period

	Camera   camera.Constraints `yaml:"-" json:"camera"`
	Detector detection.Options  `yaml:"-" json:"detector"`
	Gaze     gaze.Config        `yaml:"-" json:"gaze"`
}

// DefaultConfig returns production defaults
func DefaultConfig() Config {
	return Config{
		MinInterval:     33 * time.Millisecond, // ~30 detections/sec
		RefreshInterval: 16 * time.Millisecond, // display refresh

		Camera:   camera.DefaultConfig().Constraints(),
		Detector: detection.DefaultOptions(),
		Gaze:     gaze.DefaultConfig(),
	}
}

// Validate returns a list of problems with the config.
func (c Config) Validate() []string {
	var problems []string
	if c.MinInterval < 0 {
		problems = append(problems, fmt.Sprintf("min_interval must be >= 0, got %v", c.MinInterval))
	}
	if c.RefreshInterval <= 0 {
		problems = append(problems, fmt.Sprintf("refresh_interval must be > 0, got %v", c.RefreshInterval))
	}
	if c.Detector.MaxFaces < 1 {
		problems = append(problems, fmt.Sprintf("detector max_faces must be >= 1, got %d", c.Detector.MaxFaces))
	}
	return append(problems, c.Gaze.Validate()...)
}
