// Package camera defines the frame source boundary of the gaze tracker
// and its runtime-configurable capture settings.
package camera

// Facing selects which camera to use
type Facing string

const (
	FacingUser        Facing = "user"        // front camera, toward the viewer
	FacingEnvironment Facing = "environment" // rear camera
)

// Constraints is what a session asks of the frame source.
type Constraints struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Facing Facing `json:"facing"`
}

// Config holds all camera configuration parameters.
type Config struct {
	// === Resolution ===
	Width     int `yaml:"width" json:"width"`         // Frame width in pixels
	Height    int `yaml:"height" json:"height"`       // Frame height in pixels
	Framerate int `yaml:"framerate" json:"framerate"` // Target FPS
	Quality   int `yaml:"quality" json:"quality"`     // JPEG quality 1-100

	// === Device selection ===
	Facing            Facing `yaml:"facing" json:"facing"`
	UserDevice        int    `yaml:"user_device" json:"user_device"`               // Capture index for FacingUser
	EnvironmentDevice int    `yaml:"environment_device" json:"environment_device"` // Capture index for FacingEnvironment
}

// Capture limits accepted by Validate
const (
	MaxWidth     = 3840
	MaxHeight    = 2160
	MaxFramerate = 120
)

// DefaultConfig returns the webcam defaults: 640x480, user-facing.
func DefaultConfig() Config {
	return Config{
		Width:     640,
		Height:    480,
		Framerate: 30,
		Quality:   80,

		Facing:            FacingUser,
		UserDevice:        0,
		EnvironmentDevice: 1,
	}
}

// Constraints returns the session constraints for this config.
func (c Config) Constraints() Constraints {
	return Constraints{Width: c.Width, Height: c.Height, Facing: c.Facing}
}

// Device returns the capture index for a facing mode.
func (c Config) Device(f Facing) int {
	if f == FacingEnvironment {
		return c.EnvironmentDevice
	}
	return c.UserDevice
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Width < 160 || c.Width > MaxWidth {
		errors = append(errors, "width must be between 160 and 3840")
	}
	if c.Height < 120 || c.Height > MaxHeight {
		errors = append(errors, "height must be between 120 and 2160")
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, "framerate must be between 1 and 120")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}

	validFacing := map[Facing]bool{FacingUser: true, FacingEnvironment: true}
	if c.Facing != "" && !validFacing[c.Facing] {
		errors = append(errors, "facing must be user or environment")
	}
	if c.UserDevice < 0 || c.EnvironmentDevice < 0 {
		errors = append(errors, "device indexes must not be negative")
	}

	return errors
}
