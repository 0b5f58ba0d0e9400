// Package gaze turns face landmarks and expression scores into the
// smoothed gaze and eye-openness channels that drive an eye rig.
//
// All channel values live on a 0-100 scale where 50 is neutral. Gaze 0/100
// are the extreme left/right (bottom/top); openness 0 is fully closed.
package gaze

// Config holds the tunable constants of the estimation pipeline
type Config struct {
	// Gaze
	GazeGain float64 `yaml:"gaze_gain" json:"gaze_gain"` // Exaggeration of nose offset from center

	// Eye openness from geometry
	EyeGain        float64 `yaml:"eye_gain" json:"eye_gain"`                 // Exaggeration of aspect-ratio deviation
	OpenRatio      float64 `yaml:"open_ratio" json:"open_ratio"`             // Aspect ratio mapped to 50
	OpenRatioSpan  float64 `yaml:"open_ratio_span" json:"open_ratio_span"`   // Ratio delta mapped to ±50 before gain
	ZeroWidthRatio float64 `yaml:"zero_width_ratio" json:"zero_width_ratio"` // Used when eye width is 0

	// Smoothing
	Smoothing float64 `yaml:"smoothing" json:"smoothing"` // Weight kept from previous state (0-1)
	Neutral   float64 `yaml:"neutral" json:"neutral"`     // Initial value of every channel
}

// DefaultConfig returns the calibrated pipeline constants
func DefaultConfig() Config {
	return Config{
		GazeGain: 1.5,

		// Typical range is ~0.15 (squinting) to ~0.30 (wide open)
		EyeGain:        3,
		OpenRatio:      0.22,
		OpenRatioSpan:  0.15,
		ZeroWidthRatio: 0.2,

		Smoothing: 0.7,
		Neutral:   50,
	}
}

// Validate returns a list of problems, or nil if the config is usable.
func (c Config) Validate() []string {
	var errs []string
	if c.GazeGain <= 0 {
		errs = append(errs, "gaze_gain must be positive")
	}
	if c.EyeGain <= 0 {
		errs = append(errs, "eye_gain must be positive")
	}
	if c.OpenRatioSpan <= 0 {
		errs = append(errs, "open_ratio_span must be positive")
	}
	if c.Smoothing < 0 || c.Smoothing >= 1 {
		errs = append(errs, "smoothing must be in [0, 1)")
	}
	if c.Neutral < MinValue || c.Neutral > MaxValue {
		errs = append(errs, "neutral must be between 0 and 100")
	}
	return errs
}

// Channel value bounds.
const (
	MinValue = 0.0
	MaxValue = 100.0
)

// Clamp limits v to [MinValue, MaxValue].
func Clamp(v float64) float64 {
	if v < MinValue {
		return MinValue
	}
	if v > MaxValue {
		return MaxValue
	}
	return v
}
