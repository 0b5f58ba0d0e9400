package gaze

import "math"

// Signal is one frame's raw channel estimate, 0-100 each.
type Signal struct {
	X     float64 `json:"x"` // Gaze
	Y     float64 `json:"y"`
	Left  float64 `json:"left"` // Openness
	Right float64 `json:"right"`
}

// State is the smoothed value of each channel.
type State Signal

// Output is the rig-facing channel set. Horizontal gaze is mirrored
// between the eyes so both converge on the same target.
type Output struct {
	EyeLx, EyeLy float64
	EyeRx, EyeRy float64
	EyeLH, EyeRH float64
}

// Smoother applies an exponential moving average per channel
type Smoother struct {
	alpha float64 // weight kept from the previous state
	state State
}

// NewSmoother creates a smoother with every channel at neutral
func NewSmoother(alpha, neutral float64) *Smoother {
	n := Clamp(neutral)
	return &Smoother{
		alpha: clampAlpha(alpha),
		state: State{X: n, Y: n, Left: n, Right: n},
	}
}

func clampAlpha(a float64) float64 {
	if a < 0 {
		return 0
	}
	if a > 1 {
		return 1
	}
	return a
}

// Update folds raw into the state and returns the new state.
func (s *Smoother) Update(raw Signal) State {
	s.state = State{
		X:     s.blend(s.state.X, raw.X),
		Y:     s.blend(s.state.Y, raw.Y),
		Left:  s.blend(s.state.Left, raw.Left),
		Right: s.blend(s.state.Right, raw.Right),
	}
	return s.state
}

// blend keeps prev when raw is NaN.
func (s *Smoother) blend(prev, raw float64) float64 {
	if math.IsNaN(raw) {
		return prev
	}
	return Clamp(prev*s.alpha + Clamp(raw)*(1-s.alpha))
}

// State returns the current smoothed state.
func (s *Smoother) State() State {
	return s.state
}

// Output maps the state onto rig channels.
func (st State) Output() Output {
	return Output{
		EyeLx: MaxValue - st.X,
		EyeRx: st.X,
		EyeLy: st.Y,
		EyeRy: st.Y,
		EyeLH: st.Left,
		EyeRH: st.Right,
	}
}
