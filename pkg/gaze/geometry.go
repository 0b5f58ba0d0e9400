package gaze

import "math"

// Geometry is the landmark-only estimate for one frame.
type Geometry struct {
	X, Y float64 // Gaze, 0-100

	// Openness by eye aspect ratio, 0-100. An eye with missing points
	// reports MaxValue so it never decides the fused minimum.
	Left, Right float64
}

type eyeIDs struct {
	top, bottom, outer, inner int
}

var (
	leftEye  = eyeIDs{LeftEyeTop, LeftEyeBottom, LeftEyeOuter, LeftEyeInner}
	rightEye = eyeIDs{RightEyeTop, RightEyeBottom, RightEyeOuter, RightEyeInner}
)

// ExtractGeometry derives gaze from the nose tip and eye openness from the
// eyelid/corner points. It returns false when there is no usable face.
func ExtractGeometry(lm Landmarks, cfg Config) (Geometry, bool) {
	nose, ok := lm.At(NoseTip)
	if !ok || !finite(nose.X) || !finite(nose.Y) {
		return Geometry{}, false
	}

	return Geometry{
		X:     gain(nose.X*100, cfg.GazeGain),
		Y:     gain((1-nose.Y)*100, cfg.GazeGain), // camera y grows downward
		Left:  eyeOpenness(lm, leftEye, cfg),
		Right: eyeOpenness(lm, rightEye, cfg),
	}, true
}

// gain stretches v around the midpoint and clamps.
func gain(v, g float64) float64 {
	return Clamp(50 + (v-50)*g)
}

// AspectRatio returns eyelid height over corner width, or fallback when
// the width is zero.
func AspectRatio(top, bottom, outer, inner Point, fallback float64) float64 {
	width := math.Abs(inner.X - outer.X)
	if width == 0 {
		return fallback
	}
	return math.Abs(top.Y-bottom.Y) / width
}

// RatioToOpenness maps an eye aspect ratio onto 0-100.
func RatioToOpenness(ratio float64, cfg Config) float64 {
	return Clamp(50 + ((ratio-cfg.OpenRatio)/cfg.OpenRatioSpan)*50*cfg.EyeGain)
}

func eyeOpenness(lm Landmarks, ids eyeIDs, cfg Config) float64 {
	top, ok1 := lm.At(ids.top)
	bottom, ok2 := lm.At(ids.bottom)
	outer, ok3 := lm.At(ids.outer)
	inner, ok4 := lm.At(ids.inner)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return MaxValue
	}
	ratio := AspectRatio(top, bottom, outer, inner, cfg.ZeroWidthRatio)
	if math.IsNaN(ratio) {
		return MaxValue
	}
	return RatioToOpenness(ratio, cfg)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
