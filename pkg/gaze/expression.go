package gaze

import "math"

// ExpressionOpenness is per-eye openness derived from expression scores.
type ExpressionOpenness struct {
	BlinkLeft, BlinkRight   float64
	SquintLeft, SquintRight float64
}

// ExtractExpressions inverts blink and squint scores into openness
// (score 0 → 100, score 1 → 0). Missing scores read as fully open.
func ExtractExpressions(e Expressions) ExpressionOpenness {
	return ExpressionOpenness{
		BlinkLeft:   openness(e, EyeBlinkLeft),
		BlinkRight:  openness(e, EyeBlinkRight),
		SquintLeft:  openness(e, EyeSquintLeft),
		SquintRight: openness(e, EyeSquintRight),
	}
}

func openness(e Expressions, name string) float64 {
	score, ok := e[name]
	if !ok || math.IsNaN(score) {
		return MaxValue
	}
	score = math.Max(0, math.Min(1, score))
	return (1 - score) * 100
}

// Fuse returns the most-closed reading: any single source seeing a closed
// eye wins.
func Fuse(geometry, blink, squint float64) float64 {
	return math.Min(geometry, math.Min(blink, squint))
}
