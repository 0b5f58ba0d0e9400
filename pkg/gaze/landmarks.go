package gaze

// Face mesh landmark ids (MediaPipe 478-point topology).
const (
	NoseTip = 1

	LeftEyeTop    = 159
	LeftEyeBottom = 145
	LeftEyeOuter  = 33
	LeftEyeInner  = 133

	RightEyeTop    = 386
	RightEyeBottom = 374
	RightEyeOuter  = 263
	RightEyeInner  = 362

	NumLandmarks = 478
)

// Expression score names read by the pipeline.
const (
	EyeBlinkLeft   = "eyeBlinkLeft"
	EyeBlinkRight  = "eyeBlinkRight"
	EyeSquintLeft  = "eyeSquintLeft"
	EyeSquintRight = "eyeSquintRight"
)

// Point is a landmark in normalized image coordinates (0-1).
// Absent marks ids a sparse detector did not produce.
type Point struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
	Absent bool    `json:"-"`
}

// Landmarks is one face's points, indexed by landmark id.
type Landmarks []Point

// At returns the point for id, or false if it is out of range or absent.
func (l Landmarks) At(id int) (Point, bool) {
	if id < 0 || id >= len(l) || l[id].Absent {
		return Point{}, false
	}
	return l[id], true
}

// Sparse builds a full-size Landmarks with only the given ids present.
func Sparse(points map[int]Point) Landmarks {
	lm := make(Landmarks, NumLandmarks)
	for i := range lm {
		lm[i].Absent = true
	}
	for id, p := range points {
		if id < 0 || id >= NumLandmarks {
			continue
		}
		p.Absent = false
		lm[id] = p
	}
	return lm
}

// Expressions maps expression names to scores in [0,1] (1 = fully expressed).
// A nil map means the detector produced no expression output.
type Expressions map[string]float64

// Face is one detector result for a single face.
type Face struct {
	Landmarks   Landmarks
	Expressions Expressions
}
