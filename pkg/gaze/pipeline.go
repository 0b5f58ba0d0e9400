package gaze

// Pipeline runs extraction, fusion and smoothing for one session.
// It is not safe for concurrent use; the detection loop is its only writer.
type Pipeline struct {
	cfg      Config
	smoother *Smoother
}

// NewPipeline creates a pipeline with neutral state
func NewPipeline(cfg Config) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		smoother: NewSmoother(cfg.Smoothing, cfg.Neutral),
	}
}

// Raw computes the unsmoothed signal for a face.
// It returns false when the landmarks carry no usable face.
func (p *Pipeline) Raw(face Face) (Signal, bool) {
	geo, ok := ExtractGeometry(face.Landmarks, p.cfg)
	if !ok {
		return Signal{}, false
	}
	expr := ExtractExpressions(face.Expressions)

	return Signal{
		X:     geo.X,
		Y:     geo.Y,
		Left:  Fuse(geo.Left, expr.BlinkLeft, expr.SquintLeft),
		Right: Fuse(geo.Right, expr.BlinkRight, expr.SquintRight),
	}, true
}

// Process updates the smoothed state from a face and returns the rig
// output. On false the state is left exactly as it was.
func (p *Pipeline) Process(face Face) (Output, bool) {
	raw, ok := p.Raw(face)
	if !ok {
		return Output{}, false
	}
	return p.smoother.Update(raw).Output(), true
}

// State returns the current smoothed state.
func (p *Pipeline) State() State {
	return p.smoother.State()
}
