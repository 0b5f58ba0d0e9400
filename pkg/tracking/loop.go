package tracking

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-gaze/internal/timeutil"
	"github.com/teslashibe/go-gaze/pkg/camera"
	"github.com/teslashibe/go-gaze/pkg/detection"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/rig"
)

// Outcome describes what one loop cycle did.
type Outcome int

const (
	OutcomeNoFrame   Outcome = iota // stream had nothing yet
	OutcomeThrottled                // too soon after the last detection
	OutcomeNoFace                   // detector ran, nothing usable
	OutcomeError                    // detector failed
	OutcomeWritten                  // rig updated
)

// Stats counts loop activity since the session started.
type Stats struct {
	Cycles     uint64 `json:"cycles"`
	Detections uint64 `json:"detections"`
	Faces      uint64 `json:"faces"`
	Errors     uint64 `json:"errors"`
}

// Loop turns frames into rig writes at a bounded rate.
// Cycle is called from one goroutine only; State and Stats are safe
// from any goroutine.
type Loop struct {
	cfg      Config
	stream   camera.Stream
	detector detection.Detector
	rig      rig.Rig
	clock    timeutil.Clock
	logger   *slog.Logger

	start     time.Time
	last      time.Time // last detection
	processed bool

	mu       sync.Mutex
	pipeline *gaze.Pipeline

	cycles, detections, faces, failures atomic.Uint64
}

// NewLoop creates a loop over an acquired stream and detector.
func NewLoop(cfg Config, stream camera.Stream, detector detection.Detector, r rig.Rig, clock timeutil.Clock, logger *slog.Logger) *Loop {
	return &Loop{
		cfg:      cfg,
		stream:   stream,
		detector: detector,
		rig:      r,
		clock:    clock,
		logger:   logger,
		start:    clock.Now(),
		pipeline: gaze.NewPipeline(cfg.Gaze),
	}
}

// Run cycles on every refresh tick until ctx is done.
func (l *Loop) Run(ctx context.Context) {
	ticker := l.clock.NewTicker(l.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if ctx.Err() != nil {
				return
			}
			l.Cycle(ctx)
		}
	}
}

// Cycle runs one iteration: check the frame, throttle, detect, write.
func (l *Loop) Cycle(ctx context.Context) Outcome {
	l.cycles.Add(1)

	frame, ok := l.stream.Current()
	if !ok {
		return OutcomeNoFrame
	}

	now := l.clock.Now()
	if l.processed && now.Sub(l.last) < l.cfg.MinInterval {
		return OutcomeThrottled
	}
	l.last = now
	l.processed = true

	l.detections.Add(1)
	res, err := l.detector.Detect(ctx, frame, now.Sub(l.start).Milliseconds())
	if err != nil {
		l.failures.Add(1)
		if ctx.Err() == nil {
			l.logger.Debug("detect failed", "error", err)
		}
		return OutcomeError
	}

	face, ok := res.Face()
	if !ok {
		return OutcomeNoFace
	}

	l.mu.Lock()
	out, ok := l.pipeline.Process(face)
	l.mu.Unlock()
	if !ok {
		return OutcomeNoFace
	}

	l.faces.Add(1)
	l.write(out)
	return OutcomeWritten
}

func (l *Loop) write(out gaze.Output) {
	l.rig.SetChannel(rig.EyeLx, out.EyeLx)
	l.rig.SetChannel(rig.EyeLy, out.EyeLy)
	l.rig.SetChannel(rig.EyeRx, out.EyeRx)
	l.rig.SetChannel(rig.EyeRy, out.EyeRy)
	l.rig.SetChannel(rig.EyeLH, out.EyeLH)
	l.rig.SetChannel(rig.EyeRH, out.EyeRH)
}

// State returns the smoothed channel state.
func (l *Loop) State() gaze.State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pipeline.State()
}

// Stats returns activity counters.
func (l *Loop) Stats() Stats {
	return Stats{
		Cycles:     l.cycles.Load(),
		Detections: l.detections.Load(),
		Faces:      l.faces.Load(),
		Errors:     l.failures.Load(),
	}
}
