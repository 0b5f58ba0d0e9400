package tracking

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/internal/timeutil"
	"github.com/teslashibe/go-gaze/pkg/camera"
	"github.com/teslashibe/go-gaze/pkg/detection"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/rig"
)

// Session is one activation of face tracking: an acquired stream and
// detector driving a detection loop.
type Session struct {
	ID        string
	StartedAt time.Time

	cfg      Config
	source   camera.Source
	loader   detection.Loader
	rig      rig.Rig
	clock    timeutil.Clock
	logger   *slog.Logger
	onChange func(*Session)

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    State
	released bool
	stream   camera.Stream
	detector detection.Detector
	loop     *Loop
	loopDone chan struct{}
	err      error
}

func newSession(cfg Config, source camera.Source, loader detection.Loader, r rig.Rig, clock timeutil.Clock, logger *slog.Logger, onChange func(*Session)) *Session {
	id := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:        id,
		StartedAt: clock.Now(),
		cfg:       cfg,
		source:    source,
		loader:    loader,
		rig:       r,
		clock:     clock,
		logger:    logger.With("session", id[:8]),
		onChange:  onChange,
		ctx:       ctx,
		cancel:    cancel,
		state:     StateIdle,
	}
}

// start acquires the frame source, then the detector, then launches the
// loop. Cancelling ctx or calling Stop at any point unwinds whatever was
// acquired.
func (s *Session) start(ctx context.Context) error {
	stop := context.AfterFunc(ctx, s.cancel)
	defer stop()
	if ctx.Err() != nil {
		s.cancel()
	}

	if !s.setState(StateInitializing) {
		return s.fail("activate", context.Canceled)
	}
	s.logger.Info("activating", "width", s.cfg.Camera.Width, "height", s.cfg.Camera.Height, "facing", s.cfg.Camera.Facing)

	stream, err := acquire(s.ctx, func(ctx context.Context) (camera.Stream, error) {
		return s.source.Open(ctx, s.cfg.Camera)
	}, closeStream)
	if err != nil {
		return s.fail("open camera", err)
	}
	if !s.hold(func() { s.stream = stream }) {
		closeStream(stream)
		return s.fail("open camera", context.Canceled)
	}

	det, err := acquire(s.ctx, func(ctx context.Context) (detection.Detector, error) {
		return s.loader.Load(ctx, s.cfg.Detector)
	}, closeDetector)
	if err != nil {
		return s.fail("load detector", err)
	}
	if !s.hold(func() { s.detector = det }) {
		closeDetector(det)
		return s.fail("load detector", context.Canceled)
	}

	loop := NewLoop(s.cfg, stream, det, s.rig, s.clock, s.logger)
	done := make(chan struct{})
	if !s.hold(func() {
		s.loop = loop
		s.loopDone = done
		s.state = StateRunning
	}) {
		return s.fail("start loop", context.Canceled)
	}
	go func() {
		defer close(done)
		loop.Run(s.ctx)
	}()

	s.logger.Info("running")
	s.notify()
	return nil
}

// hold runs fn under the lock unless the session is already unwinding.
func (s *Session) hold(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released || s.ctx.Err() != nil {
		return false
	}
	fn()
	return true
}

func (s *Session) fail(op string, err error) error {
	err = fmt.Errorf("%s: %w", op, err)
	if s.ctx.Err() != nil {
		s.logger.Info("activation cancelled", "during", op)
	} else {
		s.logger.Warn("activation failed", "error", err)
	}

	s.mu.Lock()
	s.err = err
	s.mu.Unlock()

	s.Stop()
	return err
}

// Stop cancels the session and releases, in order, the loop, the stream
// and the detector. It returns once everything held is released and is
// safe to call repeatedly and concurrently.
func (s *Session) Stop() {
	s.cancel()

	s.mu.Lock()
	done := s.loopDone
	s.mu.Unlock()
	if done != nil {
		<-done
	}

	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	stream, det := s.stream, s.detector
	s.stream, s.detector = nil, nil
	s.state = StateStopped
	s.mu.Unlock()

	if stream != nil {
		closeStream(stream)
	}
	if det != nil {
		closeDetector(det)
	}
	s.logger.Info("stopped")
	s.notify()
}

// setState moves to st unless the session is already unwinding.
func (s *Session) setState(st State) bool {
	if !s.hold(func() { s.state = st }) {
		return false
	}
	s.notify()
	return true
}

func (s *Session) notify() {
	if s.onChange != nil {
		s.onChange(s)
	}
}

// State returns the lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the activation failure, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Smoothed returns the smoothed channel state. It is false before the
// loop starts.
func (s *Session) Smoothed() (gaze.State, bool) {
	s.mu.Lock()
	loop := s.loop
	s.mu.Unlock()
	if loop == nil {
		return gaze.State{}, false
	}
	return loop.State(), true
}

// Stats returns loop counters, zero before the loop starts.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	loop := s.loop
	s.mu.Unlock()
	if loop == nil {
		return Stats{}
	}
	return loop.Stats()
}

func closeStream(st camera.Stream) {
	if err := st.Close(); err != nil {
		log.Warn("close camera stream", "error", err)
	}
}

func closeDetector(d detection.Detector) {
	if err := d.Close(); err != nil {
		log.Warn("close detector", "error", err)
	}
}

// acquire runs open in the background and waits for it or ctx, whichever
// comes first. A result that arrives after ctx is done is released.
func acquire[T any](ctx context.Context, open func(context.Context) (T, error), release func(T)) (T, error) {
	type result struct {
		v   T
		err error
	}
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}

	ch := make(chan result, 1)
	go func() {
		v, err := open(ctx)
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.err == nil {
				release(r.v)
			}
		}()
		var zero T
		return zero, ctx.Err()
	}
}
