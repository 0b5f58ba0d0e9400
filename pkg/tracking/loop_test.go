package tracking

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/internal/timeutil"
	"github.com/teslashibe/go-gaze/pkg/camera"
	"github.com/teslashibe/go-gaze/pkg/detection"
	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/rig"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeStream serves a fixed frame once ready.
type fakeStream struct {
	mu     sync.Mutex
	ready  bool
	reads  int
	closes int
	events *events
}

func newReadyStream(ev *events) *fakeStream {
	return &fakeStream{ready: true, events: ev}
}

func (s *fakeStream) Current() (camera.Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	if !s.ready {
		return camera.Frame{}, false
	}
	return camera.Frame{Data: []byte{0xff, 0xd8}, Width: 640, Height: 480}, true
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	s.closes++
	s.mu.Unlock()
	s.events.add("stream")
	return nil
}

func (s *fakeStream) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

func (s *fakeStream) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// events records release order across resources.
type events struct {
	mu   sync.Mutex
	list []string
}

func (e *events) add(name string) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.list = append(e.list, name)
}

func (e *events) all() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.list...)
}

func centeredFace() gaze.Face {
	return gaze.Face{Landmarks: gaze.Sparse(map[int]gaze.Point{
		gaze.NoseTip: {X: 0.5, Y: 0.5},
	})}
}

func newTestLoop(stream camera.Stream, det detection.Detector, r rig.Rig, clock timeutil.Clock) *Loop {
	return NewLoop(DefaultConfig(), stream, det, r, clock, log.Discard())
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestLoop_NoFrameReady(t *testing.T) {
	stream := &fakeStream{}
	det := detection.NewFaceMock(centeredFace())
	rec := rig.NewRecorder()
	loop := newTestLoop(stream, det, rec, timeutil.NewMockClock(epoch))

	if got := loop.Cycle(context.Background()); got != OutcomeNoFrame {
		t.Errorf("Expected OutcomeNoFrame, got %v", got)
	}
	if det.DetectCalls() != 0 {
		t.Errorf("Detector called %d times without a frame", det.DetectCalls())
	}
	if rec.Len() != 0 {
		t.Errorf("Expected no writes, got %d", rec.Len())
	}
}

func TestLoop_Throttle(t *testing.T) {
	clock := timeutil.NewMockClock(epoch)
	det := detection.NewFaceMock(centeredFace())
	loop := newTestLoop(newReadyStream(nil), det, rig.NewRecorder(), clock)
	ctx := context.Background()

	steps := []struct {
		advance time.Duration
		want    Outcome
	}{
		{0, OutcomeWritten}, // first cycle always runs
		{10 * time.Millisecond, OutcomeThrottled},
		{10 * time.Millisecond, OutcomeThrottled},
		{12 * time.Millisecond, OutcomeThrottled}, // 32ms
		{1 * time.Millisecond, OutcomeWritten},    // 33ms
		{16 * time.Millisecond, OutcomeThrottled},
		{17 * time.Millisecond, OutcomeWritten},
	}
	for i, s := range steps {
		clock.Advance(s.advance)
		if got := loop.Cycle(ctx); got != s.want {
			t.Errorf("Step %d: expected outcome %v, got %v", i, s.want, got)
		}
	}

	if det.DetectCalls() != 3 {
		t.Errorf("Expected 3 detector calls, got %d", det.DetectCalls())
	}
	if diff := cmp.Diff([]int64{0, 33, 66}, det.Timestamps()); diff != "" {
		t.Errorf("Detector timestamps (-want +got):\n%s", diff)
	}
}

func TestLoop_NoLandmarksNoWrites(t *testing.T) {
	rec := rig.NewRecorder()
	loop := newTestLoop(newReadyStream(nil), detection.NewMock(), rec, timeutil.NewMockClock(epoch))

	if got := loop.Cycle(context.Background()); got != OutcomeNoFace {
		t.Errorf("Expected OutcomeNoFace, got %v", got)
	}
	if rec.Len() != 0 {
		t.Errorf("Expected no channel writes, got %v", rec.Writes())
	}
}

func TestLoop_WritesAllChannels(t *testing.T) {
	rec := rig.NewRecorder()
	loop := newTestLoop(newReadyStream(nil), detection.NewFaceMock(centeredFace()), rec, timeutil.NewMockClock(epoch))

	if got := loop.Cycle(context.Background()); got != OutcomeWritten {
		t.Fatalf("Expected OutcomeWritten, got %v", got)
	}
	if rec.Len() != len(rig.Channels) {
		t.Fatalf("Expected %d writes, got %d", len(rig.Channels), rec.Len())
	}

	// Centered nose holds gaze at 50; eyes without geometry or
	// expressions read open and pull openness up from neutral.
	want := map[string]float64{
		rig.EyeLx: 50, rig.EyeRx: 50,
		rig.EyeLy: 50, rig.EyeRy: 50,
		rig.EyeLH: 65, rig.EyeRH: 65,
	}
	for ch, w := range want {
		v, ok := rec.Value(ch)
		if !ok || !approx(v, w) {
			t.Errorf("%s = %v, want %v", ch, v, w)
		}
	}
}

func TestLoop_NoFaceHoldsState(t *testing.T) {
	clock := timeutil.NewMockClock(epoch)
	det := detection.NewFaceMock(gaze.Face{Landmarks: gaze.Sparse(map[int]gaze.Point{
		gaze.NoseTip: {X: 0.2, Y: 0.8},
	})})
	rec := rig.NewRecorder()
	loop := newTestLoop(newReadyStream(nil), det, rec, clock)
	ctx := context.Background()

	loop.Cycle(ctx)
	before := loop.State()
	writes := rec.Len()

	det.DetectFunc = func(context.Context, camera.Frame, int64) (detection.Result, error) {
		return detection.Result{}, nil
	}
	for i := 0; i < 5; i++ {
		clock.Advance(40 * time.Millisecond)
		loop.Cycle(ctx)
	}

	if loop.State() != before {
		t.Errorf("State changed without a face: %+v -> %+v", before, loop.State())
	}
	if rec.Len() != writes {
		t.Errorf("Expected no writes without a face, got %d more", rec.Len()-writes)
	}
}

func TestLoop_DetectError(t *testing.T) {
	det := detection.NewMock()
	det.DetectFunc = func(context.Context, camera.Frame, int64) (detection.Result, error) {
		return detection.Result{}, errors.New("inference failed")
	}
	rec := rig.NewRecorder()
	loop := newTestLoop(newReadyStream(nil), det, rec, timeutil.NewMockClock(epoch))

	if got := loop.Cycle(context.Background()); got != OutcomeError {
		t.Errorf("Expected OutcomeError, got %v", got)
	}
	if rec.Len() != 0 {
		t.Errorf("Expected no writes, got %d", rec.Len())
	}
	if s := loop.Stats(); s.Errors != 1 || s.Detections != 1 || s.Faces != 0 {
		t.Errorf("Unexpected stats %+v", s)
	}
}

func TestLoop_RunStopsOnCancel(t *testing.T) {
	clock := timeutil.NewMockClock(epoch)
	det := detection.NewFaceMock(centeredFace())
	loop := newTestLoop(newReadyStream(nil), det, rig.NewRecorder(), clock)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		loop.Run(ctx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for det.DetectCalls() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Loop never detected")
		}
		clock.Advance(loop.cfg.RefreshInterval)
		time.Sleep(time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
