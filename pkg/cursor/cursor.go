// Package cursor steers the eyes toward a pointer position.
package cursor

import (
	"errors"
	"sync"

	"github.com/teslashibe/go-gaze/pkg/gaze"
	"github.com/teslashibe/go-gaze/pkg/rig"
)

// ErrNoViewport is returned by Move before a usable viewport is set.
var ErrNoViewport = errors.New("cursor: viewport not set")

// Viewport is the pointer coordinate space, in pixels.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Valid reports whether both dimensions are positive.
func (v Viewport) Valid() bool {
	return v.Width > 0 && v.Height > 0
}

// Position is a pointer location within the viewport.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Tracker maps pointer positions onto the gaze channels. Openness
// channels are left alone.
type Tracker struct {
	rig rig.Rig

	mu       sync.Mutex
	viewport Viewport
	last     Position
	moved    bool
}

// New creates a tracker writing to r.
func New(r rig.Rig) *Tracker {
	return &Tracker{rig: r}
}

// SetViewport records the coordinate space. Zero or negative sizes
// disable the tracker until a valid one is set.
func (t *Tracker) SetViewport(v Viewport) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.viewport = v
}

// Viewport returns the current coordinate space.
func (t *Tracker) Viewport() Viewport {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.viewport
}

// Move points the eyes at p.
func (t *Tracker) Move(p Position) error {
	t.mu.Lock()
	vp := t.viewport
	if vp.Valid() {
		t.last = p
		t.moved = true
	}
	t.mu.Unlock()

	if !vp.Valid() {
		return ErrNoViewport
	}

	nx := gaze.Clamp(p.X / vp.Width * 100)
	ny := gaze.Clamp(100 - p.Y/vp.Height*100) // screen y grows downward

	t.rig.SetChannel(rig.EyeLx, 100-nx)
	t.rig.SetChannel(rig.EyeRx, nx)
	t.rig.SetChannel(rig.EyeLy, ny)
	t.rig.SetChannel(rig.EyeRy, ny)
	return nil
}

// Last returns the most recent accepted position.
func (t *Tracker) Last() (Position, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last, t.moved
}
