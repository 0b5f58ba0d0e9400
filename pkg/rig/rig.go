// Package rig is the boundary to the animation rig: a sink of named
// numeric channels in [0,100].
package rig

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Channel names understood by the eye rig.
const (
	EyeLx = "eyeLx"
	EyeLy = "eyeLy"
	EyeRx = "eyeRx"
	EyeRy = "eyeRy"
	EyeLH = "eyeLH" // left eye openness (face tracking only)
	EyeRH = "eyeRH" // right eye openness (face tracking only)
)

// Channels lists every channel name.
var Channels = []string{EyeLx, EyeLy, EyeRx, EyeRy, EyeLH, EyeRH}

// Rig accepts channel writes. Implementations must tolerate frequent,
// repeated writes of the same value.
type Rig interface {
	SetChannel(name string, value float64)
}

// Func adapts a function to Rig.
type Func func(name string, value float64)

// SetChannel calls f.
func (f Func) SetChannel(name string, value float64) {
	f(name, value)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Binding holds the current rig and can be re-pointed while writers are
// running. Writes go nowhere until a rig is set. Values are clamped.
type Binding struct {
	current atomic.Pointer[rigBox]
}

type rigBox struct{ r Rig }

// NewBinding returns a binding to r (which may be nil).
func NewBinding(r Rig) *Binding {
	b := &Binding{}
	b.Set(r)
	return b
}

// Set replaces the bound rig.
func (b *Binding) Set(r Rig) {
	if r == nil {
		b.current.Store(nil)
		return
	}
	b.current.Store(&rigBox{r: r})
}

// Bound reports whether a rig is set.
func (b *Binding) Bound() bool {
	return b.current.Load() != nil
}

// SetChannel forwards a clamped write to the bound rig.
func (b *Binding) SetChannel(name string, value float64) {
	if box := b.current.Load(); box != nil {
		box.r.SetChannel(name, clamp(value))
	}
}

// Write is one recorded channel write.
type Write struct {
	Channel string
	Value   float64
}

// Recorder keeps every write and the latest value per channel.
type Recorder struct {
	mu     sync.Mutex
	writes []Write
	values map[string]float64
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{values: make(map[string]float64)}
}

// SetChannel records the write.
func (r *Recorder) SetChannel(name string, value float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, Write{Channel: name, Value: value})
	r.values[name] = value
}

// Writes returns a copy of all writes in order.
func (r *Recorder) Writes() []Write {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Write(nil), r.writes...)
}

// Value returns the latest value written to name.
func (r *Recorder) Value(name string) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[name]
	return v, ok
}

// Len returns the number of writes.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.writes)
}

// Logger is a rig that logs writes at debug level. Useful without a renderer.
type Logger struct {
	L *slog.Logger
}

// SetChannel logs the write.
func (l Logger) SetChannel(name string, value float64) {
	l.L.Debug("rig write", "channel", name, "value", value)
}
