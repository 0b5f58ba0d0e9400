package detection

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/camera"
	"github.com/teslashibe/go-gaze/pkg/gaze"
)

// Sidecar message types
const (
	msgInit   = "init"
	msgReady  = "ready"
	msgDetect = "detect"
	msgResult = "result"
	msgError  = "error"
)

// SidecarConfig holds the landmarker sidecar connection settings
type SidecarConfig struct {
	URL            string        `yaml:"url" json:"url"`
	InitTimeout    time.Duration `yaml:"init_timeout" json:"init_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// DefaultSidecarConfig points at a landmarker on localhost
func DefaultSidecarConfig() SidecarConfig {
	return SidecarConfig{
		URL:            "ws://127.0.0.1:8765/landmarker",
		InitTimeout:    30 * time.Second,
		RequestTimeout: time.Second,
	}
}

// SidecarError is an error reported by the landmarker process.
type SidecarError struct {
	Op      string
	Message string
}

// Error implements the error interface.
func (e *SidecarError) Error() string {
	return fmt.Sprintf("detection sidecar [%s]: %s", e.Op, e.Message)
}

type sidecarRequest struct {
	Type              string `json:"type"`
	ModelPath         string `json:"model_path,omitempty"`
	MaxFaces          int    `json:"max_faces,omitempty"`
	OutputBlendshapes bool   `json:"output_blendshapes,omitempty"`
	TimestampMs       int64  `json:"timestamp_ms,omitempty"`
	Width             int    `json:"width,omitempty"`
	Height            int    `json:"height,omitempty"`
	Image             []byte `json:"image,omitempty"` // JPEG, base64 on the wire
}

type sidecarFace struct {
	Landmarks   []gaze.Point       `json:"landmarks"`
	Blendshapes map[string]float64 `json:"blendshapes,omitempty"`
}

type sidecarResponse struct {
	Type        string        `json:"type"`
	Message     string        `json:"message,omitempty"`
	TimestampMs int64         `json:"timestamp_ms,omitempty"`
	Faces       []sidecarFace `json:"faces,omitempty"`
}

// SidecarLoader connects to a MediaPipe face landmarker running in a
// separate process and speaking JSON over a websocket.
type SidecarLoader struct {
	config SidecarConfig
	dialer *websocket.Dialer
}

// NewSidecarLoader creates a loader for the given sidecar
func NewSidecarLoader(cfg SidecarConfig) *SidecarLoader {
	return &SidecarLoader{
		config: cfg,
		dialer: websocket.DefaultDialer,
	}
}

// Load dials the sidecar and asks it to load the model.
// Any failure is reported as ErrModelLoad.
func (l *SidecarLoader) Load(ctx context.Context, opts Options) (Detector, error) {
	if l.config.InitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.config.InitTimeout)
		defer cancel()
	}

	conn, _, err := l.dialer.DialContext(ctx, l.config.URL, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: dial %s: %v", ErrModelLoad, l.config.URL, err)
	}

	d := &SidecarDetector{
		conn:    conn,
		timeout: l.config.RequestTimeout,
		logger:  log.Component("sidecar"),
	}

	// Unblock the init read if ctx is cancelled mid-handshake
	stop := context.AfterFunc(ctx, func() { conn.SetReadDeadline(time.Now()) })
	defer stop()

	var resp sidecarResponse
	err = d.roundTrip(sidecarRequest{
		Type:              msgInit,
		ModelPath:         opts.ModelPath,
		MaxFaces:          opts.MaxFaces,
		OutputBlendshapes: opts.WantExpressions,
	}, &resp, deadlineOf(ctx))
	if err == nil && resp.Type == msgError {
		err = &SidecarError{Op: msgInit, Message: resp.Message}
	} else if err == nil && resp.Type != msgReady {
		err = &SidecarError{Op: msgInit, Message: "unexpected reply " + resp.Type}
	}
	if err != nil {
		conn.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}

	d.logger.Info("landmarker ready", "url", l.config.URL, "model", opts.ModelPath)
	return d, nil
}

func deadlineOf(ctx context.Context) time.Time {
	if dl, ok := ctx.Deadline(); ok {
		return dl
	}
	return time.Time{}
}

// SidecarDetector is a connected landmarker
type SidecarDetector struct {
	conn    *websocket.Conn
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex // one request in flight
	closed bool
}

// Detect sends the frame and waits for the landmarker's reply.
func (d *SidecarDetector) Detect(ctx context.Context, frame camera.Frame, timestampMs int64) (Result, error) {
	deadline := deadlineOf(ctx)
	if d.timeout > 0 {
		if t := time.Now().Add(d.timeout); deadline.IsZero() || t.Before(deadline) {
			deadline = t
		}
	}

	var resp sidecarResponse
	err := d.roundTrip(sidecarRequest{
		Type:        msgDetect,
		TimestampMs: timestampMs,
		Width:       frame.Width,
		Height:      frame.Height,
		Image:       frame.Data,
	}, &resp, deadline)
	if err != nil {
		return Result{}, err
	}

	switch resp.Type {
	case msgResult:
	case msgError:
		return Result{}, &SidecarError{Op: msgDetect, Message: resp.Message}
	default:
		return Result{}, &SidecarError{Op: msgDetect, Message: "unexpected reply " + resp.Type}
	}

	var res Result
	for _, f := range resp.Faces {
		if len(f.Landmarks) == 0 {
			continue
		}
		res.Landmarks = append(res.Landmarks, gaze.Landmarks(f.Landmarks))
		if f.Blendshapes != nil {
			res.Expressions = append(res.Expressions, gaze.Expressions(f.Blendshapes))
		}
		break // single face
	}
	return res, nil
}

func (d *SidecarDetector) roundTrip(req sidecarRequest, resp *sidecarResponse, deadline time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}

	d.conn.SetWriteDeadline(deadline)
	if err := d.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("send %s: %w", req.Type, err)
	}
	d.conn.SetReadDeadline(deadline)
	if err := d.conn.ReadJSON(resp); err != nil {
		return fmt.Errorf("read %s reply: %w", req.Type, err)
	}
	return nil
}

// Close tells the sidecar we're done and drops the connection.
func (d *SidecarDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	d.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return d.conn.Close()
}
