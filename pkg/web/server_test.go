package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-gaze/internal/timeutil"
	"github.com/teslashibe/go-gaze/pkg/camera"
	"github.com/teslashibe/go-gaze/pkg/cursor"
	"github.com/teslashibe/go-gaze/pkg/detection"
	"github.com/teslashibe/go-gaze/pkg/rig"
	"github.com/teslashibe/go-gaze/pkg/tracking"
)

type nopStream struct{ closes atomic.Int32 }

func (s *nopStream) Current() (camera.Frame, bool) { return camera.Frame{}, false }
func (s *nopStream) Close() error                  { s.closes.Add(1); return nil }

type fixture struct {
	server  *Server
	rec     *rig.Recorder
	stream  *nopStream
	openErr error
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{rec: rig.NewRecorder(), stream: &nopStream{}}

	source := camera.SourceFunc(func(context.Context, camera.Constraints) (camera.Stream, error) {
		if f.openErr != nil {
			return nil, f.openErr
		}
		return f.stream, nil
	})
	loader := detection.LoaderFunc(func(context.Context, detection.Options) (detection.Detector, error) {
		return detection.NewMock(), nil
	})

	binding := rig.NewBinding(f.rec)
	manager := tracking.NewManager(tracking.DefaultConfig(), source, loader,
		tracking.WithRig(binding),
		tracking.WithClock(timeutil.NewMockClock(time.Unix(0, 0))),
	)
	f.server = NewServer(DefaultConfig(), manager, cursor.New(binding))
	t.Cleanup(manager.Deactivate)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.server.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, &out), "body: %s", data)
	}
	return resp.StatusCode, out
}

func TestStatus_Initial(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodGet, "/api/status", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "cursor", body["mode"])

	tr, ok := body["tracking"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, false, tr["active"])
	assert.Equal(t, "idle", tr["state"])
}

func TestSetMode_FaceAndBack(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodPost, "/api/mode", `{"mode":"face"}`)
	require.Equal(t, http.StatusOK, code, "body: %v", body)
	assert.Equal(t, "face", body["mode"])
	tr := body["tracking"].(map[string]any)
	assert.Equal(t, true, tr["active"])
	assert.Equal(t, "running", tr["state"])
	assert.NotEmpty(t, tr["session_id"])

	// Same mode again is a no-op.
	code, _ = f.do(t, http.MethodPost, "/api/mode", `{"mode":"face"}`)
	assert.Equal(t, http.StatusOK, code)

	code, body = f.do(t, http.MethodPost, "/api/mode", `{"mode":"cursor"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "cursor", body["mode"])
	assert.Equal(t, "stopped", body["tracking"].(map[string]any)["state"])
	assert.Equal(t, int32(1), f.stream.closes.Load())
}

func TestSetMode_PermissionDenied(t *testing.T) {
	f := newFixture(t)
	f.openErr = camera.ErrPermissionDenied

	code, body := f.do(t, http.MethodPost, "/api/mode", `{"mode":"face"}`)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Contains(t, body["error"], "permission denied")
	assert.Equal(t, ModeCursor, f.server.Mode())
}

func TestSetMode_Invalid(t *testing.T) {
	f := newFixture(t)

	code, _ := f.do(t, http.MethodPost, "/api/mode", `{"mode":"telepathy"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(t, http.MethodPost, "/api/mode", `{not json`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCursor_Move(t *testing.T) {
	f := newFixture(t)

	code, _ := f.do(t, http.MethodPost, "/api/cursor/move", `{"x":10,"y":10}`)
	assert.Equal(t, http.StatusPreconditionFailed, code, "move before viewport")

	code, _ = f.do(t, http.MethodPost, "/api/cursor/viewport", `{"width":0,"height":600}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.do(t, http.MethodPost, "/api/cursor/viewport", `{"width":800,"height":600}`)
	require.Equal(t, http.StatusOK, code)

	code, _ = f.do(t, http.MethodPost, "/api/cursor/move", `{"x":200,"y":150}`)
	require.Equal(t, http.StatusNoContent, code)

	lx, _ := f.rec.Value(rig.EyeLx)
	rx, _ := f.rec.Value(rig.EyeRx)
	ly, _ := f.rec.Value(rig.EyeLy)
	assert.Equal(t, 75.0, lx)
	assert.Equal(t, 25.0, rx)
	assert.Equal(t, 75.0, ly)
}

func TestCursor_MoveIgnoredInFaceMode(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/cursor/viewport", `{"width":800,"height":600}`)

	code, _ := f.do(t, http.MethodPost, "/api/mode", `{"mode":"face"}`)
	require.Equal(t, http.StatusOK, code)

	code, _ = f.do(t, http.MethodPost, "/api/cursor/move", `{"x":200,"y":150}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, 0, f.rec.Len())
}

func TestWebSocket_RequiresUpgrade(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/ws/status", nil)
	resp, err := f.server.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}
