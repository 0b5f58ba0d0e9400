package hub

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"
)

// fakeConn blocks reads until closed and records text writes.
type fakeConn struct {
	frames chan []byte
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan []byte, 16), closed: make(chan struct{})}
}

func (f *fakeConn) SetReadLimit(int64)                {}
func (f *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (f *fakeConn) SetPongHandler(func(string) error) {}
func (f *fakeConn) Close() error                      { f.once.Do(func() { close(f.closed) }); return nil }
func (f *fakeConn) ReadMessage() (int, []byte, error) {
	<-f.closed
	return 0, nil, errors.New("closed")
}

func (f *fakeConn) WriteMessage(messageType int, data []byte) error {
	if messageType == websocket.TextMessage {
		f.frames <- data
	}
	return nil
}

func (f *fakeConn) next(t *testing.T) Envelope {
	t.Helper()
	select {
	case data := <-f.frames:
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("Bad frame %q: %v", data, err)
		}
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for frame")
	}
	return Envelope{}
}

func waitClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d clients, have %d", n, h.ClientCount())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestHub_BroadcastAndReplay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := New("test")
	go h.Run(ctx)

	first := newFakeConn()
	go NewClient(h, first).Run()
	waitClients(t, h, 1)

	if err := h.Publish(EventStatus, map[string]string{"state": "running"}); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if env := first.next(t); env.Type != EventStatus {
		t.Errorf("Expected status event, got %q", env.Type)
	}

	// A late subscriber gets the latest frame straight away.
	second := newFakeConn()
	go NewClient(h, second).Run()
	if env := second.next(t); env.Type != EventStatus {
		t.Errorf("Expected replayed status, got %q", env.Type)
	}
	waitClients(t, h, 2)

	second.Close()
	waitClients(t, h, 1)
}

func TestHub_StopDisconnects(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := New("test")
	go h.Run(ctx)

	conn := newFakeConn()
	done := make(chan struct{})
	go func() {
		defer close(done)
		NewClient(h, conn).Run()
	}()
	waitClients(t, h, 1)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Client did not exit after hub stopped")
	}
	if h.ClientCount() != 0 {
		t.Errorf("Expected no clients, got %d", h.ClientCount())
	}
}
