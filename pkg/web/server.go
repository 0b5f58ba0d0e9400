// Package web serves the control API: tracking mode, face-tracking
// session status and cursor input.
package web

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"

	"github.com/teslashibe/go-gaze/internal/log"
	"github.com/teslashibe/go-gaze/pkg/cursor"
	"github.com/teslashibe/go-gaze/pkg/hub"
	"github.com/teslashibe/go-gaze/pkg/tracking"
)

// Mode selects what drives the eyes.
type Mode string

const (
	ModeCursor Mode = "cursor"
	ModeFace   Mode = "face"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeCursor || m == ModeFace
}

// Config holds server settings
type Config struct {
	Port            string        `yaml:"port" json:"port"`
	StaticDir       string        `yaml:"static_dir" json:"static_dir"` // optional front end
	StartMode       Mode          `yaml:"start_mode" json:"start_mode"`
	ActivateTimeout time.Duration `yaml:"activate_timeout" json:"activate_timeout"`
}

// DefaultConfig returns cursor mode on :8080
func DefaultConfig() Config {
	return Config{
		Port:            "8080",
		StartMode:       ModeCursor,
		ActivateTimeout: 30 * time.Second, // covers camera permission prompts and model download
	}
}

// Status is the full state reported to clients.
type Status struct {
	Mode     Mode            `json:"mode"`
	Tracking tracking.Status `json:"tracking"`
	Viewport cursor.Viewport `json:"viewport"`
}

// Server is the control API server
type Server struct {
	app     *fiber.App
	cfg     Config
	logger  *slog.Logger
	manager *tracking.Manager
	cursor  *cursor.Tracker

	statusHub *hub.Hub

	switchMu sync.Mutex // serializes mode changes
	mu       sync.RWMutex
	mode     Mode
}

// NewServer creates a server in cursor mode. It takes over the
// manager's OnChange hook.
func NewServer(cfg Config, manager *tracking.Manager, cur *cursor.Tracker) *Server {
	s := &Server{
		cfg:       cfg,
		logger:    log.Component("web"),
		manager:   manager,
		cursor:    cur,
		statusHub: hub.New("status"),
		mode:      ModeCursor,
	}
	manager.OnChange = func(tracking.Status) { s.publishStatus() }

	app := fiber.New(fiber.Config{
		AppName:               "gaze",
		DisableStartupMessage: true,
		JSONEncoder:           jsoniter.ConfigCompatibleWithStandardLibrary.Marshal,
		JSONDecoder:           jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal,
	})

	app.Use(cors.New())

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/mode", s.handleGetMode)
	api.Post("/mode", s.handleSetMode)
	api.Post("/cursor/viewport", s.handleViewport)
	api.Post("/cursor/move", s.handleMove)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/cursor", websocket.New(s.handleCursorWS))

	s.app = app
	return s
}

// Run serves until ctx is done, then shuts down and ends any face
// tracking session.
func (s *Server) Run(ctx context.Context) error {
	go s.statusHub.Run(ctx)

	if s.cfg.StartMode == ModeFace {
		if _, err := s.SetMode(ctx, ModeFace); err != nil {
			s.logger.Warn("start in face mode failed, staying in cursor mode", "error", err)
		}
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", "http://localhost:"+s.cfg.Port)
		errc <- s.app.Listen(":" + s.cfg.Port)
	}()

	select {
	case err := <-errc:
		s.manager.Deactivate()
		return err
	case <-ctx.Done():
	}

	err := s.app.ShutdownWithTimeout(5 * time.Second)
	s.manager.Deactivate()
	return err
}

// Mode returns the current mode.
func (s *Server) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// SetMode switches between cursor and face tracking. Entering face mode
// activates a session and only commits the switch once it is running.
func (s *Server) SetMode(ctx context.Context, m Mode) (Status, error) {
	s.switchMu.Lock()
	defer s.switchMu.Unlock()

	if m == s.Mode() {
		return s.Status(), nil
	}

	switch m {
	case ModeFace:
		ctx, cancel := context.WithTimeout(ctx, s.cfg.ActivateTimeout)
		defer cancel()
		if _, err := s.manager.Activate(ctx); err != nil {
			return s.Status(), err
		}
	case ModeCursor:
		s.manager.Deactivate()
	}

	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()

	s.logger.Info("mode changed", "mode", m)
	s.publishStatus()
	return s.Status(), nil
}

// Status returns the current mode, session and viewport.
func (s *Server) Status() Status {
	return Status{
		Mode:     s.Mode(),
		Tracking: s.manager.Status(),
		Viewport: s.cursor.Viewport(),
	}
}

func (s *Server) publishStatus() {
	if err := s.statusHub.Publish(hub.EventStatus, s.Status()); err != nil {
		s.logger.Warn("publish status", "error", err)
	}
}

// App exposes the fiber app, mainly for tests
func (s *Server) App() *fiber.App {
	return s.app
}
