package web

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-gaze/pkg/camera"
	"github.com/teslashibe/go-gaze/pkg/cursor"
	"github.com/teslashibe/go-gaze/pkg/hub"
	"github.com/teslashibe/go-gaze/pkg/tracking"
)

var validate = validator.New()

// ModeRequest is the body of POST /api/mode
type ModeRequest struct {
	Mode Mode `json:"mode" validate:"required,oneof=cursor face"`
}

// ViewportRequest is the body of POST /api/cursor/viewport
type ViewportRequest struct {
	Width  float64 `json:"width" validate:"gt=0"`
	Height float64 `json:"height" validate:"gt=0"`
}

// MoveRequest is the body of POST /api/cursor/move
type MoveRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// parseBody decodes and validates a JSON body into out.
func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return validate.Struct(out)
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
}

// CursorMessage is a frame on /ws/cursor: a viewport or a move.
type CursorMessage struct {
	Type   string  `json:"type"` // "viewport" or "move"
	X      float64 `json:"x,omitempty"`
	Y      float64 `json:"y,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// handleStatus returns mode, session and viewport
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.Status())
}

func (s *Server) handleGetMode(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"mode": s.Mode()})
}

// handleSetMode switches tracking method
func (s *Server) handleSetMode(c *fiber.Ctx) error {
	var req ModeRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, err)
	}

	st, err := s.SetMode(context.Background(), req.Mode)
	if err != nil {
		return c.Status(activationStatus(err)).JSON(fiber.Map{
			"error":  err.Error(),
			"status": st,
		})
	}
	return c.JSON(st)
}

// activationStatus maps an activation failure to an HTTP status.
func activationStatus(err error) int {
	switch {
	case errors.Is(err, tracking.ErrAlreadyActive):
		return fiber.StatusConflict
	case errors.Is(err, camera.ErrPermissionDenied):
		return fiber.StatusForbidden
	case errors.Is(err, camera.ErrDeviceUnavailable):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default: // includes detection.ErrModelLoad
		return fiber.StatusInternalServerError
	}
}

func (s *Server) handleViewport(c *fiber.Ctx) error {
	var req ViewportRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, err)
	}
	vp := cursor.Viewport{Width: req.Width, Height: req.Height}
	s.cursor.SetViewport(vp)
	return c.JSON(vp)
}

func (s *Server) handleMove(c *fiber.Ctx) error {
	var req MoveRequest
	if err := parseBody(c, &req); err != nil {
		return badRequest(c, err)
	}
	if s.Mode() != ModeCursor {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "not in cursor mode"})
	}
	if err := s.cursor.Move(cursor.Position{X: req.X, Y: req.Y}); err != nil {
		return c.Status(fiber.StatusPreconditionFailed).JSON(fiber.Map{"error": err.Error()})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleStatusWS pushes status frames until the client goes away
func (s *Server) handleStatusWS(c *websocket.Conn) {
	hub.NewClient(s.statusHub, c).Run()
}

// handleCursorWS reads viewport and move frames. Moves outside cursor
// mode or before a viewport are dropped.
func (s *Server) handleCursorWS(c *websocket.Conn) {
	for {
		var msg CursorMessage
		if err := c.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "viewport":
			s.cursor.SetViewport(cursor.Viewport{Width: msg.Width, Height: msg.Height})
		case "move":
			if s.Mode() == ModeCursor {
				s.cursor.Move(cursor.Position{X: msg.X, Y: msg.Y})
			}
		default:
			s.logger.Debug("unknown cursor message", "type", msg.Type)
		}
	}
}
