// Package control exposes a small local HTTP API for driving the engine
// from scripts, tray menus, and anything else that cannot send hotkeys.
package control

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/voxtype/voxtype/internal/engine"
)

// Backends lists the registered backend names for GET /backends.
type Backends struct {
	Transcribers []string `json:"transcribers"`
	Generators   []string `json:"generators"`
}

// Server serves the control endpoints over a local TCP address.
type Server struct {
	app *fiber.App
	eng *engine.Engine
	log zerolog.Logger
}

// New builds the control server around an engine.
func New(eng *engine.Engine, backends Backends, log zerolog.Logger) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "voxtype-control",
		DisableStartupMessage: true,
	})

	s := &Server{
		app: app,
		eng: eng,
		log: log.With().Str("component", "control").Logger(),
	}

	app.Get("/status", s.handleStatus)
	app.Get("/backends", func(c *fiber.Ctx) error {
		return c.JSON(backends)
	})
	app.Post("/start", s.handleStart)
	app.Post("/stop", s.handleStop)
	app.Post("/toggle", s.handleToggle)

	return s
}

// Listen blocks serving the control API on addr.
func (s *Server) Listen(addr string) error {
	s.log.Info().Str("addr", addr).Msg("control API listening")
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.eng.Status())
}

func (s *Server) handleStart(c *fiber.Ctx) error {
	if err := s.eng.Start(); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(s.eng.Status())
}

func (s *Server) handleStop(c *fiber.Ctx) error {
	out, err := s.eng.Stop(c.UserContext())
	return s.respond(c, out, err)
}

func (s *Server) handleToggle(c *fiber.Ctx) error {
	out, err := s.eng.Toggle(c.UserContext())
	return s.respond(c, out, err)
}

// respond maps an engine outcome to a response. A nil outcome without an
// error means nothing was delivered (recording started, or discarded); the
// current status is returned instead of text.
func (s *Server) respond(c *fiber.Ctx, out *engine.Outcome, err error) error {
	switch {
	case err != nil && out != nil:
		// Delivery failed but the transcript exists; hand it back with the error.
		s.log.Warn().Err(err).Str("path", c.Path()).Msg("delivery failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
			"text":  out.Text,
		})
	case err != nil:
		return s.fail(c, err)
	case out == nil:
		return c.JSON(s.eng.Status())
	default:
		return c.JSON(out)
	}
}

func (s *Server) fail(c *fiber.Ctx, err error) error {
	s.log.Warn().Err(err).Str("path", c.Path()).Msg("request failed")

	var serr *engine.StateError
	if errors.As(err, &serr) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": serr.Error(),
			"state": serr.State.String(),
		})
	}
	var cerr *engine.ConfigError
	if errors.As(err, &cerr) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": cerr.Error()})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}
