// Package server exposes studios over HTTP and streams session events over
// a WebSocket.
package server

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/linuxmatters/mediactl/internal/engine"
	"github.com/linuxmatters/mediactl/internal/events"
	"github.com/linuxmatters/mediactl/internal/presets"
	"github.com/linuxmatters/mediactl/internal/session"
	"github.com/linuxmatters/mediactl/internal/store"
	"github.com/linuxmatters/mediactl/internal/studio"
)

// PresetCatalog is the preset surface the API serves.
type PresetCatalog interface {
	List(ctx context.Context) ([]presets.Preset, error)
	Save(ctx context.Context, p presets.Preset) (presets.Preset, error)
	Delete(ctx context.Context, id engine.PresetID) error
}

// ExportHistory lists produced export configurations.
type ExportHistory interface {
	Exports(ctx context.Context, limit int) ([]store.ExportRecord, error)
}

// EventSource streams bus events.
type EventSource interface {
	Subscribe(ctx context.Context) (<-chan events.Event, error)
}

// Deps are the server's collaborators. Presets, History and Events are
// optional; their routes answer 503 when missing.
type Deps struct {
	Hub     *studio.Hub
	Presets PresetCatalog
	History ExportHistory
	Events  EventSource
	Log     *zap.Logger
}

type Server struct {
	app      *fiber.App
	deps     Deps
	log      *zap.Logger
	validate *validator.Validate
}

func New(deps Deps) *Server {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		deps:     deps,
		log:      log.Named("http"),
		validate: validator.New(),
	}

	app := fiber.New(fiber.Config{
		AppName:               "mediactl",
		DisableStartupMessage: true,
		BodyLimit:             64 * 1024,
		ErrorHandler:          s.handleError,
	})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(otelfiber.Middleware())

	api := app.Group("/api")
	s.registerSessionRoutes(api)
	s.registerPresetRoutes(api)
	api.Get("/exports", s.listExports)
	app.Get("/ws/events", s.streamEvents)

	s.app = app
	return s
}

// App returns the fiber app, for tests.
func (s *Server) App() *fiber.App { return s.app }

// Run listens on addr until Shutdown.
func (s *Server) Run(addr string) error {
	s.log.Info("control API listening", zap.String("addr", addr))
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	if code >= fiber.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(code).JSON(ErrorResponse{Code: code, Message: err.Error()})
}

func statusFor(err error) int {
	var fe *fiber.Error
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.As(err, &verrs):
		return fiber.StatusBadRequest
	case errors.Is(err, studio.ErrNoStudio), errors.Is(err, presets.ErrUnknownPreset):
		return fiber.StatusNotFound
	case errors.Is(err, studio.ErrSourceBusy), errors.Is(err, session.ErrInvalidTransition):
		return fiber.StatusConflict
	case errors.Is(err, presets.ErrReadOnly):
		return fiber.StatusForbidden
	case errors.Is(err, presets.ErrInvalidID):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// bind parses the JSON body into v and validates it.
func (s *Server) bind(c *fiber.Ctx, v any) error {
	if err := c.BodyParser(v); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	return s.validate.Struct(v)
}
