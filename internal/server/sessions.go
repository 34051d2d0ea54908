package server

import (
	"github.com/gofiber/fiber/v2"

	"github.com/linuxmatters/mediactl/internal/engine"
	"github.com/linuxmatters/mediactl/internal/studio"
)

type openRequest struct {
	Source        string `json:"source" validate:"required,max=64"`
	Kind          string `json:"kind" validate:"omitempty,oneof=camera microphone screen"`
	AntiBandingHz int    `json:"antiBandingHz" validate:"omitempty,oneof=50 60"`
}

type attachRequest struct {
	Target string `json:"target" validate:"required"`
	Kind   string `json:"kind"`
}

type gainsRequest struct {
	Gains []float64 `json:"gains" validate:"required,max=10"`
}

type presetRequest struct {
	ID string `json:"id"`
}

type valueRequest struct {
	Value *float64 `json:"value" validate:"required"`
}

type pinchRequest struct {
	Scale float64 `json:"scale" validate:"gt=0"`
}

type autoRequest struct {
	EQ *bool `json:"eq"`
	NR *bool `json:"nr"`
}

type exportRequest struct {
	Codec       string `json:"codec"`
	BitrateKbps int    `json:"bitrateKbps" validate:"gte=0"`
	SampleRate  int    `json:"sampleRate" validate:"gte=0"`
}

func (s *Server) registerSessionRoutes(r fiber.Router) {
	g := r.Group("/sessions")
	g.Get("/", s.listSessions)
	g.Post("/", s.openSession)
	g.Get("/:source", s.withStudio(s.status))
	g.Delete("/:source", s.closeSession)

	g.Post("/:source/attach", s.withStudio(s.attach))
	g.Put("/:source/gains", s.withParams(engine.OpApplyGains, s.applyGains))
	g.Post("/:source/preset", s.withParams(engine.OpApplyGains, s.loadPreset))
	g.Put("/:source/aggressiveness", s.withParams(engine.OpApplyAggressiveness, s.setAggressiveness))
	g.Put("/:source/auto", s.withStudio(s.setAuto))

	g.Put("/:source/zoom", s.withParams(engine.OpApplyZoom, s.setValue((*studio.Studio).SetZoom)))
	g.Post("/:source/zoom/in", s.withParams(engine.OpApplyZoom, s.step((*studio.Studio).ZoomIn)))
	g.Post("/:source/zoom/out", s.withParams(engine.OpApplyZoom, s.step((*studio.Studio).ZoomOut)))
	g.Post("/:source/zoom/reset", s.withParams(engine.OpApplyZoom, s.step((*studio.Studio).ResetZoom)))
	g.Post("/:source/zoom/pinch", s.withParams(engine.OpApplyZoom, s.pinch))

	g.Put("/:source/exposure", s.withParams(engine.OpApplyExposure, s.setValue((*studio.Studio).SetExposure)))
	g.Post("/:source/exposure/increase", s.withParams(engine.OpApplyExposure, s.step((*studio.Studio).IncreaseExposure)))
	g.Post("/:source/exposure/decrease", s.withParams(engine.OpApplyExposure, s.step((*studio.Studio).DecreaseExposure)))
	g.Post("/:source/exposure/reset", s.withParams(engine.OpApplyExposure, s.step((*studio.Studio).ResetExposure)))

	g.Post("/:source/export", s.withStudio(s.prepareExport))
}

type studioHandler func(c *fiber.Ctx, st *studio.Studio) error

func (s *Server) withStudio(h studioHandler) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := s.deps.Hub.Get(c.Params("source"))
		if err != nil {
			return err
		}
		return h(c, st)
	}
}

// withParams rejects parameter changes the session cannot take before the
// handler runs, so the failure reaches the client as a conflict.
func (s *Server) withParams(op string, h studioHandler) fiber.Handler {
	return s.withStudio(func(c *fiber.Ctx, st *studio.Studio) error {
		if err := st.CheckParams(op); err != nil {
			return err
		}
		return h(c, st)
	})
}

func (s *Server) listSessions(c *fiber.Ctx) error {
	all := s.deps.Hub.List()
	out := make([]studio.Status, 0, len(all))
	for _, st := range all {
		out = append(out, st.Status())
	}
	return c.JSON(out)
}

func (s *Server) openSession(c *fiber.Ctx) error {
	var req openRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	kind := engine.SourceKind(req.Kind)
	if kind == "" {
		kind = engine.SourceCamera
	}
	st, err := s.deps.Hub.Open(c.UserContext(), engine.SourceRef{
		ID:            req.Source,
		Kind:          kind,
		AntiBandingHz: req.AntiBandingHz,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(st.Status())
}

func (s *Server) closeSession(c *fiber.Ctx) error {
	if err := s.deps.Hub.Close(c.UserContext(), c.Params("source")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) status(c *fiber.Ctx, st *studio.Studio) error {
	return c.JSON(st.Status())
}

func (s *Server) attach(c *fiber.Ctx, st *studio.Studio) error {
	var req attachRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	kind := req.Kind
	if kind == "" {
		kind = "preview"
	}
	if err := st.AttachToTarget(c.UserContext(), engine.TargetRef{ID: req.Target, Kind: kind}); err != nil {
		return err
	}
	return c.JSON(st.Status())
}

func (s *Server) applyGains(c *fiber.Ctx, st *studio.Studio) error {
	var req gainsRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	applied := st.ApplyGains(engine.GainVectorFrom(req.Gains))
	return c.JSON(fiber.Map{"gains": applied})
}

func (s *Server) loadPreset(c *fiber.Ctx, st *studio.Studio) error {
	var req presetRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	if err := st.LoadPreset(c.UserContext(), engine.PresetID(req.ID)); err != nil {
		return err
	}
	return c.JSON(st.Status())
}

func (s *Server) setAggressiveness(c *fiber.Ctx, st *studio.Studio) error {
	var req valueRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"value": st.SetAggressiveness(*req.Value)})
}

func (s *Server) setAuto(c *fiber.Ctx, st *studio.Studio) error {
	var req autoRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	if req.EQ != nil {
		st.SetAutoEQ(*req.EQ)
	}
	if req.NR != nil {
		st.SetAutoNR(*req.NR)
	}
	return c.JSON(st.Status())
}

func (s *Server) setValue(set func(*studio.Studio, float64) float64) studioHandler {
	return func(c *fiber.Ctx, st *studio.Studio) error {
		var req valueRequest
		if err := s.bind(c, &req); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"value": set(st, *req.Value)})
	}
}

func (s *Server) step(fn func(*studio.Studio) float64) studioHandler {
	return func(c *fiber.Ctx, st *studio.Studio) error {
		return c.JSON(fiber.Map{"value": fn(st)})
	}
}

func (s *Server) pinch(c *fiber.Ctx, st *studio.Studio) error {
	var req pinchRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"value": st.Pinch(req.Scale)})
}

func (s *Server) prepareExport(c *fiber.Ctx, st *studio.Studio) error {
	var req exportRequest
	if len(c.Body()) > 0 {
		if err := s.bind(c, &req); err != nil {
			return err
		}
	}

	var (
		cfg engine.ExportConfig
		err error
	)
	if req == (exportRequest{}) {
		cfg, err = st.PrepareExport(c.UserContext())
	} else {
		cfg, err = st.PrepareExportWith(c.UserContext(), engine.EncodingParams{
			Codec:       req.Codec,
			BitrateKbps: req.BitrateKbps,
			SampleRate:  req.SampleRate,
		})
	}
	if err != nil {
		return err
	}
	return c.JSON(cfg)
}
