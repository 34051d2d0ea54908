package server

import (
	"github.com/gofiber/fiber/v2"

	"github.com/linuxmatters/mediactl/internal/engine"
	"github.com/linuxmatters/mediactl/internal/presets"
)

type savePresetRequest struct {
	ID       string    `json:"id" validate:"required"`
	Name     string    `json:"name" validate:"max=80"`
	Bands    []float64 `json:"bands" validate:"max=10"`
	Baseline float64   `json:"baseline"`
}

func (s *Server) registerPresetRoutes(r fiber.Router) {
	g := r.Group("/presets", s.requirePresets)
	g.Get("/", s.listPresets)
	g.Post("/", s.savePreset)
	g.Delete("/:id", s.deletePreset)
}

func (s *Server) requirePresets(c *fiber.Ctx) error {
	if s.deps.Presets == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "preset catalog not configured")
	}
	return c.Next()
}

func (s *Server) listPresets(c *fiber.Ctx) error {
	list, err := s.deps.Presets.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(list)
}

func (s *Server) savePreset(c *fiber.Ctx) error {
	var req savePresetRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	saved, err := s.deps.Presets.Save(c.UserContext(), presets.Preset{
		ID:       engine.PresetID(req.ID),
		Name:     req.Name,
		Bands:    engine.GainVectorFrom(req.Bands),
		Baseline: req.Baseline,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(saved)
}

func (s *Server) deletePreset(c *fiber.Ctx) error {
	if err := s.deps.Presets.Delete(c.UserContext(), engine.PresetID(c.Params("id"))); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) listExports(c *fiber.Ctx) error {
	if s.deps.History == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "export history not configured")
	}
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 500 {
		return fiber.NewError(fiber.StatusBadRequest, "limit must be between 1 and 500")
	}
	recs, err := s.deps.History.Exports(c.UserContext(), limit)
	if err != nil {
		return err
	}

	type exportView struct {
		ID        int64               `json:"id"`
		Source    string              `json:"source"`
		CreatedAt string              `json:"createdAt"`
		Config    engine.ExportConfig `json:"config"`
	}
	out := make([]exportView, 0, len(recs))
	for _, rec := range recs {
		out = append(out, exportView{
			ID:        rec.ID,
			Source:    rec.SourceID,
			CreatedAt: rec.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
			Config:    rec.Config,
		})
	}
	return c.JSON(out)
}
