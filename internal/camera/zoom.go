package camera

import (
	"context"

	"github.com/linuxmatters/mediactl/internal/engine"
	"github.com/linuxmatters/mediactl/internal/limiter"
)

// DefaultZoomRange is a 1x-10x optical plus digital zoom in half steps.
var DefaultZoomRange = limiter.Range{Min: 1, Max: 10, Step: 0.5, Default: 1}

// ZoomTarget applies zoom factors.
type ZoomTarget interface {
	ApplyZoom(ctx context.Context, zoom float64) error
}

// Zoom controls the camera zoom factor.
type Zoom struct {
	ctl *Controller
}

// NewZoom returns a zoom controller at rng.Default.
func NewZoom(target ZoomTarget, rng limiter.Range, opts ...Option) *Zoom {
	return &Zoom{ctl: NewController(engine.OpApplyZoom, rng, target.ApplyZoom, opts...)}
}

func (z *Zoom) SetZoom(v float64) float64 { return z.ctl.SetTarget(v) }
func (z *Zoom) ZoomIn() float64           { return z.ctl.Increase() }
func (z *Zoom) ZoomOut() float64          { return z.ctl.Decrease() }
func (z *Zoom) ResetZoom() float64        { return z.ctl.Reset() }
func (z *Zoom) CurrentZoom() float64      { return z.ctl.Current() }

// Pinch scales the current zoom by a gesture factor, as reported by
// touch input (1 = no change).
func (z *Zoom) Pinch(scale float64) float64 {
	if scale <= 0 {
		return z.ctl.Current()
	}
	return z.ctl.SetTarget(z.ctl.Current() * scale)
}

// Controller exposes the shared controller for flushing and cancellation.
func (z *Zoom) Controller() *Controller { return z.ctl }
