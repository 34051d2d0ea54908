package camera

import (
	"context"

	"github.com/linuxmatters/mediactl/internal/engine"
	"github.com/linuxmatters/mediactl/internal/limiter"
)

// DefaultExposureRange is +/-2 EV in third stops.
var DefaultExposureRange = limiter.Range{Min: -2, Max: 2, Step: 1.0 / 3.0, Default: 0}

// ExposureTarget applies exposure bias.
type ExposureTarget interface {
	ApplyExposure(ctx context.Context, exposure float64) error
}

// Exposure controls the camera exposure bias in EV.
type Exposure struct {
	ctl *Controller
}

// NewExposure returns an exposure controller at rng.Default.
func NewExposure(target ExposureTarget, rng limiter.Range, opts ...Option) *Exposure {
	return &Exposure{ctl: NewController(engine.OpApplyExposure, rng, target.ApplyExposure, opts...)}
}

func (e *Exposure) SetExposure(v float64) float64 { return e.ctl.SetTarget(v) }
func (e *Exposure) IncreaseExposure() float64     { return e.ctl.Increase() }
func (e *Exposure) DecreaseExposure() float64     { return e.ctl.Decrease() }
func (e *Exposure) ResetExposure() float64        { return e.ctl.Reset() }
func (e *Exposure) CurrentExposure() float64      { return e.ctl.Current() }

// Controller exposes the shared controller for flushing and cancellation.
func (e *Exposure) Controller() *Controller { return e.ctl }
