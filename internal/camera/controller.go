// Package camera drives zoom and exposure. Both follow one pattern: the
// target is clamped and visible at once, and the engine push is debounced.
package camera

import (
	"context"
	"sync"

	"github.com/linuxmatters/mediactl/internal/debounce"
	"github.com/linuxmatters/mediactl/internal/engine"
	"github.com/linuxmatters/mediactl/internal/limiter"
)

// Option configures a Controller.
type Option func(*options)

type options struct {
	debounce []debounce.Option
	report   engine.Reporter
	onChange func(float64)
}

// WithDebounce passes options to the controller's debounce channel.
func WithDebounce(opts ...debounce.Option) Option {
	return func(o *options) { o.debounce = append(o.debounce, opts...) }
}

// WithReporter receives failed pushes.
func WithReporter(r engine.Reporter) Option {
	return func(o *options) {
		if r != nil {
			o.report = r
		}
	}
}

// WithChangeHook observes every accepted target.
func WithChangeHook(fn func(float64)) Option {
	return func(o *options) { o.onChange = fn }
}

// Controller holds one bounded camera parameter.
type Controller struct {
	rng  limiter.Range
	opts options
	push *debounce.Channel[float64]

	mu      sync.Mutex
	current float64
}

// NewController starts at rng.Default and pushes through apply.
func NewController(op string, rng limiter.Range, apply func(context.Context, float64) error, opts ...Option) *Controller {
	o := options{report: engine.NopReporter}
	for _, opt := range opts {
		opt(&o)
	}
	report := o.report
	dopts := append([]debounce.Option{
		debounce.WithErrorReporter(func(err error) { report.Report(op, err) }),
	}, o.debounce...)

	return &Controller{
		rng:     rng,
		opts:    o,
		push:    debounce.New[float64](apply, dopts...),
		current: rng.Clamp(rng.Default),
	}
}

// SetTarget clamps v, makes it current and schedules the push.
func (c *Controller) SetTarget(v float64) float64 {
	v = c.rng.Clamp(v)
	c.mu.Lock()
	c.current = v
	c.push.Request(v)
	c.mu.Unlock()

	if c.opts.onChange != nil {
		c.opts.onChange(v)
	}
	return v
}

// Increase moves one step up.
func (c *Controller) Increase() float64 { return c.SetTarget(c.rng.Increase(c.Current())) }

// Decrease moves one step down.
func (c *Controller) Decrease() float64 { return c.SetTarget(c.rng.Decrease(c.Current())) }

// Reset returns to the configured default.
func (c *Controller) Reset() float64 { return c.SetTarget(c.rng.Default) }

// Current is the last accepted target.
func (c *Controller) Current() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Range returns the controller's bounds.
func (c *Controller) Range() limiter.Range { return c.rng }

// Adjusting is true only while a push is in flight.
func (c *Controller) Adjusting() bool { return c.push.Adjusting() }

func (c *Controller) Flush(ctx context.Context) error { return c.push.Flush(ctx) }
func (c *Controller) Cancel()                         { c.push.Cancel() }
func (c *Controller) Close()                          { c.push.Close() }
