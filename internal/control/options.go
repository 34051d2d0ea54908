package control

import (
	"github.com/linuxmatters/mediactl/internal/debounce"
	"github.com/linuxmatters/mediactl/internal/engine"
)

// Option configures a control loop.
type Option func(*config)

type config struct {
	debounce []debounce.Option
	report   engine.Reporter
	onChange func()
}

// WithDebounce passes options to the loop's debounce channel.
func WithDebounce(opts ...debounce.Option) Option {
	return func(c *config) { c.debounce = append(c.debounce, opts...) }
}

// WithReporter receives failed pushes.
func WithReporter(r engine.Reporter) Option {
	return func(c *config) {
		if r != nil {
			c.report = r
		}
	}
}

// WithChangeHook runs after every accepted change to the loop's value.
func WithChangeHook(fn func()) Option {
	return func(c *config) { c.onChange = fn }
}

func newConfig(op string, opts []Option) config {
	c := config{report: engine.NopReporter}
	for _, opt := range opts {
		opt(&c)
	}
	report := c.report
	c.debounce = append([]debounce.Option{
		debounce.WithErrorReporter(func(err error) { report.Report(op, err) }),
	}, c.debounce...)
	return c
}

func (c config) changed() {
	if c.onChange != nil {
		c.onChange()
	}
}
