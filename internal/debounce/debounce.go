// Package debounce coalesces bursts of parameter requests into a single call
// to an asynchronous sink after a quiet window (last value wins).
package debounce

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	// DefaultQuietWindow is the delay after the last request before dispatch.
	DefaultQuietWindow = 100 * time.Millisecond

	// DefaultCallTimeout bounds a single in-flight sink call.
	DefaultCallTimeout = 6 * time.Second
)

// ErrTimeout wraps sink calls that did not settle within the call timeout.
var ErrTimeout = errors.New("debounce: sink call timed out")

// Sink receives the settled value. It runs with a context bounded by the
// channel's call timeout.
type Sink[T any] func(ctx context.Context, v T) error

// Option configures a Channel.
type Option func(*options)

type options struct {
	window      time.Duration
	timeout     time.Duration
	report      func(error)
	onAdjusting func(bool)
}

// WithQuietWindow overrides DefaultQuietWindow.
func WithQuietWindow(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.window = d
		}
	}
}

// WithCallTimeout overrides DefaultCallTimeout.
func WithCallTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithErrorReporter receives every error the sink returns. The channel
// itself never propagates sink errors.
func WithErrorReporter(fn func(error)) Option {
	return func(o *options) { o.report = fn }
}

// WithAdjustingHook is called with true when a sink call starts and false
// once the channel is idle again. Called without the channel lock held.
func WithAdjustingHook(fn func(bool)) Option {
	return func(o *options) { o.onAdjusting = fn }
}

// Channel is a last-value-wins rate limiter in front of one sink.
// At most one sink call is in flight at a time.
type Channel[T any] struct {
	sink Sink[T]
	opts options

	mu         sync.Mutex
	pending    T
	hasPending bool
	gen        uint64
	timer      *task
	inFlight   bool
	queued     bool
	settled    chan struct{}
	closed     bool
}

// New creates a channel dispatching to sink.
func New[T any](sink Sink[T], opts ...Option) *Channel[T] {
	o := options{
		window:  DefaultQuietWindow,
		timeout: DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Channel[T]{sink: sink, opts: o}
}

// Request records v as the pending value and restarts the quiet window.
func (c *Channel[T]) Request(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.pending = v
	c.hasPending = true
	c.rescheduleLocked()
}

// Cancel drops the pending value and timer. An in-flight call is not recalled.
func (c *Channel[T]) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked()
}

// Close cancels pending work and ignores all further requests.
func (c *Channel[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked()
	c.closed = true
}

// Adjusting reports whether a sink call is in flight, including one that
// has passed its timeout but not yet returned.
func (c *Channel[T]) Adjusting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Pending returns the value waiting for the quiet window, if any.
func (c *Channel[T]) Pending() (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending, c.hasPending
}

// Flush dispatches the pending value immediately and waits until the
// channel is idle. Sink errors go to the reporter, not to the caller.
func (c *Channel[T]) Flush(ctx context.Context) error {
	for {
		c.mu.Lock()
		if c.inFlight {
			if c.hasPending {
				c.stopTimerLocked()
				c.queued = true
			}
			settled := c.settled
			c.mu.Unlock()

			select {
			case <-settled:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if c.closed || !c.hasPending {
			c.mu.Unlock()
			return nil
		}
		c.stopTimerLocked()
		v := c.beginLocked()
		c.mu.Unlock()

		c.run(v)
	}
}

func (c *Channel[T]) rescheduleLocked() {
	c.stopTimerLocked()
	c.timer = schedule(c.opts.window, c.gen, c.fire)
}

func (c *Channel[T]) stopTimerLocked() {
	c.gen++
	c.timer.Cancel()
	c.timer = nil
}

func (c *Channel[T]) cancelLocked() {
	c.stopTimerLocked()
	var zero T
	c.pending = zero
	c.hasPending = false
	c.queued = false
}

// fire runs on the timer goroutine.
func (c *Channel[T]) fire(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.gen || !c.hasPending {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	if c.inFlight {
		// Dispatched as soon as the current call settles.
		c.queued = true
		c.mu.Unlock()
		return
	}
	v := c.beginLocked()
	c.mu.Unlock()

	c.run(v)
}

func (c *Channel[T]) beginLocked() T {
	v := c.pending
	var zero T
	c.pending = zero
	c.hasPending = false
	c.inFlight = true
	c.settled = make(chan struct{})
	return v
}

// run calls the sink for v and for any value queued while it was in flight.
func (c *Channel[T]) run(v T) {
	c.notifyAdjusting(true)
	for {
		c.call(v)

		c.mu.Lock()
		c.inFlight = false
		close(c.settled)
		more := c.queued && c.hasPending && !c.closed
		c.queued = false
		if more {
			v = c.beginLocked()
		}
		c.mu.Unlock()

		if !more {
			break
		}
	}
	c.notifyAdjusting(false)
}

// call returns only once the sink has returned. A timeout is reported when
// it expires; a sink that ignores ctx keeps the channel in flight until it
// finishes.
func (c *Channel[T]) call(v T) {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- c.sink(ctx, v) }()

	select {
	case err := <-done:
		c.reportErr(err)
	case <-ctx.Done():
		c.reportErr(fmt.Errorf("%w after %s", ErrTimeout, c.opts.timeout))
		<-done
	}
}

func (c *Channel[T]) reportErr(err error) {
	if err != nil && c.opts.report != nil {
		c.opts.report(err)
	}
}

func (c *Channel[T]) notifyAdjusting(v bool) {
	if c.opts.onAdjusting != nil {
		c.opts.onAdjusting(v)
	}
}
