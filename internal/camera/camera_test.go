package camera

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxmatters/mediactl/internal/debounce"
	"github.com/linuxmatters/mediactl/internal/engine"
	"github.com/linuxmatters/mediactl/internal/limiter"
)

type fakeCamera struct {
	mu       sync.Mutex
	zoom     []float64
	exposure []float64
	gate     chan struct{}
	err      error
}

func (f *fakeCamera) ApplyZoom(ctx context.Context, v float64) error {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.zoom = append(f.zoom, v)
	return f.err
}

func (f *fakeCamera) ApplyExposure(_ context.Context, v float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exposure = append(f.exposure, v)
	return f.err
}

func (f *fakeCamera) zooms() []float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]float64(nil), f.zoom...)
}

func quick() Option {
	return WithDebounce(debounce.WithQuietWindow(5 * time.Millisecond))
}

func TestZoomClampsAndIsVisibleAtOnce(t *testing.T) {
	cam := &fakeCamera{}
	z := NewZoom(cam, DefaultZoomRange, WithDebounce(debounce.WithQuietWindow(time.Hour)))
	defer z.Controller().Close()

	assert.Equal(t, 1.0, z.CurrentZoom())
	assert.Equal(t, 10.0, z.SetZoom(25))
	assert.Equal(t, 10.0, z.CurrentZoom(), "current updates before the push")
	assert.Empty(t, cam.zooms())

	assert.Equal(t, 1.0, z.SetZoom(0.2))
}

func TestZoomSteps(t *testing.T) {
	z := NewZoom(&fakeCamera{}, DefaultZoomRange, quick())
	defer z.Controller().Close()

	tests := []struct {
		name string
		op   func() float64
		want float64
	}{
		{"in", z.ZoomIn, 1.5},
		{"in again", z.ZoomIn, 2},
		{"out", z.ZoomOut, 1.5},
		{"out", z.ZoomOut, 1},
		{"out at floor", z.ZoomOut, 1},
		{"pinch", func() float64 { return z.Pinch(4) }, 4},
		{"pinch past max", func() float64 { return z.Pinch(5) }, 10},
		{"pinch ignores bad scale", func() float64 { return z.Pinch(0) }, 10},
		{"reset", z.ResetZoom, 1},
	}
	for _, tt := range tests {
		if got := tt.op(); got != tt.want {
			t.Errorf("%s: got %.2f, want %.2f", tt.name, got, tt.want)
		}
	}
}

func TestZoomPushesLatestOnly(t *testing.T) {
	cam := &fakeCamera{}
	z := NewZoom(cam, DefaultZoomRange, quick())
	defer z.Controller().Close()

	for range 6 {
		z.ZoomIn()
	}
	require.NoError(t, z.Controller().Flush(context.Background()))
	assert.Equal(t, []float64{4}, cam.zooms())
}

func TestAdjustingOnlyWhileInFlight(t *testing.T) {
	cam := &fakeCamera{gate: make(chan struct{})}
	z := NewZoom(cam, DefaultZoomRange, quick())
	defer z.Controller().Close()

	assert.False(t, z.Controller().Adjusting())
	z.SetZoom(3)
	assert.False(t, z.Controller().Adjusting(), "waiting for the quiet window")

	require.Eventually(t, z.Controller().Adjusting, time.Second, time.Millisecond)
	close(cam.gate)
	require.Eventually(t, func() bool { return !z.Controller().Adjusting() }, time.Second, time.Millisecond)
	assert.Equal(t, []float64{3}, cam.zooms())
}

func TestExposure(t *testing.T) {
	cam := &fakeCamera{}
	e := NewExposure(cam, DefaultExposureRange, quick())
	defer e.Controller().Close()

	assert.InDelta(t, 1.0/3.0, e.IncreaseExposure(), 1e-9)
	assert.InDelta(t, 0, e.DecreaseExposure(), 1e-9)
	assert.Equal(t, -2.0, e.SetExposure(-7))
	assert.Equal(t, -2.0, e.DecreaseExposure())
	assert.Equal(t, 0.0, e.ResetExposure())
	assert.Equal(t, 0.0, e.CurrentExposure())
}

func TestPushFailureKeepsCurrent(t *testing.T) {
	cam := &fakeCamera{err: errors.New("driver busy")}
	var reported []string
	var mu sync.Mutex
	rep := engine.ReporterFunc(func(op string, err error) {
		mu.Lock()
		defer mu.Unlock()
		reported = append(reported, op)
	})
	e := NewExposure(cam, DefaultExposureRange, quick(), WithReporter(rep))
	defer e.Controller().Close()

	e.SetExposure(1)
	require.NoError(t, e.Controller().Flush(context.Background()))
	assert.Equal(t, 1.0, e.CurrentExposure())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{engine.OpApplyExposure}, reported)
}

func TestCustomRangeAndChangeHook(t *testing.T) {
	var seen []float64
	rng := limiter.Range{Min: 1, Max: 3, Step: 1, Default: 2}
	z := NewZoom(&fakeCamera{}, rng, quick(), WithChangeHook(func(v float64) { seen = append(seen, v) }))
	defer z.Controller().Close()

	assert.Equal(t, 2.0, z.CurrentZoom())
	z.ZoomIn()
	z.ZoomIn()
	z.ResetZoom()
	assert.Equal(t, []float64{3, 3, 2}, seen)
}
