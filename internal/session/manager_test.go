package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxmatters/mediactl/internal/engine"
	"github.com/linuxmatters/mediactl/internal/engine/sim"
	"github.com/linuxmatters/mediactl/internal/slots"
)

type reports struct {
	mu  sync.Mutex
	ops []string
}

func (r *reports) Report(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

func (r *reports) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}

var cam = engine.SourceRef{ID: "cam0", Kind: engine.SourceCamera}

func attached(t *testing.T, eng engine.Engine, opts ...Option) *Manager {
	t.Helper()
	m := New(eng, opts...)
	ctx := context.Background()
	require.NoError(t, m.Initialize(ctx, cam))
	require.NoError(t, m.Attach(ctx, engine.TargetRef{ID: "preview"}))
	require.Equal(t, StateAttached, m.State())
	t.Cleanup(func() { _ = m.Destroy(context.Background()) })
	return m
}

func TestLifecycle(t *testing.T) {
	eng := sim.New(sim.Options{})
	m := New(eng)
	ctx := context.Background()

	assert.False(t, m.IsReady())
	require.NoError(t, m.Initialize(ctx, cam))
	assert.Equal(t, StateReady, m.State())
	assert.True(t, m.IsReady())
	assert.NotEmpty(t, m.SessionID())

	require.NoError(t, m.Attach(ctx, engine.TargetRef{ID: "preview"}))
	require.NoError(t, m.ApplyGains(ctx, engine.GainVector{9, -9, 1}))
	require.NoError(t, m.ApplyAggressiveness(ctx, 7))

	assert.Equal(t, engine.GainVector{6, -6, 1}, m.Gains())
	assert.Equal(t, engine.MaxAggressiveness, m.Aggressiveness())

	st, ok := eng.Session(m.SessionID())
	require.True(t, ok)
	assert.Equal(t, engine.GainVector{6, -6, 1}, st.Gains)

	cfg, err := m.PrepareExport(ctx, engine.EncodingParams{Codec: "aac"})
	require.NoError(t, err)
	assert.True(t, cfg.Valid)
	assert.NotEmpty(t, cfg.Handle)
	assert.Equal(t, "aac", cfg.Encoding.Codec)
	assert.Equal(t, StateExporting, m.State())

	require.NoError(t, m.Destroy(ctx))
	assert.Equal(t, StateDestroyed, m.State())
	assert.Equal(t, 0, eng.Sessions())
	assert.Equal(t, engine.GainVector{}, m.Gains(), "gains reset on destroy")
	assert.Equal(t, engine.DefaultAggressiveness, m.Aggressiveness())
	assert.Equal(t, engine.FlatPreset, m.Preset())
}

func TestDestroyIsIdempotent(t *testing.T) {
	eng := sim.New(sim.Options{})
	m := attached(t, eng)

	require.NoError(t, m.Destroy(context.Background()))
	require.NoError(t, m.Destroy(context.Background()))
	assert.Equal(t, 1, eng.Calls(engine.OpDestroySession))
}

func TestDestroyBeforeInitialize(t *testing.T) {
	eng := sim.New(sim.Options{})
	m := New(eng)
	require.NoError(t, m.Destroy(context.Background()))
	assert.Equal(t, 0, eng.Calls(engine.OpDestroySession))
	assert.False(t, m.IsReady())
}

func TestUnavailableEngineDegrades(t *testing.T) {
	tests := []struct {
		name string
		eng  engine.Engine
	}{
		{"engine reports unavailable", sim.New(sim.Options{Unavailable: true})},
		{"no engine", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := &reports{}
			m := New(tt.eng, WithReporter(rep))
			ctx := context.Background()

			require.NoError(t, m.Initialize(ctx, cam))
			assert.Equal(t, StateUnavailable, m.State())
			assert.True(t, m.IsReady())
			assert.Equal(t, []string{engine.OpCreateSession}, rep.list())

			require.NoError(t, m.ApplyGains(ctx, engine.GainVector{2, 2}))
			require.NoError(t, m.ApplyAggressiveness(ctx, 2.5))
			assert.Equal(t, engine.GainVector{2, 2}, m.Gains())

			cfg, err := m.PrepareExport(ctx, engine.EncodingParams{})
			require.NoError(t, err)
			assert.False(t, cfg.Valid)
			assert.Equal(t, engine.GainVector{2, 2}, cfg.Gains)
			assert.Equal(t, 2.5, cfg.Aggressiveness)

			require.NoError(t, m.Destroy(ctx))
		})
	}
}

func TestInvalidTransitions(t *testing.T) {
	ctx := context.Background()

	m := New(sim.New(sim.Options{}))
	err := m.Attach(ctx, engine.TargetRef{ID: "preview"})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	err = m.ApplyGains(ctx, engine.GainVector{})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, m.Initialize(ctx, cam))
	err = m.ApplyGains(ctx, engine.GainVector{})
	assert.ErrorIs(t, err, ErrInvalidTransition, "gains before attach")

	_, err = m.PrepareExport(ctx, engine.EncodingParams{})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	err = m.Initialize(ctx, cam)
	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, StateReady, te.From)

	require.NoError(t, m.Destroy(ctx))
}

func TestStrictModePanics(t *testing.T) {
	m := New(sim.New(sim.Options{}), WithStrict(true))
	assert.Panics(t, func() {
		_ = m.Attach(context.Background(), engine.TargetRef{ID: "preview"})
	})
}

func TestStrictCheckParamsPanicsButApplyReports(t *testing.T) {
	eng := sim.New(sim.Options{Interval: time.Hour})
	m := New(eng, WithStrict(true))
	ctx := context.Background()
	require.NoError(t, m.Initialize(ctx, cam))

	assert.Panics(t, func() { _ = m.CheckParams(engine.OpApplyZoom) })

	// Deferred pushes arrive here from debounce goroutines.
	var err error
	assert.NotPanics(t, func() { err = m.ApplyZoom(ctx, 2) })
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 0, eng.Calls(engine.OpApplyZoom))

	require.NoError(t, m.Attach(ctx, engine.TargetRef{ID: "preview"}))
	assert.NoError(t, m.CheckParams(engine.OpApplyZoom))
	require.NoError(t, m.Destroy(ctx))
	assert.NoError(t, m.CheckParams(engine.OpApplyZoom), "destroyed sessions ignore parameters quietly")
}

func TestOneSessionPerSource(t *testing.T) {
	reg := slots.NewMemory()
	eng := sim.New(sim.Options{})
	ctx := context.Background()

	first := New(eng, WithSlots(reg))
	require.NoError(t, first.Initialize(ctx, cam))

	second := New(eng, WithSlots(reg))
	err := second.Initialize(ctx, cam)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.ErrorIs(t, err, slots.ErrClaimed)
	assert.Equal(t, StateUninitialized, second.State())
	assert.Equal(t, 1, eng.Calls(engine.OpCreateSession))

	require.NoError(t, first.Destroy(ctx))
	require.NoError(t, second.Initialize(ctx, cam), "source is free after destroy")
	require.NoError(t, second.Destroy(ctx))
}

func TestExportSnapshotIsolation(t *testing.T) {
	m := attached(t, sim.New(sim.Options{}))
	ctx := context.Background()

	v := engine.GainVector{1, 2, 3}
	require.NoError(t, m.ApplyGains(ctx, v))
	v[0] = 5
	assert.Equal(t, 1.0, m.Gains()[0], "caller's vector is copied")

	cfg, err := m.PrepareExport(ctx, engine.EncodingParams{})
	require.NoError(t, err)
	cfg.Gains[1] = -6

	again, err := m.PrepareExport(ctx, engine.EncodingParams{})
	require.NoError(t, err)
	assert.Equal(t, engine.GainVector{1, 2, 3}, again.Gains)
	assert.Equal(t, cfg.Handle, again.Handle, "second call returns the same record")

	require.NoError(t, m.Destroy(ctx))
	assert.Equal(t, engine.GainVector{1, 2, 3}, again.Gains, "destroy does not reach into the record")
}

func TestTransientFailureKeepsLocalState(t *testing.T) {
	eng := sim.New(sim.Options{})
	rep := &reports{}
	m := attached(t, eng, WithReporter(rep))

	eng.FailNext(engine.OpApplyGains, engine.KindTransient)
	require.NoError(t, m.ApplyGains(context.Background(), engine.GainVector{3}))

	assert.Equal(t, engine.GainVector{3}, m.Gains())
	assert.Equal(t, StateAttached, m.State())
	assert.Equal(t, []string{engine.OpApplyGains}, rep.list())
}

func TestEngineLostMidSession(t *testing.T) {
	eng := sim.New(sim.Options{})
	m := attached(t, eng)

	eng.FailNext(engine.OpApplyAggressiveness, engine.KindUnavailable)
	require.NoError(t, m.ApplyAggressiveness(context.Background(), 2))
	assert.Equal(t, StateUnavailable, m.State())

	calls := eng.Calls(engine.OpApplyAggressiveness)
	require.NoError(t, m.ApplyAggressiveness(context.Background(), 1))
	assert.Equal(t, calls, eng.Calls(engine.OpApplyAggressiveness), "unavailable is local only")
	assert.Equal(t, 1.0, m.Aggressiveness())
}

func TestAttachFailureDegrades(t *testing.T) {
	eng := sim.New(sim.Options{})
	m := New(eng)
	ctx := context.Background()
	require.NoError(t, m.Initialize(ctx, cam))

	eng.FailNext(engine.OpAttach, engine.KindRejected)
	require.NoError(t, m.Attach(ctx, engine.TargetRef{ID: "preview"}))
	assert.Equal(t, StateUnavailable, m.State())
	require.NoError(t, m.Destroy(ctx))
}

func TestExportBindFailureDisablesRecord(t *testing.T) {
	eng := sim.New(sim.Options{})
	m := attached(t, eng)

	eng.FailNext(engine.OpPrepareExport, engine.KindTransient)
	cfg, err := m.PrepareExport(context.Background(), engine.EncodingParams{})
	require.NoError(t, err)
	assert.False(t, cfg.Valid)
	assert.Empty(t, cfg.Handle)
}

type countingCanceler struct{ n atomic.Int32 }

func (c *countingCanceler) Cancel() { c.n.Add(1) }

func TestDestroyCancelsTrackedWork(t *testing.T) {
	m := attached(t, sim.New(sim.Options{}))
	c := &countingCanceler{}
	m.Track(c)

	require.NoError(t, m.Destroy(context.Background()))
	require.NoError(t, m.Destroy(context.Background()))
	assert.Equal(t, int32(1), c.n.Load())

	late := &countingCanceler{}
	m.Track(late)
	assert.Equal(t, int32(1), late.n.Load(), "tracking after destroy cancels at once")
}

func TestLateCreateIsDiscarded(t *testing.T) {
	eng := sim.New(sim.Options{Latency: 50 * time.Millisecond})
	m := New(eng)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = m.Initialize(context.Background(), cam)
	}()

	require.Eventually(t, func() bool { return m.State() == StateInitializing }, time.Second, time.Millisecond)
	require.NoError(t, m.Destroy(context.Background()))
	<-done

	assert.Equal(t, StateDestroyed, m.State())
	assert.Empty(t, m.SessionID())
	assert.Equal(t, 0, eng.Sessions(), "engine session created after destroy is torn down")
}

func TestLevelsOnlyWhileAttached(t *testing.T) {
	eng := sim.New(sim.Options{Interval: time.Millisecond, BlockSize: 128})
	m := New(eng)
	ctx := context.Background()

	var n atomic.Int32
	m.OnLevel(func(engine.LevelSample) { n.Add(1) })

	require.NoError(t, m.Initialize(ctx, cam))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), n.Load(), "no samples before attach")

	require.NoError(t, m.Attach(ctx, engine.TargetRef{ID: "preview"}))
	assert.Eventually(t, func() bool { return n.Load() > 5 }, 2*time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return m.CPUUsage() > 0 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, m.Destroy(ctx))
	after := n.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, n.Load(), "no samples after destroy")
}

func TestStateHook(t *testing.T) {
	var mu sync.Mutex
	var seen []State
	hook := func(from, to State) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, to)
	}
	m := attached(t, sim.New(sim.Options{}), WithStateHook(hook))
	_, err := m.PrepareExport(context.Background(), engine.EncodingParams{})
	require.NoError(t, err)
	require.NoError(t, m.Destroy(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateInitializing, StateReady, StateAttached, StateExporting, StateDestroyed}, seen)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "attached", StateAttached.String())
	assert.Equal(t, "state(42)", State(42).String())
}
