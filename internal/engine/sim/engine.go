// Package sim is an in-process media engine. It renders a synthetic
// programme, applies the session's gains to it and meters the result, so
// the control loops can run end to end without native code.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/linuxmatters/mediactl/internal/engine"
)

// Options tune the simulation.
type Options struct {
	SampleRate int
	BlockSize  int
	Interval   time.Duration // time between level samples
	Scene      []Segment
	Seed       uint64

	// Unavailable makes every call fail as if the engine were missing.
	Unavailable bool
	// Latency delays every command, honouring ctx.
	Latency time.Duration
}

func (o *Options) defaults() {
	if o.SampleRate <= 0 {
		o.SampleRate = 48000
	}
	if o.BlockSize <= 0 {
		o.BlockSize = 1024
	}
	if o.Interval <= 0 {
		o.Interval = 50 * time.Millisecond
	}
}

// SessionState is what the simulation has been told about one session.
type SessionState struct {
	Source         engine.SourceRef
	Target         engine.TargetRef
	Attached       bool
	Gains          engine.GainVector
	Aggressiveness float64
	Zoom           float64
	Exposure       float64
	Exports        []engine.ExportConfig
}

type session struct {
	state SessionState
	done  chan struct{}
}

// Engine implements engine.Engine in process.
type Engine struct {
	opts Options

	mu       sync.Mutex
	sessions map[engine.SessionID]*session
	calls    map[string]int
	faults   map[string][]error
}

// New returns a simulated engine.
func New(opts Options) *Engine {
	opts.defaults()
	return &Engine{
		opts:     opts,
		sessions: make(map[engine.SessionID]*session),
		calls:    make(map[string]int),
		faults:   make(map[string][]error),
	}
}

// FailNext makes the next call to op fail with a transient error. Errors
// queue, so calling it twice fails two calls.
func (e *Engine) FailNext(op string, kind engine.Kind) {
	e.mu.Lock()
	defer e.mu.Unlock()
	err := &engine.Error{Op: op, Kind: kind, Err: errors.New("injected fault")}
	if kind == engine.KindUnavailable {
		err.Err = engine.ErrUnavailable
	}
	e.faults[op] = append(e.faults[op], err)
}

// Calls reports how many times op was invoked.
func (e *Engine) Calls(op string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[op]
}

// Session returns a copy of the state the engine holds for id.
func (e *Engine) Session(id engine.SessionID) (SessionState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[id]
	if !ok {
		return SessionState{}, false
	}
	st := s.state
	st.Exports = append([]engine.ExportConfig(nil), s.state.Exports...)
	return st, true
}

// Sessions reports the number of live sessions.
func (e *Engine) Sessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

// begin records the call and returns an injected or simulated failure.
func (e *Engine) begin(ctx context.Context, op string) error {
	e.mu.Lock()
	e.calls[op]++
	var fault error
	if q := e.faults[op]; len(q) > 0 {
		fault, e.faults[op] = q[0], q[1:]
	}
	e.mu.Unlock()

	if e.opts.Unavailable {
		return &engine.Error{Op: op, Kind: engine.KindUnavailable, Err: engine.ErrUnavailable}
	}
	if e.opts.Latency > 0 {
		t := time.NewTimer(e.opts.Latency)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return engine.Wrap(op, ctx.Err())
		}
	}
	return fault
}

// with runs fn against the live session id under the engine lock.
func (e *Engine) with(op string, id engine.SessionID, fn func(*session) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[id]
	if !ok {
		return engine.Errorf(op, engine.KindRejected, "unknown session %q", id)
	}
	return fn(s)
}

func (e *Engine) CreateSession(ctx context.Context, source engine.SourceRef) (engine.SessionID, error) {
	if err := e.begin(ctx, engine.OpCreateSession); err != nil {
		return "", err
	}
	id := engine.SessionID(uuid.NewString())
	e.mu.Lock()
	e.sessions[id] = &session{
		state: SessionState{
			Source:         source,
			Aggressiveness: engine.DefaultAggressiveness,
			Zoom:           1,
		},
		done: make(chan struct{}),
	}
	e.mu.Unlock()
	return id, nil
}

func (e *Engine) Attach(ctx context.Context, id engine.SessionID, target engine.TargetRef) error {
	if err := e.begin(ctx, engine.OpAttach); err != nil {
		return err
	}
	return e.with(engine.OpAttach, id, func(s *session) error {
		s.state.Target = target
		s.state.Attached = true
		return nil
	})
}

func (e *Engine) ApplyGains(ctx context.Context, id engine.SessionID, gains engine.GainVector) error {
	if err := e.begin(ctx, engine.OpApplyGains); err != nil {
		return err
	}
	return e.with(engine.OpApplyGains, id, func(s *session) error {
		s.state.Gains = gains
		return nil
	})
}

func (e *Engine) ApplyAggressiveness(ctx context.Context, id engine.SessionID, level float64) error {
	if err := e.begin(ctx, engine.OpApplyAggressiveness); err != nil {
		return err
	}
	return e.with(engine.OpApplyAggressiveness, id, func(s *session) error {
		s.state.Aggressiveness = level
		return nil
	})
}

func (e *Engine) ApplyZoom(ctx context.Context, id engine.SessionID, zoom float64) error {
	if err := e.begin(ctx, engine.OpApplyZoom); err != nil {
		return err
	}
	return e.with(engine.OpApplyZoom, id, func(s *session) error {
		s.state.Zoom = zoom
		return nil
	})
}

func (e *Engine) ApplyExposure(ctx context.Context, id engine.SessionID, exposure float64) error {
	if err := e.begin(ctx, engine.OpApplyExposure); err != nil {
		return err
	}
	return e.with(engine.OpApplyExposure, id, func(s *session) error {
		s.state.Exposure = exposure
		return nil
	})
}

func (e *Engine) PrepareExport(ctx context.Context, id engine.SessionID, cfg engine.ExportConfig) (engine.ExportHandle, error) {
	if err := e.begin(ctx, engine.OpPrepareExport); err != nil {
		return "", err
	}
	var h engine.ExportHandle
	err := e.with(engine.OpPrepareExport, id, func(s *session) error {
		if !s.state.Attached {
			return engine.Errorf(engine.OpPrepareExport, engine.KindRejected, "session %q is not attached", id)
		}
		s.state.Exports = append(s.state.Exports, cfg)
		h = engine.ExportHandle(fmt.Sprintf("export-%s", uuid.NewString()))
		return nil
	})
	return h, err
}

func (e *Engine) DestroySession(ctx context.Context, id engine.SessionID) error {
	if err := e.begin(ctx, engine.OpDestroySession); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.sessions[id]; ok {
		close(s.done)
		delete(e.sessions, id)
	}
	return nil
}

// Subscribe renders and meters one block per interval. Every twentieth
// block also yields a telemetry event carrying the render cost as a share
// of the interval.
func (e *Engine) Subscribe(ctx context.Context, id engine.SessionID) (<-chan engine.Event, error) {
	if err := e.begin(ctx, engine.OpSubscribe); err != nil {
		return nil, err
	}
	e.mu.Lock()
	s, ok := e.sessions[id]
	e.mu.Unlock()
	if !ok {
		return nil, engine.Errorf(engine.OpSubscribe, engine.KindRejected, "unknown session %q", id)
	}

	out := make(chan engine.Event, 16)
	go e.stream(ctx, id, s, out)
	return out, nil
}

func (e *Engine) stream(ctx context.Context, id engine.SessionID, s *session, out chan<- engine.Event) {
	defer close(out)

	gen := newGenerator(e.opts.Scene, e.opts.SampleRate, e.opts.BlockSize, e.opts.Seed)
	block := make([]float64, e.opts.BlockSize)
	scratch := make([]float64, e.opts.BlockSize)

	ticker := time.NewTicker(e.opts.Interval)
	defer ticker.Stop()

	var busy time.Duration
	for n := 1; ; n++ {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
		}

		start := time.Now()
		e.mu.Lock()
		gains := s.state.Gains
		e.mu.Unlock()

		gen.next(block, dbToLinear(meanGain(gains)))
		ev := engine.Event{
			Kind:      engine.EventLevel,
			SessionID: id,
			Sample:    Measure(block, scratch).Sample(start),
		}
		busy += time.Since(start)

		if !send(ctx, out, ev) {
			return
		}
		if n%20 == 0 {
			cpu := 100 * float64(busy) / float64(20*e.opts.Interval)
			busy = 0
			if !send(ctx, out, engine.Event{Kind: engine.EventTelemetry, SessionID: id, CPUUsage: cpu}) {
				return
			}
		}
	}
}

func send(ctx context.Context, out chan<- engine.Event, ev engine.Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func meanGain(v engine.GainVector) float64 {
	var sum float64
	for _, g := range v {
		sum += g
	}
	return sum / engine.Bands
}

var _ engine.Engine = (*Engine)(nil)
