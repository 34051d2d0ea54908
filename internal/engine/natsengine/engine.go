// Package natsengine reaches a remote media engine through NATS
// request/reply, with level samples published per session.
package natsengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/linuxmatters/mediactl/internal/engine"
	"github.com/linuxmatters/mediactl/internal/engine/wire"
)

// DefaultPrefix is the subject root used when none is configured.
const DefaultPrefix = "mediactl.engine"

// Engine implements engine.Engine over a NATS connection.
type Engine struct {
	nc     *nats.Conn
	prefix string
	log    *zap.Logger
	owned  bool
}

// Connect dials url and returns an Engine that owns the connection.
func Connect(url, prefix string, log *zap.Logger) (*Engine, error) {
	nc, err := nats.Connect(url,
		nats.Name("mediactl"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	e := New(nc, prefix, log)
	e.owned = true
	return e, nil
}

// New wraps an existing connection.
func New(nc *nats.Conn, prefix string, log *zap.Logger) *Engine {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{nc: nc, prefix: prefix, log: log.Named("nats")}
}

// Close closes the connection if the Engine dialled it.
func (e *Engine) Close() {
	if e.owned && e.nc != nil {
		e.nc.Close()
	}
}

// CommandSubject is the request subject for cmd.
func (e *Engine) CommandSubject(cmd string) string {
	return e.prefix + ".cmd." + cmd
}

// EventSubject is the subject level samples for id are published on.
func (e *Engine) EventSubject(id engine.SessionID) string {
	return e.prefix + ".events." + string(id)
}

func (e *Engine) request(ctx context.Context, op string, cmd wire.Command) (wire.Response, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return wire.Response{}, &engine.Error{Op: op, Kind: engine.KindRejected, Err: err}
	}

	msg, err := e.nc.RequestWithContext(ctx, e.CommandSubject(cmd.Cmd), data)
	if err != nil {
		switch {
		case errors.Is(err, nats.ErrNoResponders), errors.Is(err, nats.ErrConnectionClosed):
			return wire.Response{}, &engine.Error{Op: op, Kind: engine.KindUnavailable, Err: errors.Join(engine.ErrUnavailable, err)}
		case errors.Is(err, nats.ErrTimeout):
			return wire.Response{}, &engine.Error{Op: op, Kind: engine.KindTimeout, Err: err}
		}
		return wire.Response{}, engine.Wrap(op, err)
	}

	var resp wire.Response
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return wire.Response{}, &engine.Error{Op: op, Kind: engine.KindTransient, Err: fmt.Errorf("unmarshal response: %w", err)}
	}
	return resp, resp.Err(op)
}

func (e *Engine) CreateSession(ctx context.Context, source engine.SourceRef) (engine.SessionID, error) {
	resp, err := e.request(ctx, engine.OpCreateSession, wire.NewCreateSession(source))
	if err != nil {
		return "", err
	}
	if resp.SessionID == "" {
		return "", engine.Errorf(engine.OpCreateSession, engine.KindRejected, "engine returned no session id")
	}
	return engine.SessionID(resp.SessionID), nil
}

func (e *Engine) Attach(ctx context.Context, id engine.SessionID, target engine.TargetRef) error {
	_, err := e.request(ctx, engine.OpAttach, wire.NewAttach(id, target))
	return err
}

func (e *Engine) ApplyGains(ctx context.Context, id engine.SessionID, gains engine.GainVector) error {
	_, err := e.request(ctx, engine.OpApplyGains, wire.NewApplyGains(id, gains))
	return err
}

func (e *Engine) ApplyAggressiveness(ctx context.Context, id engine.SessionID, level float64) error {
	_, err := e.request(ctx, engine.OpApplyAggressiveness, wire.NewValue(wire.CmdApplyAggressiveness, id, level))
	return err
}

func (e *Engine) ApplyZoom(ctx context.Context, id engine.SessionID, zoom float64) error {
	_, err := e.request(ctx, engine.OpApplyZoom, wire.NewValue(wire.CmdApplyZoom, id, zoom))
	return err
}

func (e *Engine) ApplyExposure(ctx context.Context, id engine.SessionID, exposure float64) error {
	_, err := e.request(ctx, engine.OpApplyExposure, wire.NewValue(wire.CmdApplyExposure, id, exposure))
	return err
}

func (e *Engine) PrepareExport(ctx context.Context, id engine.SessionID, cfg engine.ExportConfig) (engine.ExportHandle, error) {
	resp, err := e.request(ctx, engine.OpPrepareExport, wire.NewPrepareExport(id, cfg))
	if err != nil {
		return "", err
	}
	return engine.ExportHandle(resp.ExportHandle), nil
}

func (e *Engine) DestroySession(ctx context.Context, id engine.SessionID) error {
	_, err := e.request(ctx, engine.OpDestroySession, wire.NewSession(wire.CmdDestroySession, id))
	return err
}

// Subscribe listens on the session's event subject until ctx is done.
func (e *Engine) Subscribe(ctx context.Context, id engine.SessionID) (<-chan engine.Event, error) {
	msgs := make(chan *nats.Msg, 64)
	sub, err := e.nc.ChanSubscribe(e.EventSubject(id), msgs)
	if err != nil {
		return nil, engine.Wrap(engine.OpSubscribe, err)
	}

	out := make(chan engine.Event, 16)
	go func() {
		defer close(out)
		defer func() { _ = sub.Unsubscribe() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-msgs:
				var wev wire.Event
				if err := json.Unmarshal(msg.Data, &wev); err != nil {
					e.log.Debug("bad event payload", zap.String("subject", msg.Subject), zap.Error(err))
					continue
				}
				ev, ok := wev.ToEngine(time.Now())
				if !ok {
					continue
				}
				if ev.SessionID == "" {
					ev.SessionID = id
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

var _ engine.Engine = (*Engine)(nil)
