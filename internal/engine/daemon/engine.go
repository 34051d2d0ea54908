package daemon

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/linuxmatters/mediactl/internal/engine"
	"github.com/linuxmatters/mediactl/internal/engine/wire"
)

// Engine implements engine.Engine against the daemon. The command
// connection is dialled lazily and redialled after an I/O failure; each
// subscription gets its own connection.
type Engine struct {
	socketPath string
	log        *zap.Logger

	mu  sync.Mutex
	cmd *Client
}

// New returns an Engine for the daemon listening on socketPath.
func New(socketPath string, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{socketPath: socketPath, log: log.Named("daemon")}
}

// Close drops the command connection.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cmd == nil {
		return nil
	}
	err := e.cmd.Close()
	e.cmd = nil
	return err
}

func (e *Engine) client(ctx context.Context) (*Client, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cmd != nil {
		return e.cmd, nil
	}
	c, err := Connect(ctx, e.socketPath)
	if err != nil {
		return nil, err
	}
	e.cmd = c
	return c, nil
}

func (e *Engine) drop(c *Client) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cmd == c {
		_ = c.Close()
		e.cmd = nil
	}
}

func (e *Engine) do(ctx context.Context, op string, cmd wire.Command) (wire.Response, error) {
	c, err := e.client(ctx)
	if err != nil {
		return wire.Response{}, &engine.Error{Op: op, Kind: engine.KindUnavailable, Err: errors.Join(engine.ErrUnavailable, err)}
	}
	resp, err := c.SendCommand(ctx, cmd)
	if err != nil {
		e.drop(c)
		e.log.Debug("command failed", zap.String("cmd", op), zap.Error(err))
		return wire.Response{}, engine.Wrap(op, err)
	}
	return resp, resp.Err(op)
}

func (e *Engine) CreateSession(ctx context.Context, source engine.SourceRef) (engine.SessionID, error) {
	resp, err := e.do(ctx, engine.OpCreateSession, wire.NewCreateSession(source))
	if err != nil {
		return "", err
	}
	if resp.SessionID == "" {
		return "", engine.Errorf(engine.OpCreateSession, engine.KindRejected, "engine returned no session id")
	}
	return engine.SessionID(resp.SessionID), nil
}

func (e *Engine) Attach(ctx context.Context, id engine.SessionID, target engine.TargetRef) error {
	_, err := e.do(ctx, engine.OpAttach, wire.NewAttach(id, target))
	return err
}

func (e *Engine) ApplyGains(ctx context.Context, id engine.SessionID, gains engine.GainVector) error {
	_, err := e.do(ctx, engine.OpApplyGains, wire.NewApplyGains(id, gains))
	return err
}

func (e *Engine) ApplyAggressiveness(ctx context.Context, id engine.SessionID, level float64) error {
	_, err := e.do(ctx, engine.OpApplyAggressiveness, wire.NewValue(wire.CmdApplyAggressiveness, id, level))
	return err
}

func (e *Engine) ApplyZoom(ctx context.Context, id engine.SessionID, zoom float64) error {
	_, err := e.do(ctx, engine.OpApplyZoom, wire.NewValue(wire.CmdApplyZoom, id, zoom))
	return err
}

func (e *Engine) ApplyExposure(ctx context.Context, id engine.SessionID, exposure float64) error {
	_, err := e.do(ctx, engine.OpApplyExposure, wire.NewValue(wire.CmdApplyExposure, id, exposure))
	return err
}

func (e *Engine) PrepareExport(ctx context.Context, id engine.SessionID, cfg engine.ExportConfig) (engine.ExportHandle, error) {
	resp, err := e.do(ctx, engine.OpPrepareExport, wire.NewPrepareExport(id, cfg))
	if err != nil {
		return "", err
	}
	return engine.ExportHandle(resp.ExportHandle), nil
}

func (e *Engine) DestroySession(ctx context.Context, id engine.SessionID) error {
	_, err := e.do(ctx, engine.OpDestroySession, wire.NewSession(wire.CmdDestroySession, id))
	return err
}

// Subscribe opens a dedicated connection and streams events from it until
// ctx is cancelled or the daemon hangs up.
func (e *Engine) Subscribe(ctx context.Context, id engine.SessionID) (<-chan engine.Event, error) {
	c, err := Connect(ctx, e.socketPath)
	if err != nil {
		return nil, &engine.Error{Op: engine.OpSubscribe, Kind: engine.KindUnavailable, Err: errors.Join(engine.ErrUnavailable, err)}
	}
	resp, err := c.SendCommand(ctx, wire.NewSession(wire.CmdSubscribe, id))
	if err == nil {
		err = resp.Err(engine.OpSubscribe)
	}
	if err != nil {
		_ = c.Close()
		return nil, engine.Wrap(engine.OpSubscribe, err)
	}
	// The handshake deadline must not cut the stream short.
	_ = c.conn.SetDeadline(time.Time{})

	out := make(chan engine.Event, 16)
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	go func() {
		defer close(out)
		defer stop()
		defer c.Close()
		for {
			wev, err := c.ReadEvent()
			if err != nil {
				if ctx.Err() == nil {
					e.log.Warn("event stream ended", zap.String("session", string(id)), zap.Error(err))
				}
				return
			}
			ev, ok := wev.ToEngine(time.Now())
			if !ok {
				e.log.Debug("ignoring event", zap.String("event", wev.Event))
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

var _ engine.Engine = (*Engine)(nil)
