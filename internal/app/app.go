// Package app assembles the runtime from a Config: engine transport, slot
// registry, stores, event bus and the studio hub.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/linuxmatters/mediactl/internal/config"
	"github.com/linuxmatters/mediactl/internal/engine"
	"github.com/linuxmatters/mediactl/internal/engine/daemon"
	"github.com/linuxmatters/mediactl/internal/engine/natsengine"
	"github.com/linuxmatters/mediactl/internal/engine/sim"
	"github.com/linuxmatters/mediactl/internal/events"
	"github.com/linuxmatters/mediactl/internal/logging"
	"github.com/linuxmatters/mediactl/internal/presets"
	"github.com/linuxmatters/mediactl/internal/slots"
	"github.com/linuxmatters/mediactl/internal/store"
	"github.com/linuxmatters/mediactl/internal/studio"
)

// App holds the wired runtime.
type App struct {
	Config   *config.Config
	Log      *zap.Logger
	Engine   engine.Engine
	Bus      *events.Bus
	Store    *store.Store
	Presets  *presets.Catalog
	Reporter *logging.Reporter
	Hub      *studio.Hub

	closers []func() error
}

// Build wires everything cfg selects. On error, whatever was opened is
// closed again.
func Build(ctx context.Context, cfg *config.Config, log *zap.Logger) (_ *App, err error) {
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{Config: cfg, Log: log}
	defer func() {
		if err != nil {
			_ = a.closeAll()
		}
	}()

	a.Store, err = store.Open(ctx, cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.Store.Close)
	a.Presets = presets.NewCatalog(a.Store)

	a.Bus = events.NewBus(log)
	a.closers = append(a.closers, a.Bus.Close)
	a.Reporter = logging.NewReporter(log, a.Bus)

	eng, err := a.openEngine(ctx)
	if err != nil {
		return nil, err
	}
	a.Engine = engine.Traced(eng)

	reg, err := a.openSlots(ctx)
	if err != nil {
		return nil, err
	}

	a.Hub = studio.NewHub(studio.Config{
		Engine:      a.Engine,
		Presets:     a.Presets,
		Slots:       reg,
		History:     a.Store,
		Bus:         a.Bus,
		Reporter:    a.Reporter,
		Log:         log,
		QuietWindow: cfg.Control.QuietWindow,
		CallTimeout: cfg.Engine.CallTimeout,
		Strict:      cfg.App.Strict,
		Encoding: engine.EncodingParams{
			Codec:       cfg.Control.Codec,
			BitrateKbps: cfg.Control.BitrateKbps,
			SampleRate:  cfg.Control.SampleRate,
		},
	})
	return a, nil
}

func (a *App) openEngine(ctx context.Context) (engine.Engine, error) {
	ec := a.Config.Engine
	switch ec.Transport {
	case "sim":
		a.Log.Info("using simulated engine")
		return sim.New(sim.Options{}), nil
	case "daemon":
		e := daemon.New(ec.Socket, a.Log.Named("daemon"))
		a.closers = append(a.closers, e.Close)
		return e, nil
	case "nats":
		e, err := natsengine.Connect(ec.NatsURL, ec.NatsPrefix, a.Log.Named("nats"))
		if err != nil {
			return nil, fmt.Errorf("connect engine: %w", err)
		}
		a.closers = append(a.closers, func() error { e.Close(); return nil })
		return e, nil
	default:
		return nil, fmt.Errorf("unknown engine transport %q", ec.Transport)
	}
}

func (a *App) openSlots(ctx context.Context) (slots.Registry, error) {
	sc := a.Config.Storage
	if sc.Slots != "redis" {
		return slots.NewMemory(), nil
	}
	r, err := slots.DialRedis(ctx, sc.RedisURL, sc.SlotTTL)
	if err != nil {
		return nil, err
	}
	r.OnLost = func(source string) {
		a.Reporter.ForSource(source).Report("slots.refresh", slots.ErrLost)
	}
	a.closers = append(a.closers, r.Close)
	return r, nil
}

// Close ends every studio, then releases transports and stores.
func (a *App) Close(ctx context.Context) error {
	var errs error
	if a.Hub != nil {
		errs = a.Hub.CloseAll(ctx)
	}
	return errors.Join(errs, a.closeAll())
}

func (a *App) closeAll() error {
	var errs error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = errors.Join(errs, a.closers[i]())
	}
	a.closers = nil
	return errs
}
