package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/linuxmatters/mediactl/internal/app"
	"github.com/linuxmatters/mediactl/internal/cli"
	"github.com/linuxmatters/mediactl/internal/config"
	"github.com/linuxmatters/mediactl/internal/engine"
	"github.com/linuxmatters/mediactl/internal/events"
	"github.com/linuxmatters/mediactl/internal/logging"
	"github.com/linuxmatters/mediactl/internal/presets"
	"github.com/linuxmatters/mediactl/internal/server"
	"github.com/linuxmatters/mediactl/internal/store"
	"github.com/linuxmatters/mediactl/internal/tracer"
	"github.com/linuxmatters/mediactl/internal/ui"
)

// version is set at build time via -ldflags
var version = "dev"

// Globals are flags shared by every command. Unset flags keep the
// environment's values.
type Globals struct {
	Engine string `help:"Engine transport (sim, daemon, nats)."`
	Socket string `help:"Engine daemon socket path." type:"path"`
	NATS   string `name:"nats" help:"NATS server URL for the nats transport."`
	DB     string `name:"db" help:"SQLite database for presets and export history." type:"path"`
	Strict bool   `help:"Panic on invalid session transitions."`
	Debug  bool   `help:"Enable debug logging."`
}

// CLI defines the command-line interface
type CLI struct {
	Globals

	Serve   ServeCmd   `cmd:"" help:"Run the HTTP/WebSocket control API."`
	Monitor MonitorCmd `cmd:"" help:"Open a live monitor for one source."`
	Presets PresetsCmd `cmd:"" help:"List, save or delete equalizer presets."`
	History HistoryCmd `cmd:"" help:"Show produced export configurations."`
	Version VersionCmd `cmd:"" help:"Show version information."`
}

func main() {
	cliArgs := &CLI{}
	ctx := kong.Parse(cliArgs,
		kong.Name("mediactl"),
		kong.Description("Adaptive media-parameter control for recording sessions"),
		kong.UsageOnError(),
		kong.Vars{
			"version": version,
		},
		kong.Help(cli.StyledHelpPrinter("Adaptive media-parameter control for recording sessions")),
		kong.Bind(&cliArgs.Globals),
	)
	if err := ctx.Run(); err != nil {
		cli.PrintError(err.Error())
		os.Exit(1)
	}
}

// loadConfig reads the environment, then applies flag overrides.
func (g *Globals) loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if g.Engine != "" {
		cfg.Engine.Transport = g.Engine
	}
	if g.Socket != "" {
		cfg.Engine.Socket = g.Socket
	}
	if g.NATS != "" {
		cfg.Engine.NatsURL = g.NATS
	}
	if g.DB != "" {
		cfg.Storage.DBPath = g.DB
	}
	cfg.App.Strict = cfg.App.Strict || g.Strict
	cfg.App.Debug = cfg.App.Debug || g.Debug
	return cfg, cfg.Validate()
}

func newLogger(cfg *config.Config, quiet bool) *zap.Logger {
	return logging.New(logging.Options{
		File:       cfg.App.LogFile,
		Production: cfg.App.Production,
		Debug:      cfg.App.Debug,
		Quiet:      quiet,
	})
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// ServeCmd runs the control API until interrupted.
type ServeCmd struct {
	Addr string `help:"Listen address." placeholder:"HOST:PORT"`
}

func (c *ServeCmd) Run(g *Globals) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if c.Addr != "" {
		cfg.App.Addr = c.Addr
	}
	log := newLogger(cfg, false)
	defer log.Sync()

	ctx, stop := signalContext()
	defer stop()

	shutdownTracer := tracer.Init(ctx, cfg.Otel.Enabled, cfg.Otel.Endpoint, version, log)
	defer shutdownTracer(context.Background())

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	srv := server.New(server.Deps{
		Hub:     a.Hub,
		Presets: a.Presets,
		History: a.Store,
		Events:  a.Bus,
		Log:     log,
	})

	errc := make(chan error, 1)
	go func() { errc <- srv.Run(cfg.App.Addr) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}

// MonitorCmd opens one source and shows it live.
type MonitorCmd struct {
	Source string `arg:"" optional:"" help:"Source id to open." default:"cam0"`
	Kind   string `help:"Source kind." enum:"camera,microphone,screen" default:"camera"`
	Target string `help:"Target to attach to." default:"preview"`
	Mains  int    `help:"Anti-banding frequency in Hz (0 detects from the timezone)." default:"0"`
}

func (c *MonitorCmd) Run(g *Globals) error {
	if c.Mains != 0 && c.Mains != 50 && c.Mains != 60 {
		return fmt.Errorf("mains must be 0, 50 or 60, got %d", c.Mains)
	}
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg, true)
	defer log.Sync()

	ctx, stop := signalContext()
	defer stop()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	sub, cancel := context.WithCancel(ctx)
	defer cancel()
	all, err := a.Bus.Subscribe(sub)
	if err != nil {
		return err
	}

	st, err := a.Hub.Open(ctx, engine.SourceRef{
		ID:            c.Source,
		Kind:          engine.SourceKind(c.Kind),
		AntiBandingHz: c.Mains,
	})
	if err != nil {
		return err
	}
	if err := st.AttachToTarget(ctx, engine.TargetRef{ID: c.Target, Kind: "preview"}); err != nil {
		return err
	}

	list, err := a.Presets.List(ctx)
	if err != nil {
		return err
	}
	ids := make([]engine.PresetID, 0, len(list))
	for _, p := range list {
		ids = append(ids, p.ID)
	}

	model := ui.NewModel(st, forSource(all, c.Source), ids)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) {
		err = nil
	}
	return err
}

// forSource passes through events for one source.
func forSource(in <-chan events.Event, source string) <-chan events.Event {
	out := make(chan events.Event, cap(in))
	go func() {
		defer close(out)
		for ev := range in {
			if ev.Source == source {
				out <- ev
			}
		}
	}()
	return out
}

// PresetsCmd manages the preset catalog.
type PresetsCmd struct {
	List   PresetsListCmd   `cmd:"" default:"1" help:"List presets."`
	Save   PresetsSaveCmd   `cmd:"" help:"Save a user preset."`
	Delete PresetsDeleteCmd `cmd:"" help:"Delete a user preset."`
}

type PresetsListCmd struct{}

func (c *PresetsListCmd) Run(g *Globals) error {
	return withCatalog(g, func(ctx context.Context, cat *presets.Catalog) error {
		list, err := cat.List(ctx)
		if err != nil {
			return err
		}
		t := logging.NewMetricTable("Name", "Baseline", "Kind")
		for _, p := range list {
			kind := "user"
			if p.Builtin {
				kind = "built-in"
			}
			t.AddRow(string(p.ID), p.Name, strconv.FormatFloat(p.Baseline, 'f', 1, 64), kind).Note = logging.FormatGains(p.Bands)
		}
		cli.PrintSection(os.Stdout, "Presets", t.String())
		return nil
	})
}

type PresetsSaveCmd struct {
	ID       string    `arg:"" help:"Preset id (lowercase letters, digits, dashes)."`
	Bands    []float64 `arg:"" help:"Up to ten band gains in dB, 31 Hz to 16 kHz."`
	Name     string    `help:"Display name."`
	Baseline float64   `help:"Master gain the preset starts from, in dB."`
}

func (c *PresetsSaveCmd) Run(g *Globals) error {
	if len(c.Bands) > engine.Bands {
		return fmt.Errorf("at most %d bands, got %d", engine.Bands, len(c.Bands))
	}
	return withCatalog(g, func(ctx context.Context, cat *presets.Catalog) error {
		p, err := cat.Save(ctx, presets.Preset{
			ID:       engine.PresetID(c.ID),
			Name:     c.Name,
			Bands:    engine.GainVectorFrom(c.Bands),
			Baseline: c.Baseline,
		})
		if err != nil {
			return err
		}
		cli.PrintField(os.Stdout, "Saved:", fmt.Sprintf("%s  %s", p.ID, logging.FormatGains(p.Bands)))
		return nil
	})
}

type PresetsDeleteCmd struct {
	ID string `arg:"" help:"Preset id."`
}

func (c *PresetsDeleteCmd) Run(g *Globals) error {
	return withCatalog(g, func(ctx context.Context, cat *presets.Catalog) error {
		return cat.Delete(ctx, engine.PresetID(c.ID))
	})
}

func withCatalog(g *Globals, fn func(context.Context, *presets.Catalog) error) error {
	return withStore(g, func(ctx context.Context, db *store.Store) error {
		return fn(ctx, presets.NewCatalog(db))
	})
}

func withStore(g *Globals, fn func(context.Context, *store.Store) error) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	db, err := store.Open(ctx, cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(ctx, db)
}

// HistoryCmd prints the export history.
type HistoryCmd struct {
	Limit int `short:"n" help:"Number of records to show." default:"20"`
}

func (c *HistoryCmd) Run(g *Globals) error {
	return withStore(g, func(ctx context.Context, db *store.Store) error {
		recs, err := db.Exports(ctx, c.Limit)
		if err != nil {
			return err
		}
		cli.PrintSection(os.Stdout, "Exports", logging.HistoryTable(recs).String())
		return nil
	})
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	cli.PrintVersion(version)
	return nil
}
