package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxmatters/mediactl/internal/config"
	"github.com/linuxmatters/mediactl/internal/engine"
	"github.com/linuxmatters/mediactl/internal/events"
)

func testConfig(t *testing.T) *config.Config {
	cfg := config.FromEnv()
	cfg.Engine.Transport = "sim"
	cfg.Storage.DBPath = filepath.Join(t.TempDir(), "mediactl.sqlite")
	cfg.Storage.Slots = "memory"
	cfg.Control.QuietWindow = 5 * time.Millisecond
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestBuildSimulated(t *testing.T) {
	ctx := context.Background()
	a, err := Build(ctx, testConfig(t), nil)
	require.NoError(t, err)

	sub, cancel := context.WithCancel(ctx)
	defer cancel()
	evs, err := a.Bus.Subscribe(sub)
	require.NoError(t, err)

	st, err := a.Hub.Open(ctx, engine.SourceRef{ID: "mic0", Kind: engine.SourceMicrophone})
	require.NoError(t, err)
	require.NoError(t, st.AttachToTarget(ctx, engine.TargetRef{ID: "recording"}))

	cfg, err := st.PrepareExport(ctx)
	require.NoError(t, err)
	assert.True(t, cfg.Valid)
	assert.Equal(t, "aac", cfg.Encoding.Codec)

	recs, err := a.Store.Exports(ctx, 5)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	var sawExport bool
	timeout := time.After(2 * time.Second)
	for !sawExport {
		select {
		case ev := <-evs:
			sawExport = ev.Type == events.TypeExport
		case <-timeout:
			t.Fatal("no export event on the bus")
		}
	}

	require.NoError(t, a.Close(ctx))
}

func TestBuildDaemonIsLazy(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.Transport = "daemon"
	cfg.Engine.Socket = filepath.Join(t.TempDir(), "missing.sock")
	cfg.Engine.CallTimeout = time.Second

	ctx := context.Background()
	a, err := Build(ctx, cfg, nil)
	require.NoError(t, err)
	defer a.Close(ctx)

	st, err := a.Hub.Open(ctx, engine.SourceRef{ID: "cam0", Kind: engine.SourceCamera, AntiBandingHz: 50})
	require.NoError(t, err)
	assert.True(t, st.IsReady())
	assert.Equal(t, "unavailable", st.Status().State)
}

func TestBuildRejectsUnknownTransport(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.Transport = "carrier-pigeon"
	_, err := Build(context.Background(), cfg, nil)
	assert.Error(t, err)
}
