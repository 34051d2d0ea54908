package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxmatters/mediactl/internal/engine"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPresets(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Preset(ctx, "studio")
	assert.ErrorIs(t, err, ErrNotFound)

	in := PresetRecord{ID: "studio", Name: "Studio", Bands: engine.GainVector{-3, -1, 0, 1, 2}, Baseline: -1}
	require.NoError(t, s.SavePreset(ctx, in))
	require.NoError(t, s.SavePreset(ctx, PresetRecord{ID: "alpha", Name: "Alpha"}))

	got, err := s.Preset(ctx, "studio")
	require.NoError(t, err)
	assert.Equal(t, "Studio", got.Name)
	assert.Equal(t, in.Bands, got.Bands)
	assert.Equal(t, -1.0, got.Baseline)
	assert.False(t, got.CreatedAt.IsZero())

	in.Name = "Studio B"
	require.NoError(t, s.SavePreset(ctx, in))
	all, err := s.Presets(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Alpha", all[0].Name)
	assert.Equal(t, "Studio B", all[1].Name)

	require.NoError(t, s.DeletePreset(ctx, "alpha"))
	require.NoError(t, s.DeletePreset(ctx, "alpha"))
	all, err = s.Presets(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestExportHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Unix(1700000000, 0)

	first := ExportRecord{
		SourceID:  "cam0",
		CreatedAt: base,
		Config: engine.ExportConfig{
			SessionID:      "s1",
			Gains:          engine.GainVector{1, 2, 3},
			Aggressiveness: 1.9,
			Preset:         "voice",
			Valid:          true,
			Handle:         "export-1",
			Encoding:       engine.EncodingParams{Codec: "aac", BitrateKbps: 192, SampleRate: 48000},
		},
	}
	second := ExportRecord{
		SourceID:  "mic0",
		CreatedAt: base.Add(time.Minute),
		Config:    engine.Disabled(engine.EncodingParams{Codec: "opus"}),
	}

	id, err := s.RecordExport(ctx, first)
	require.NoError(t, err)
	assert.Positive(t, id)
	_, err = s.RecordExport(ctx, second)
	require.NoError(t, err)

	got, err := s.Exports(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "mic0", got[0].SourceID, "newest first")
	assert.False(t, got[0].Config.Valid)
	assert.Equal(t, "opus", got[0].Config.Encoding.Codec)

	assert.Equal(t, first.Config, got[1].Config)
	assert.Equal(t, base.Unix(), got[1].CreatedAt.Unix())

	limited, err := s.Exports(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestOpenInMemory(t *testing.T) {
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SavePreset(context.Background(), PresetRecord{ID: "x", Name: "X"}))
	all, err := s.Presets(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestTimeConversion(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 30, 0, 500_000_000, time.UTC)
	got := timeFromUnix(unixFromTime(ts))
	assert.WithinDuration(t, ts, got, time.Millisecond)
}
