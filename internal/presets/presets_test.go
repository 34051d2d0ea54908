package presets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linuxmatters/mediactl/internal/engine"
	"github.com/linuxmatters/mediactl/internal/store"
)

func TestBuiltinsAreInRange(t *testing.T) {
	for _, p := range Builtins() {
		t.Run(string(p.ID), func(t *testing.T) {
			assert.True(t, p.Builtin)
			assert.Equal(t, p.Bands.Clamped(), p.Bands, "bands within bounds")
			assert.NotEmpty(t, p.Name)
		})
	}
	flat, ok := Builtin(engine.FlatPreset)
	require.True(t, ok)
	assert.Equal(t, engine.GainVector{}, flat.Bands)
}

func TestCatalogWithoutStore(t *testing.T) {
	c := NewCatalog(nil)
	ctx := context.Background()

	p, err := c.Lookup(ctx, "voice")
	require.NoError(t, err)
	assert.Equal(t, "Voice", p.Name)

	_, err = c.Lookup(ctx, "mine")
	assert.ErrorIs(t, err, ErrUnknownPreset)

	all, err := c.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, len(builtins))
}

func TestCatalogSaveAndLookup(t *testing.T) {
	s, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	defer s.Close()

	c := NewCatalog(s)
	ctx := context.Background()

	saved, err := c.Save(ctx, Preset{ID: "late-night", Bands: engine.GainVector{9, 1}, Baseline: -8})
	require.NoError(t, err)
	assert.Equal(t, "late-night", saved.Name)
	assert.Equal(t, 6.0, saved.Bands[0])
	assert.Equal(t, -6.0, saved.Baseline)

	// A fresh catalog has to go to the store.
	fresh := NewCatalog(s)
	got, err := fresh.Lookup(ctx, "late-night")
	require.NoError(t, err)
	assert.Equal(t, saved, got)

	all, err := fresh.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, len(builtins)+1)

	require.NoError(t, fresh.Delete(ctx, "late-night"))
	_, err = fresh.Lookup(ctx, "late-night")
	assert.ErrorIs(t, err, ErrUnknownPreset)
}

func TestCatalogSaveRejects(t *testing.T) {
	s, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	defer s.Close()
	c := NewCatalog(s)
	ctx := context.Background()

	_, err = c.Save(ctx, Preset{ID: "voice"})
	assert.ErrorIs(t, err, ErrReadOnly)
	_, err = c.Save(ctx, Preset{ID: "Bad ID"})
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.ErrorIs(t, c.Delete(ctx, engine.FlatPreset), ErrReadOnly)
}
