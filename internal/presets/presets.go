// Package presets resolves equalizer presets: built-in shapes plus user
// presets from the store, cached in memory.
package presets

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/linuxmatters/mediactl/internal/engine"
	"github.com/linuxmatters/mediactl/internal/limiter"
	"github.com/linuxmatters/mediactl/internal/store"
)

var (
	// ErrUnknownPreset is returned for ids that are neither built in nor saved.
	ErrUnknownPreset = errors.New("unknown preset")
	// ErrReadOnly is returned when saving over a built-in preset.
	ErrReadOnly = errors.New("built-in presets cannot be changed")
	// ErrInvalidID is returned for ids outside [a-z0-9-].
	ErrInvalidID = errors.New("preset id must be lowercase letters, digits or dashes")
)

var validID = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,39}$`)

// Preset is a band shape plus the master gain it starts from.
type Preset struct {
	ID       engine.PresetID   `json:"id"`
	Name     string            `json:"name"`
	Bands    engine.GainVector `json:"bands"`
	Baseline float64           `json:"baseline"`
	Builtin  bool              `json:"builtin"`
}

// Band order: 31, 62, 125, 250, 500, 1k, 2k, 4k, 8k, 16k Hz.
var builtins = map[engine.PresetID]Preset{
	engine.FlatPreset: {ID: engine.FlatPreset, Name: "Flat"},
	"voice": {
		ID:    "voice",
		Name:  "Voice",
		Bands: engine.GainVector{-6, -4, -2, 0, 1, 2, 3, 2, 1, 0},
	},
	"podcast": {
		ID:    "podcast",
		Name:  "Podcast",
		Bands: engine.GainVector{-6, -3, -1, 0, 1, 2, 2, 1, 0, -1},
	},
	"warm": {
		ID:    "warm",
		Name:  "Warm",
		Bands: engine.GainVector{2, 2, 1, 1, 0, 0, -1, -1, -2, -2},
	},
	"bright": {
		ID:    "bright",
		Name:  "Bright",
		Bands: engine.GainVector{-2, -1, 0, 0, 0, 1, 2, 3, 3, 2},
	},
	"interview": {
		ID:       "interview",
		Name:     "Interview",
		Bands:    engine.GainVector{-6, -5, -3, -1, 1, 2, 2, 1, -1, -2},
		Baseline: -1,
	},
}

func init() {
	for id, p := range builtins {
		p.Builtin = true
		builtins[id] = p
	}
}

// Builtin returns the named built-in preset.
func Builtin(id engine.PresetID) (Preset, bool) {
	p, ok := builtins[id]
	return p, ok
}

// Builtins returns all built-in presets ordered by id.
func Builtins() []Preset {
	out := make([]Preset, 0, len(builtins))
	for _, p := range builtins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Persister is the storage behind user presets.
type Persister interface {
	Preset(ctx context.Context, id string) (store.PresetRecord, error)
	Presets(ctx context.Context) ([]store.PresetRecord, error)
	SavePreset(ctx context.Context, p store.PresetRecord) error
	DeletePreset(ctx context.Context, id string) error
}

// Catalog looks presets up by id. A nil Persister serves built-ins only.
type Catalog struct {
	store Persister
	cache *cache.Cache
}

// NewCatalog returns a catalog backed by p.
func NewCatalog(p Persister) *Catalog {
	return &Catalog{
		store: p,
		cache: cache.New(10*time.Minute, 20*time.Minute),
	}
}

// Lookup resolves id. Built-ins shadow saved presets.
func (c *Catalog) Lookup(ctx context.Context, id engine.PresetID) (Preset, error) {
	if p, ok := builtins[id]; ok {
		return p, nil
	}
	if v, ok := c.cache.Get(string(id)); ok {
		return v.(Preset), nil
	}
	if c.store == nil {
		return Preset{}, fmt.Errorf("%w: %s", ErrUnknownPreset, id)
	}

	rec, err := c.store.Preset(ctx, string(id))
	if errors.Is(err, store.ErrNotFound) {
		return Preset{}, fmt.Errorf("%w: %s", ErrUnknownPreset, id)
	}
	if err != nil {
		return Preset{}, err
	}
	p := fromRecord(rec)
	c.cache.SetDefault(string(id), p)
	return p, nil
}

// List returns built-ins followed by saved presets.
func (c *Catalog) List(ctx context.Context) ([]Preset, error) {
	out := Builtins()
	if c.store == nil {
		return out, nil
	}
	recs, err := c.store.Presets(ctx)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		if _, ok := builtins[engine.PresetID(rec.ID)]; ok {
			continue
		}
		out = append(out, fromRecord(rec))
	}
	return out, nil
}

// Save stores a user preset. Bands are clamped.
func (c *Catalog) Save(ctx context.Context, p Preset) (Preset, error) {
	if !validID.MatchString(string(p.ID)) {
		return Preset{}, fmt.Errorf("%w: %q", ErrInvalidID, p.ID)
	}
	if _, ok := builtins[p.ID]; ok {
		return Preset{}, fmt.Errorf("%w: %s", ErrReadOnly, p.ID)
	}
	if c.store == nil {
		return Preset{}, errors.New("no preset store configured")
	}
	if p.Name == "" {
		p.Name = string(p.ID)
	}
	p.Bands = p.Bands.Clamped()
	p.Baseline = limiter.Clamp(p.Baseline, engine.MinBandGain, engine.MaxBandGain)
	p.Builtin = false

	err := c.store.SavePreset(ctx, store.PresetRecord{
		ID:       string(p.ID),
		Name:     p.Name,
		Bands:    p.Bands,
		Baseline: p.Baseline,
	})
	if err != nil {
		return Preset{}, err
	}
	c.cache.SetDefault(string(p.ID), p)
	return p, nil
}

// Delete removes a user preset.
func (c *Catalog) Delete(ctx context.Context, id engine.PresetID) error {
	if _, ok := builtins[id]; ok {
		return fmt.Errorf("%w: %s", ErrReadOnly, id)
	}
	c.cache.Delete(string(id))
	if c.store == nil {
		return nil
	}
	return c.store.DeletePreset(ctx, string(id))
}

func fromRecord(rec store.PresetRecord) Preset {
	return Preset{
		ID:       engine.PresetID(rec.ID),
		Name:     rec.Name,
		Bands:    rec.Bands,
		Baseline: rec.Baseline,
	}
}
