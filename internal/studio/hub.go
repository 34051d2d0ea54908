package studio

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/linuxmatters/mediactl/internal/engine"
)

var (
	// ErrSourceBusy is returned when a source already has a live studio.
	ErrSourceBusy = errors.New("source already has a live session")
	ErrNoStudio   = errors.New("no studio for source")
)

// Hub keeps at most one live studio per source id.
type Hub struct {
	cfg Config

	mu      sync.Mutex
	studios map[string]*Studio
}

// NewHub returns a hub building studios from cfg.
func NewHub(cfg Config) *Hub {
	return &Hub{cfg: cfg, studios: make(map[string]*Studio)}
}

// Open creates and starts a studio for source.
func (h *Hub) Open(ctx context.Context, source engine.SourceRef) (*Studio, error) {
	if source.ID == "" {
		return nil, errors.New("source id is required")
	}

	h.mu.Lock()
	if _, ok := h.studios[source.ID]; ok {
		h.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", source.ID, ErrSourceBusy)
	}
	s := New(source, h.cfg)
	h.studios[source.ID] = s
	h.mu.Unlock()

	if err := s.Start(ctx); err != nil {
		h.mu.Lock()
		delete(h.studios, source.ID)
		h.mu.Unlock()
		_ = s.Cleanup(context.WithoutCancel(ctx))
		return nil, err
	}
	return s, nil
}

// Get returns the live studio for id.
func (h *Hub) Get(id string) (*Studio, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.studios[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrNoStudio)
	}
	return s, nil
}

// List returns the live studios ordered by source id.
func (h *Hub) List() []*Studio {
	h.mu.Lock()
	out := make([]*Studio, 0, len(h.studios))
	for _, s := range h.studios {
		out = append(out, s)
	}
	h.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].source.ID < out[j].source.ID })
	return out
}

// Close cleans up the studio for id and frees the source.
func (h *Hub) Close(ctx context.Context, id string) error {
	h.mu.Lock()
	s, ok := h.studios[id]
	delete(h.studios, id)
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrNoStudio)
	}
	return s.Cleanup(ctx)
}

// CloseAll cleans up every studio.
func (h *Hub) CloseAll(ctx context.Context) error {
	h.mu.Lock()
	all := h.studios
	h.studios = make(map[string]*Studio)
	h.mu.Unlock()

	var errs error
	for _, s := range all {
		errs = errors.Join(errs, s.Cleanup(ctx))
	}
	return errs
}
