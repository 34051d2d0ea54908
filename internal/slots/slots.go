// Package slots enforces at most one active session per media source.
package slots

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/patrickmn/go-cache"
)

// ErrClaimed is returned when the source already has an owner.
var ErrClaimed = errors.New("source already has an active session")

// ErrLost means a held claim expired or was taken by another owner.
var ErrLost = errors.New("source claim lost")

// Registry hands out exclusive claims on sources.
type Registry interface {
	Claim(ctx context.Context, source, owner string) error
	// Release drops the claim if owner still holds it.
	Release(ctx context.Context, source, owner string) error
}

// Memory is a process-local Registry.
type Memory struct {
	mu sync.Mutex
	c  *cache.Cache
}

// NewMemory returns an empty in-process registry.
func NewMemory() *Memory {
	return &Memory{c: cache.New(cache.NoExpiration, 0)}
}

func (m *Memory) Claim(_ context.Context, source, owner string) error {
	if err := m.c.Add(source, owner, cache.NoExpiration); err != nil {
		return fmt.Errorf("%w: %s", ErrClaimed, source)
	}
	return nil
}

func (m *Memory) Release(_ context.Context, source, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.c.Get(source); ok && v.(string) == owner {
		m.c.Delete(source)
	}
	return nil
}

// Owner reports who holds source.
func (m *Memory) Owner(source string) (string, bool) {
	v, ok := m.c.Get(source)
	if !ok {
		return "", false
	}
	return v.(string), true
}
