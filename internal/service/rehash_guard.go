package service

import (
	"context"
	"sync"
)

func noopRelease() {}

type NoopRehashGuard struct{}

func NewNoopRehashGuard() *NoopRehashGuard {
	return &NoopRehashGuard{}
}

func (g *NoopRehashGuard) Acquire(context.Context, uint) (func(), bool, error) {
	return noopRelease, true, nil
}

// InMemoryRehashGuard deduplicates upgrades within one process. It is the
// fallback when redis is disabled.
type InMemoryRehashGuard struct {
	mu   sync.Mutex
	held map[uint]struct{}
}

func NewInMemoryRehashGuard() *InMemoryRehashGuard {
	return &InMemoryRehashGuard{held: make(map[uint]struct{})}
}

func (g *InMemoryRehashGuard) Acquire(_ context.Context, userID uint) (func(), bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.held[userID]; busy {
		return noopRelease, false, nil
	}
	g.held[userID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, userID)
			g.mu.Unlock()
		})
	}, true, nil
}
