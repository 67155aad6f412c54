package provider

import (
	"context"
	"sync"
)

type memGrants struct {
	mu sync.Mutex
	m  map[Locator]bool
}

func newMemGrants() *memGrants {
	return &memGrants{m: make(map[Locator]bool)}
}

func (g *memGrants) Grant(ctx context.Context, loc Locator) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.m[loc] = true
	return nil
}

func (g *memGrants) Revoke(ctx context.Context, loc Locator) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.m, loc)
	return nil
}

func (g *memGrants) Granted(ctx context.Context, loc Locator) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.m[loc], nil
}
