package provider

import (
	"context"
	"fmt"
	"io"
)

// Mux routes each call to the provider registered for the locator's scheme.
type Mux struct {
	byScheme map[string]Provider
}

func NewMux() *Mux {
	return &Mux{byScheme: make(map[string]Provider)}
}

// Handle registers p for scheme and returns the mux for chaining.
func (m *Mux) Handle(scheme string, p Provider) *Mux {
	m.byScheme[scheme] = p
	return m
}

func (m *Mux) lookup(loc Locator) (Provider, error) {
	p, ok := m.byScheme[loc.Scheme()]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, loc.Scheme())
	}
	return p, nil
}

func (m *Mux) OpenRead(ctx context.Context, loc Locator) (io.ReadCloser, error) {
	p, err := m.lookup(loc)
	if err != nil {
		return nil, err
	}
	return p.OpenRead(ctx, loc)
}

func (m *Mux) OpenWrite(ctx context.Context, loc Locator) (io.WriteCloser, error) {
	p, err := m.lookup(loc)
	if err != nil {
		return nil, err
	}
	return p.OpenWrite(ctx, loc)
}

func (m *Mux) LastModified(ctx context.Context, loc Locator) (Timestamp, error) {
	p, err := m.lookup(loc)
	if err != nil {
		return Unknown, err
	}
	return p.LastModified(ctx, loc)
}

func (m *Mux) AcquirePersistentAccess(ctx context.Context, loc Locator) error {
	p, err := m.lookup(loc)
	if err != nil {
		return err
	}
	return p.AcquirePersistentAccess(ctx, loc)
}

func (m *Mux) ReleasePersistentAccess(ctx context.Context, loc Locator) error {
	p, err := m.lookup(loc)
	if err != nil {
		return err
	}
	return p.ReleasePersistentAccess(ctx, loc)
}
