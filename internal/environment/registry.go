package environment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	igniteErrors "github.com/harunnryd/ignite/internal/errors"
)

// Factory builds a provider on first use, so a backend whose runtime is
// missing on this host only fails when it is selected.
type Factory func() (Provider, error)

type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		providers: make(map[string]Provider),
	}
}

func (r *Registry) Register(name string, factory Factory) error {
	if name == "" || factory == nil {
		return igniteErrors.InvalidInput("backend name and factory are required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("backend %q already registered", name)
	}
	r.factories[name] = factory
	return nil
}

func (r *Registry) Get(name string) (Provider, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.providers[name]; ok {
		return p, nil
	}
	factory, ok := r.factories[name]
	if !ok {
		return nil, igniteErrors.NotFound(fmt.Sprintf("backend %q", name))
	}
	p, err := factory()
	if err != nil {
		return nil, fmt.Errorf("backend %s unavailable: %w", name, err)
	}
	r.providers[name] = p
	return p, nil
}

func (r *Registry) IsAvailable(name string) bool {
	_, err := r.Get(name)
	return err == nil
}

func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Deferred returns a provider that resolves name on Acquire. A backend that
// cannot be built then fails at environment acquisition, like any other
// runtime initialization failure.
func (r *Registry) Deferred(name string) Provider {
	return &deferredProvider{registry: r, name: name}
}

// Close releases every built provider that holds resources.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for name, p := range r.providers {
		if c, ok := p.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close backend %s: %w", name, err))
			}
		}
	}
	return errors.Join(errs...)
}

type deferredProvider struct {
	registry *Registry
	name     string
}

func (d *deferredProvider) Name() string { return d.name }

func (d *deferredProvider) Acquire(ctx context.Context) (Environment, error) {
	p, err := d.registry.Get(d.name)
	if err != nil {
		return nil, err
	}
	return p.Acquire(ctx)
}
