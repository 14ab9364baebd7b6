package runtime

import (
	"context"
	"fmt"

	"github.com/harunnryd/ignite/internal/bootstrap"
	"github.com/harunnryd/ignite/internal/config"
)

type RuntimeBuilder interface {
	WithContext(ctx context.Context) RuntimeBuilder
	WithConfig(cfg *config.Config) RuntimeBuilder
	WithBackend(backend string) RuntimeBuilder
	WithTransitionObserver(fn bootstrap.TransitionFunc) RuntimeBuilder
	Build() (*RuntimeComponents, error)
}

type DefaultRuntimeBuilder struct {
	ctx          context.Context
	cfg          *config.Config
	backend      string
	onTransition bootstrap.TransitionFunc
}

func NewRuntimeBuilder() RuntimeBuilder {
	return &DefaultRuntimeBuilder{}
}

func (b *DefaultRuntimeBuilder) WithContext(ctx context.Context) RuntimeBuilder {
	b.ctx = ctx
	return b
}

func (b *DefaultRuntimeBuilder) WithConfig(cfg *config.Config) RuntimeBuilder {
	b.cfg = cfg
	return b
}

// WithBackend overrides runtime.backend.
func (b *DefaultRuntimeBuilder) WithBackend(backend string) RuntimeBuilder {
	b.backend = backend
	return b
}

func (b *DefaultRuntimeBuilder) WithTransitionObserver(fn bootstrap.TransitionFunc) RuntimeBuilder {
	b.onTransition = fn
	return b
}

func (b *DefaultRuntimeBuilder) Build() (*RuntimeComponents, error) {
	if b.ctx == nil {
		b.ctx = context.Background()
	}

	if b.cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	backend := b.backend
	if backend == "" {
		backend = b.cfg.Runtime.Backend
	}
	if backend == "" {
		backend = config.DefaultRuntimeBackend
	}

	return NewRuntimeComponents(b.ctx, b.cfg, backend, b.onTransition)
}
