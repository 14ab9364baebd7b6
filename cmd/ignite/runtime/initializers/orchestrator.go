package initializers

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/harunnryd/ignite/internal/artifact"
	"github.com/harunnryd/ignite/internal/bootstrap"
	"github.com/harunnryd/ignite/internal/config"
	"github.com/harunnryd/ignite/internal/environment"
	igniteErrors "github.com/harunnryd/ignite/internal/errors"
	"github.com/harunnryd/ignite/internal/surface"
)

type OrchestratorInitializer struct {
	environments *environment.Registry
	surfaces     *surface.Registry
	fetcher      *artifact.Fetcher
	backend      string
	onTransition bootstrap.TransitionFunc
}

func NewOrchestratorInitializer(environments *environment.Registry, surfaces *surface.Registry, fetcher *artifact.Fetcher, backend string, onTransition bootstrap.TransitionFunc) *OrchestratorInitializer {
	return &OrchestratorInitializer{
		environments: environments,
		surfaces:     surfaces,
		fetcher:      fetcher,
		backend:      backend,
		onTransition: onTransition,
	}
}

func (oi *OrchestratorInitializer) Name() string {
	return "orchestrator"
}

func (oi *OrchestratorInitializer) Dependencies() []string {
	return []string{"environment", "surfaces", "fetcher"}
}

// Initialize returns a *bootstrap.Orchestrator for the selected backend. The
// backend itself is built when the pipeline acquires its environment.
func (oi *OrchestratorInitializer) Initialize(ctx context.Context, cfg *config.Config) (interface{}, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if oi.environments == nil {
		return nil, fmt.Errorf("environment registry not initialized")
	}
	if oi.surfaces == nil {
		return nil, fmt.Errorf("surface registry not initialized")
	}
	if oi.fetcher == nil {
		return nil, fmt.Errorf("fetcher not initialized")
	}

	backend := oi.backend
	if backend == "" {
		backend = cfg.Runtime.Backend
	}
	if backend == "" {
		backend = config.DefaultRuntimeBackend
	}

	names := oi.environments.Names()
	if !slices.Contains(names, backend) {
		return nil, igniteErrors.InvalidInput(fmt.Sprintf("unknown runtime backend %q (have %s)", backend, strings.Join(names, ", ")))
	}

	return bootstrap.New(oi.environments.Deferred(backend), oi.surfaces, oi.fetcher, bootstrap.Options{
		Prefetch:     cfg.Artifact.Prefetch,
		OnTransition: oi.onTransition,
	}), nil
}
