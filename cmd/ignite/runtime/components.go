package runtime

import (
	"context"
	"log/slog"

	"github.com/harunnryd/ignite/cmd/ignite/runtime/initializers"

	"github.com/harunnryd/ignite/internal/artifact"
	"github.com/harunnryd/ignite/internal/bootstrap"
	"github.com/harunnryd/ignite/internal/config"
	"github.com/harunnryd/ignite/internal/environment"
	igniteErrors "github.com/harunnryd/ignite/internal/errors"
	"github.com/harunnryd/ignite/internal/packages"
	"github.com/harunnryd/ignite/internal/sandbox"
	"github.com/harunnryd/ignite/internal/surface"
)

type RuntimeComponents struct {
	Ctx    context.Context
	Cancel context.CancelFunc

	Config  *config.Config
	Backend string

	Surfaces     *surface.Registry
	Fetcher      *artifact.Fetcher
	Installer    *packages.Installer
	Sandboxes    *sandbox.DirManager
	Environments *environment.Registry
	Orchestrator *bootstrap.Orchestrator
}

// NewRuntimeComponents wires surfaces → fetcher → packages → sandbox →
// environment → orchestrator. On failure everything built so far is released.
func NewRuntimeComponents(ctx context.Context, cfg *config.Config, backend string, onTransition bootstrap.TransitionFunc) (*RuntimeComponents, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)

	components := &RuntimeComponents{
		Ctx:     ctx,
		Cancel:  cancel,
		Config:  cfg,
		Backend: backend,
	}

	surfacesComponent, err := initializers.NewSurfacesInitializer().Initialize(ctx, cfg)
	if err != nil {
		components.cleanup()
		return nil, igniteErrors.Wrap(err, "init surfaces")
	}
	components.Surfaces = surfacesComponent.(*surface.Registry)

	fetcherComponent, err := initializers.NewFetcherInitializer().Initialize(ctx, cfg)
	if err != nil {
		components.cleanup()
		return nil, igniteErrors.Wrap(err, "init fetcher")
	}
	components.Fetcher = fetcherComponent.(*artifact.Fetcher)

	packagesComponent, err := initializers.NewPackagesInitializer(components.Fetcher).Initialize(ctx, cfg)
	if err != nil {
		components.cleanup()
		return nil, igniteErrors.Wrap(err, "init packages")
	}
	components.Installer = packagesComponent.(*packages.Installer)

	sandboxComponent, err := initializers.NewSandboxInitializer().Initialize(ctx, cfg)
	if err != nil {
		components.cleanup()
		return nil, igniteErrors.Wrap(err, "init sandbox manager")
	}
	components.Sandboxes = sandboxComponent.(*sandbox.DirManager)

	envComponent, err := initializers.NewEnvironmentInitializer(components.Sandboxes, components.Installer).Initialize(ctx, cfg)
	if err != nil {
		components.cleanup()
		return nil, igniteErrors.Wrap(err, "init environments")
	}
	components.Environments = envComponent.(*environment.Registry)

	orchInitializer := initializers.NewOrchestratorInitializer(
		components.Environments,
		components.Surfaces,
		components.Fetcher,
		backend,
		onTransition,
	)
	orchComponent, err := orchInitializer.Initialize(ctx, cfg)
	if err != nil {
		components.cleanup()
		return nil, igniteErrors.Wrap(err, "init orchestrator")
	}
	components.Orchestrator = orchComponent.(*bootstrap.Orchestrator)

	return components, nil
}

// Stop releases the environment, the backends, any leftover sandboxes and
// the surfaces, in that order. It is safe to call more than once.
func (r *RuntimeComponents) Stop() {
	slog.Debug("Stopping runtime components...")

	if r.Orchestrator != nil {
		if err := r.Orchestrator.Close(context.WithoutCancel(r.Ctx)); err != nil {
			slog.Warn("Failed to release environment", "error", err)
		}
	}

	if r.Environments != nil {
		if err := r.Environments.Close(); err != nil {
			slog.Warn("Failed to close runtime backends", "error", err)
		}
	}

	if r.Sandboxes != nil {
		if err := r.Sandboxes.TeardownAll(); err != nil {
			slog.Warn("Failed to release sandboxes", "error", err)
		}
	}

	if r.Surfaces != nil {
		if err := r.Surfaces.Close(); err != nil {
			slog.Warn("Failed to close output surfaces", "error", err)
		}
	}

	r.Cancel()
	slog.Debug("Runtime components stopped")
}

func (r *RuntimeComponents) cleanup() {
	slog.Debug("Cleaning up runtime components...")
	r.Stop()
}
