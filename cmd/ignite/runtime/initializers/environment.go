package initializers

import (
	"context"
	"fmt"

	"github.com/harunnryd/ignite/internal/config"
	"github.com/harunnryd/ignite/internal/environment"
	"github.com/harunnryd/ignite/internal/environment/container"
	"github.com/harunnryd/ignite/internal/environment/process"
	"github.com/harunnryd/ignite/internal/environment/shell"
	"github.com/harunnryd/ignite/internal/packages"
	"github.com/harunnryd/ignite/internal/sandbox"
)

type EnvironmentInitializer struct {
	sandboxes sandbox.SandboxManager
	installer *packages.Installer
}

func NewEnvironmentInitializer(sandboxes sandbox.SandboxManager, installer *packages.Installer) *EnvironmentInitializer {
	return &EnvironmentInitializer{
		sandboxes: sandboxes,
		installer: installer,
	}
}

func (ei *EnvironmentInitializer) Name() string {
	return "environment"
}

func (ei *EnvironmentInitializer) Dependencies() []string {
	return []string{"sandbox", "packages"}
}

// Initialize registers every backend. Providers are built on first lookup,
// so a host without docker or python3 can still use the shell backend.
func (ei *EnvironmentInitializer) Initialize(ctx context.Context, cfg *config.Config) (interface{}, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if ei.sandboxes == nil {
		return nil, fmt.Errorf("sandbox manager not initialized")
	}

	var bulk environment.BulkInstaller
	if ei.installer != nil {
		bulk = ei.installer
	}

	stopTimeout, err := config.DurationOrDefault(cfg.Runtime.Container.StopTimeout, config.DefaultContainerStopTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse container stop timeout: %w", err)
	}

	registry := environment.NewRegistry()
	factories := map[string]environment.Factory{
		process.Name: func() (environment.Provider, error) {
			return process.NewProvider(process.Options{
				Command:   cfg.Runtime.Process.Command,
				Sandboxes: ei.sandboxes,
				Installer: bulk,
			})
		},
		container.Name: func() (environment.Provider, error) {
			return container.NewProvider(container.Options{
				Image:       cfg.Runtime.Container.Image,
				Pull:        cfg.Runtime.Container.Pull,
				StopTimeout: stopTimeout,
				Sandboxes:   ei.sandboxes,
				Installer:   bulk,
			})
		},
		shell.Name: func() (environment.Provider, error) {
			return shell.NewProvider(shell.Options{
				Sandboxes:      ei.sandboxes,
				Installer:      bulk,
				CheckIntegrity: cfg.Packages.CheckIntegrity,
			})
		},
	}
	for name, factory := range factories {
		if err := registry.Register(name, factory); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
