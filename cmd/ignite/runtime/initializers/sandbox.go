package initializers

import (
	"context"
	"fmt"

	"github.com/harunnryd/ignite/internal/config"
	"github.com/harunnryd/ignite/internal/sandbox"
)

type SandboxInitializer struct{}

func NewSandboxInitializer() *SandboxInitializer {
	return &SandboxInitializer{}
}

func (si *SandboxInitializer) Name() string {
	return "sandbox"
}

func (si *SandboxInitializer) Dependencies() []string {
	return []string{}
}

func (si *SandboxInitializer) Initialize(ctx context.Context, cfg *config.Config) (interface{}, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	lockTimeout, err := config.DurationOrDefault(cfg.Runtime.LockTimeout, config.DefaultRuntimeLockTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse sandbox lock timeout: %w", err)
	}

	manager, err := sandbox.NewDirManager(cfg.Runtime.SandboxPath, sandbox.Options{
		LockTimeout: lockTimeout,
		Keep:        cfg.Runtime.KeepSandbox,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sandbox manager: %w", err)
	}
	return manager, nil
}
