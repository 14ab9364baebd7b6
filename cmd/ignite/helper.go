package main

import (
	"context"
	"fmt"

	"github.com/harunnryd/ignite/cmd/ignite/runtime"

	"github.com/harunnryd/ignite/internal/config"

	"github.com/spf13/cobra"
)

func loadConfigForCommand(cmd *cobra.Command) (*config.Config, error) {
	if cfg != nil {
		return cfg, nil
	}

	loadedCfg, err := config.Load(cmd)
	if err != nil {
		return nil, err
	}

	return loadedCfg, nil
}

// executeWithRuntime builds the runtime for runCfg, runs fn and releases
// everything afterwards, including on SIGINT.
func executeWithRuntime(runCfg *config.Config, configure func(runtime.RuntimeBuilder) runtime.RuntimeBuilder, fn func(*runtime.RuntimeComponents) error) error {
	signals := NewSignalHandler(context.Background())
	signals.Start()
	defer signals.Stop()

	builder := runtime.NewRuntimeBuilder().
		WithContext(signals.Context()).
		WithConfig(runCfg)
	if configure != nil {
		builder = configure(builder)
	}

	components, err := builder.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize runtime: %w", err)
	}
	defer components.Stop()

	return fn(components)
}
