package initializers

import (
	"context"
	"fmt"

	"github.com/harunnryd/ignite/internal/config"
	"github.com/harunnryd/ignite/internal/surface"
)

type SurfacesInitializer struct{}

func NewSurfacesInitializer() *SurfacesInitializer {
	return &SurfacesInitializer{}
}

func (si *SurfacesInitializer) Name() string {
	return "surfaces"
}

func (si *SurfacesInitializer) Dependencies() []string {
	return []string{}
}

func (si *SurfacesInitializer) Initialize(ctx context.Context, cfg *config.Config) (interface{}, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	registry, err := surface.NewRegistryFromConfig(cfg.Output.Surfaces)
	if err != nil {
		return nil, fmt.Errorf("failed to build surface registry: %w", err)
	}
	return registry, nil
}
