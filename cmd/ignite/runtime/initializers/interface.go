package initializers

import (
	"context"

	"github.com/harunnryd/ignite/internal/config"
)

type ComponentInitializer interface {
	Name() string
	Dependencies() []string
	Initialize(ctx context.Context, cfg *config.Config) (interface{}, error)
}
