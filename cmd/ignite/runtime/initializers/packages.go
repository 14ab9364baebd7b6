package initializers

import (
	"context"
	"fmt"
	"strings"

	"github.com/harunnryd/ignite/internal/artifact"
	"github.com/harunnryd/ignite/internal/config"
	"github.com/harunnryd/ignite/internal/packages"
)

type PackagesInitializer struct {
	fetcher *artifact.Fetcher
}

func NewPackagesInitializer(fetcher *artifact.Fetcher) *PackagesInitializer {
	return &PackagesInitializer{fetcher: fetcher}
}

func (pi *PackagesInitializer) Name() string {
	return "packages"
}

func (pi *PackagesInitializer) Dependencies() []string {
	return []string{"fetcher"}
}

// Initialize returns a *packages.Installer, or nil when no index is configured.
// The index itself is read lazily on the first install.
func (pi *PackagesInitializer) Initialize(ctx context.Context, cfg *config.Config) (interface{}, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if pi.fetcher == nil {
		return nil, fmt.Errorf("fetcher not initialized")
	}

	if strings.TrimSpace(cfg.Packages.IndexURL) == "" {
		return (*packages.Installer)(nil), nil
	}

	return packages.NewIndexedInstaller(pi.fetcher, cfg.Packages.IndexURL, packages.Options{
		CacheDir: cfg.Packages.CacheDir,
	}), nil
}
