package environment

import (
	"bytes"
	"context"
	"fmt"

	"github.com/harunnryd/ignite/internal/packages"
	"github.com/harunnryd/ignite/internal/surface"

	"github.com/natefinch/atomic"
)

// DescriptorFile is where a bound surface is described inside a sandbox.
const DescriptorFile = "surface.json"

// WriteDescriptor records the bound surface for in-environment code. The
// write is atomic so a reader never sees a half-written descriptor.
func WriteDescriptor(path string, s *surface.Surface) error {
	data, err := s.DescriptorJSON()
	if err != nil {
		return fmt.Errorf("encode surface descriptor: %w", err)
	}
	return atomic.WriteFile(path, bytes.NewReader(data))
}

// BulkInstaller places packages directly into an environment's site directory.
type BulkInstaller interface {
	Install(ctx context.Context, names []string, dest string, checkIntegrity bool) ([]packages.Package, error)
}
