package environment

import (
	"context"
	"strings"
	"time"

	"github.com/harunnryd/ignite/internal/surface"
)

// Environment is an acquired sandbox. One handle is owned by exactly one
// pipeline and is released with Close.
type Environment interface {
	ID() string

	// LoadPackages is the bulk channel: it places the named packages and
	// their dependencies into the environment in a single call.
	LoadPackages(ctx context.Context, names []string, opts LoadOptions) error

	// Install asks the environment's own package manager to resolve and
	// install one package.
	Install(ctx context.Context, name string) error

	// BindSurface attaches a host surface to the environment's output. The
	// surface is shared; environments never close it.
	BindSurface(ctx context.Context, s *surface.Surface) error

	// SetConfig writes a configuration entry by running code inside the
	// environment, so in-environment startup logic observes it.
	SetConfig(ctx context.Context, key, value string) error

	// Execute submits program text and waits for it to finish. A program
	// fault is reported as *errors.ExecutionError alongside its Result.
	Execute(ctx context.Context, program string) (*Result, error)

	Close(ctx context.Context) error
}

type LoadOptions struct {
	CheckIntegrity bool
}

type Result struct {
	ExitCode   int
	Diagnostic string
	Duration   time.Duration
}

// Provider acquires fresh environments. Acquire blocks until the sandbox is
// fully loaded.
type Provider interface {
	Name() string
	Acquire(ctx context.Context) (Environment, error)
}

const maxDiagnostic = 4096

// Diagnostic trims captured error output to its most recent part.
func Diagnostic(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > maxDiagnostic {
		s = "..." + s[len(s)-maxDiagnostic:]
	}
	return s
}
