package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/ignite/internal/environment"
	igniteErrors "github.com/harunnryd/ignite/internal/errors"
	"github.com/harunnryd/ignite/internal/sandbox"
	"github.com/harunnryd/ignite/internal/surface"

	"github.com/google/shlex"
)

const (
	Name        = "process"
	programFile = "main.py"
)

type Options struct {
	// Command is the interpreter invocation, e.g. "python3 -u".
	Command   string
	Sandboxes sandbox.SandboxManager
	Installer environment.BulkInstaller
}

// Provider runs each environment as a local interpreter over its own
// sandbox directory.
type Provider struct {
	argv      []string
	sandboxes sandbox.SandboxManager
	installer environment.BulkInstaller
}

func NewProvider(opts Options) (*Provider, error) {
	argv, err := shlex.Split(opts.Command)
	if err != nil {
		return nil, fmt.Errorf("parse interpreter command %q: %w", opts.Command, err)
	}
	if len(argv) == 0 {
		return nil, igniteErrors.InvalidInput("interpreter command is empty")
	}
	if opts.Sandboxes == nil {
		return nil, igniteErrors.InvalidInput("sandbox manager is required")
	}

	path, err := exec.LookPath(argv[0])
	if err != nil {
		return nil, fmt.Errorf("interpreter not found: %w", err)
	}
	argv[0] = path

	return &Provider{
		argv:      argv,
		sandboxes: opts.Sandboxes,
		installer: opts.Installer,
	}, nil
}

func (p *Provider) Name() string { return Name }

// Acquire sets up a sandbox and waits until the interpreter has started
// inside it.
func (p *Provider) Acquire(ctx context.Context) (environment.Environment, error) {
	sb, err := p.sandboxes.Setup(ctx, Name)
	if err != nil {
		return nil, err
	}

	env := &Environment{
		argv:      p.argv,
		sb:        sb,
		sandboxes: p.sandboxes,
		installer: p.installer,
		output:    io.Discard,
	}

	var out bytes.Buffer
	res, err := env.run(ctx, &out, "-c", "import sys; print(sys.version.split()[0])")
	if err == nil && res.ExitCode != 0 {
		err = fmt.Errorf("interpreter exited with %d: %s", res.ExitCode, res.Diagnostic)
	}
	if err != nil {
		_ = p.sandboxes.Teardown(sb)
		return nil, fmt.Errorf("start interpreter: %w", err)
	}
	env.version = strings.TrimSpace(out.String())

	slog.Debug("Process environment ready", "environment_id", sb.ID, "python", env.version)
	return env, nil
}

type Environment struct {
	argv      []string
	sb        *sandbox.Sandbox
	sandboxes sandbox.SandboxManager
	installer environment.BulkInstaller
	version   string

	mu      sync.Mutex
	output  io.Writer
	surface *surface.Surface
	closed  bool
}

func (e *Environment) ID() string { return e.sb.ID }

func (e *Environment) Root() string { return e.sb.RootPath }

func (e *Environment) Version() string { return e.version }

func (e *Environment) LoadPackages(ctx context.Context, names []string, opts environment.LoadOptions) error {
	if e.installer == nil {
		return igniteErrors.Dependency(strings.Join(names, ","), errors.New("no package index configured"))
	}
	_, err := e.installer.Install(ctx, names, e.sb.SiteDir(), opts.CheckIntegrity)
	return err
}

func (e *Environment) Install(ctx context.Context, name string) error {
	if err := environment.ValidatePackageName(name); err != nil {
		return igniteErrors.Dependency(name, err)
	}

	res, err := e.run(ctx, io.Discard, "-c", environment.InstallProgram(name, e.sb.SiteDir()))
	if err != nil {
		return igniteErrors.Dependency(name, err)
	}
	if res.ExitCode != 0 {
		return igniteErrors.Dependency(name, fmt.Errorf("package manager exited with %d: %s", res.ExitCode, res.Diagnostic))
	}
	return nil
}

func (e *Environment) BindSurface(ctx context.Context, s *surface.Surface) error {
	if s == nil {
		return igniteErrors.InvalidInput("surface is nil")
	}
	w, err := s.Writer()
	if err != nil {
		return err
	}
	if err := environment.WriteDescriptor(e.sb.Path(environment.DescriptorFile), s); err != nil {
		return err
	}

	e.mu.Lock()
	e.output = w
	e.surface = s
	e.mu.Unlock()
	return nil
}

func (e *Environment) SetConfig(ctx context.Context, key, value string) error {
	if err := environment.ValidateConfigKey(key); err != nil {
		return err
	}
	startup := filepath.Join(e.sb.SiteDir(), environment.StartupFile)
	res, err := e.run(ctx, io.Discard, "-c", environment.ConfigProgram(key, value, startup))
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("set %s: exited with %d: %s", key, res.ExitCode, res.Diagnostic)
	}
	return nil
}

func (e *Environment) Execute(ctx context.Context, program string) (*environment.Result, error) {
	if strings.TrimSpace(program) == "" {
		return nil, &igniteErrors.ExecutionError{ExitCode: -1, Err: igniteErrors.InvalidInput("empty program")}
	}

	path := filepath.Join(e.sb.ProgramDir(), programFile)
	if err := os.WriteFile(path, []byte(program), 0644); err != nil {
		return nil, &igniteErrors.ExecutionError{ExitCode: -1, Err: fmt.Errorf("write program: %w", err)}
	}

	e.mu.Lock()
	out := e.output
	e.mu.Unlock()

	res, err := e.run(ctx, out, path)
	if err != nil {
		return res, &igniteErrors.ExecutionError{ExitCode: -1, Err: err}
	}
	if res.ExitCode != 0 {
		return res, &igniteErrors.ExecutionError{ExitCode: res.ExitCode, Diagnostic: res.Diagnostic}
	}
	return res, nil
}

func (e *Environment) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()
	return e.sandboxes.Teardown(e.sb)
}

// run starts the interpreter with args. A non-zero exit is reported in the
// Result; the error is reserved for failures to run at all.
func (e *Environment) run(ctx context.Context, stdout io.Writer, args ...string) (*environment.Result, error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("environment %s is closed", e.sb.ID)
	}

	argv := append(append([]string{}, e.argv[1:]...), args...)
	cmd := exec.CommandContext(ctx, e.argv[0], argv...)
	cmd.Dir = e.sb.RootPath
	cmd.Env = append(os.Environ(),
		"PYTHONPATH="+e.sb.SiteDir(),
		"PYTHONNOUSERSITE=1",
		"PYTHONDONTWRITEBYTECODE=1",
		"IGNITE_SANDBOX="+e.sb.RootPath,
		"IGNITE_SURFACE="+e.sb.Path(environment.DescriptorFile),
	)

	var stderr bytes.Buffer
	cmd.Stdout = stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := &environment.Result{
		Duration:   time.Since(start),
		Diagnostic: environment.Diagnostic(stderr.Bytes()),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return res, nil
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		if res.ExitCode < 0 && ctx.Err() != nil {
			return res, ctx.Err()
		}
		return res, nil
	default:
		return res, err
	}
}
