package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/ignite/internal/environment"
	igniteErrors "github.com/harunnryd/ignite/internal/errors"
	"github.com/harunnryd/ignite/internal/sandbox"
	"github.com/harunnryd/ignite/internal/surface"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

const (
	Name = "shell"

	// PackageCommand is the environment's own package manager.
	PackageCommand = "ignite-pkg"

	exitNotFound = 127
)

type Options struct {
	Sandboxes sandbox.SandboxManager
	Installer environment.BulkInstaller
	// CheckIntegrity applies to packages installed through PackageCommand.
	CheckIntegrity bool
}

// Provider runs environments in-process on a POSIX shell interpreter. It
// needs nothing installed on the host.
type Provider struct {
	opts Options
}

func NewProvider(opts Options) (*Provider, error) {
	if opts.Sandboxes == nil {
		return nil, igniteErrors.InvalidInput("sandbox manager is required")
	}
	return &Provider{opts: opts}, nil
}

func (p *Provider) Name() string { return Name }

func (p *Provider) Acquire(ctx context.Context) (environment.Environment, error) {
	sb, err := p.opts.Sandboxes.Setup(ctx, Name)
	if err != nil {
		return nil, err
	}

	env := &Environment{
		sb:             sb,
		sandboxes:      p.opts.Sandboxes,
		installer:      p.opts.Installer,
		checkIntegrity: p.opts.CheckIntegrity,
		stdout:         &switchWriter{w: io.Discard},
		stderr:         &switchWriter{w: io.Discard},
	}

	runner, err := interp.New(
		interp.Dir(sb.RootPath),
		interp.Env(expand.ListEnviron(
			"HOME="+sb.RootPath,
			"PATH="+env.binDir(),
			"IGNITE_SANDBOX="+sb.RootPath,
			"IGNITE_SURFACE="+sb.Path(environment.DescriptorFile),
		)),
		interp.StdIO(nil, env.stdout, env.stderr),
		interp.ExecHandlers(env.execHandler),
	)
	if err != nil {
		_ = p.opts.Sandboxes.Teardown(sb)
		return nil, fmt.Errorf("create interpreter: %w", err)
	}
	env.runner = runner

	if _, err := env.run(ctx, io.Discard, "true"); err != nil {
		_ = p.opts.Sandboxes.Teardown(sb)
		return nil, fmt.Errorf("start interpreter: %w", err)
	}
	return env, nil
}

// Environment keeps one interpreter for its whole life, so exported
// variables persist from SetConfig into Execute.
type Environment struct {
	sb             *sandbox.Sandbox
	sandboxes      sandbox.SandboxManager
	installer      environment.BulkInstaller
	checkIntegrity bool

	mu      sync.Mutex
	runner  *interp.Runner
	stdout  *switchWriter
	stderr  *switchWriter
	output  io.Writer
	surface *surface.Surface
	closed  bool
}

func (e *Environment) ID() string { return e.sb.ID }

func (e *Environment) Root() string { return e.sb.RootPath }

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
	quoted, err := syntax.Quote(name, syntax.LangPOSIX)
	if err != nil {
		return igniteErrors.Dependency(name, err)
	}
	res, err := e.run(ctx, io.Discard, PackageCommand+" install "+quoted)
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
	if !syntax.ValidName(key) {
		return igniteErrors.InvalidInput(fmt.Sprintf("config key %q is not a valid variable name", key))
	}
	quoted, err := syntax.Quote(value, syntax.LangPOSIX)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}

	res, err := e.run(ctx, io.Discard, "export "+key+"="+quoted)
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
	if err := os.WriteFile(filepath.Join(e.sb.ProgramDir(), "main.sh"), []byte(program), 0644); err != nil {
		return nil, &igniteErrors.ExecutionError{ExitCode: -1, Err: fmt.Errorf("write program: %w", err)}
	}

	e.mu.Lock()
	out := e.output
	e.mu.Unlock()
	if out == nil {
		out = io.Discard
	}

	res, err := e.run(ctx, out, program)
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

// Getenv reads a variable from the interpreter state.
func (e *Environment) Getenv(ctx context.Context, name string) (string, error) {
	if !syntax.ValidName(name) {
		return "", igniteErrors.InvalidInput(fmt.Sprintf("%q is not a valid variable name", name))
	}
	var out bytes.Buffer
	res, err := e.run(ctx, &out, `printf '%s' "$`+name+`"`)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("read %s: exited with %d", name, res.ExitCode)
	}
	return out.String(), nil
}

// run interprets src on the shared runner. Runs are serialized; a
// non-zero exit status is reported in the Result.
func (e *Environment) run(ctx context.Context, stdout io.Writer, src string) (*environment.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, fmt.Errorf("environment %s is closed", e.sb.ID)
	}

	prog, err := syntax.NewParser().Parse(strings.NewReader(src), "main.sh")
	if err != nil {
		return &environment.Result{ExitCode: 2, Diagnostic: err.Error()}, nil
	}

	var stderr bytes.Buffer
	e.stdout.set(stdout)
	e.stderr.set(&stderr)
	defer func() {
		e.stdout.set(io.Discard)
		e.stderr.set(io.Discard)
	}()

	start := time.Now()
	err = e.runner.Run(ctx, prog)
	res := &environment.Result{Duration: time.Since(start)}

	var status interp.ExitStatus
	switch {
	case err == nil:
	case errors.As(err, &status):
		res.ExitCode = int(status)
	default:
		res.Diagnostic = environment.Diagnostic(stderr.Bytes())
		return res, err
	}
	res.Diagnostic = environment.Diagnostic(stderr.Bytes())
	return res, nil
}

func (e *Environment) binDir() string {
	return filepath.Join(e.sb.SiteDir(), "bin")
}

// execHandler serves the package manager and installed package commands.
// Host binaries are not reachable from inside the sandbox.
func (e *Environment) execHandler(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(ctx context.Context, args []string) error {
		if len(args) == 0 {
			return next(ctx, args)
		}
		hc := interp.HandlerCtx(ctx)

		if args[0] == PackageCommand {
			return e.packageCommand(ctx, hc, args[1:])
		}

		if script, ok := e.lookupBin(args[0]); ok {
			return e.runBin(ctx, hc, script, args[1:])
		}

		fmt.Fprintf(hc.Stderr, "%s: command not found\n", args[0])
		return interp.NewExitStatus(exitNotFound)
	}
}

func (e *Environment) packageCommand(ctx context.Context, hc interp.HandlerContext, args []string) error {
	if len(args) < 2 || args[0] != "install" {
		fmt.Fprintf(hc.Stderr, "usage: %s install <package>...\n", PackageCommand)
		return interp.NewExitStatus(2)
	}
	if e.installer == nil {
		fmt.Fprintf(hc.Stderr, "%s: no package index configured\n", PackageCommand)
		return interp.NewExitStatus(1)
	}
	installed, err := e.installer.Install(ctx, args[1:], e.sb.SiteDir(), e.checkIntegrity)
	if err != nil {
		fmt.Fprintf(hc.Stderr, "%s: %v\n", PackageCommand, err)
		return interp.NewExitStatus(1)
	}
	for _, pkg := range installed {
		fmt.Fprintf(hc.Stdout, "installed %s %s\n", pkg.Name, pkg.Version)
	}
	return nil
}

func (e *Environment) lookupBin(name string) (string, bool) {
	if strings.ContainsRune(name, '/') {
		return "", false
	}
	p := filepath.Join(e.binDir(), name)
	info, err := os.Stat(p)
	if err != nil || info.IsDir() {
		return "", false
	}
	return p, true
}

// runBin interprets an installed package script in a subshell, so it
// sees exported configuration but cannot change the caller's state.
func (e *Environment) runBin(ctx context.Context, hc interp.HandlerContext, script string, args []string) error {
	src, err := os.ReadFile(script)
	if err != nil {
		fmt.Fprintf(hc.Stderr, "%s: %v\n", filepath.Base(script), err)
		return interp.NewExitStatus(exitNotFound)
	}
	prog, err := syntax.NewParser().Parse(bytes.NewReader(src), script)
	if err != nil {
		fmt.Fprintf(hc.Stderr, "%v\n", err)
		return interp.NewExitStatus(2)
	}

	sub := e.runner.Subshell()
	if err := interp.StdIO(hc.Stdin, hc.Stdout, hc.Stderr)(sub); err != nil {
		return err
	}
	if len(args) > 0 {
		if err := interp.Params(append([]string{"--"}, args...)...)(sub); err != nil {
			return err
		}
	}
	return sub.Run(ctx, prog)
}

// switchWriter lets the interpreter's fixed stdio follow the bound surface.
type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *switchWriter) set(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
