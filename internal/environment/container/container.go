package container

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/ignite/internal/environment"
	igniteErrors "github.com/harunnryd/ignite/internal/errors"
	"github.com/harunnryd/ignite/internal/sandbox"
	"github.com/harunnryd/ignite/internal/surface"

	"github.com/docker/docker/api/types"
	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

const (
	Name = "container"

	// MountPath is where the sandbox directory appears inside the container.
	MountPath = "/sandbox"

	// LabelManager marks containers created by ignite.
	LabelManager      = "manager"
	LabelManagerValue = "ignite"
	LabelSandboxID    = "sandbox-id"
)

type Options struct {
	Image       string
	Pull        bool
	StopTimeout time.Duration
	Sandboxes   sandbox.SandboxManager
	Installer   environment.BulkInstaller
}

// Provider runs each environment as a long-lived container with the
// sandbox directory bind-mounted into it.
type Provider struct {
	client    *client.Client
	opts      Options
	pullOnce  sync.Once
	pullErr   error
	sandboxes sandbox.SandboxManager
}

func NewProvider(opts Options) (*Provider, error) {
	if opts.Sandboxes == nil {
		return nil, igniteErrors.InvalidInput("sandbox manager is required")
	}
	if strings.TrimSpace(opts.Image) == "" {
		return nil, igniteErrors.InvalidInput("container image is required")
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	return &Provider{client: cli, opts: opts, sandboxes: opts.Sandboxes}, nil
}

func (p *Provider) Name() string { return Name }

func (p *Provider) Acquire(ctx context.Context) (environment.Environment, error) {
	if err := p.ensureImage(ctx); err != nil {
		return nil, err
	}

	sb, err := p.sandboxes.Setup(ctx, Name)
	if err != nil {
		return nil, err
	}

	cfg := &dockercontainer.Config{
		Image:      p.opts.Image,
		Cmd:        []string{"sleep", "infinity"},
		WorkingDir: MountPath,
		User:       fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid()),
		Env:        containerEnv(),
		Labels: map[string]string{
			LabelManager:   LabelManagerValue,
			LabelSandboxID: sb.ID,
		},
	}
	hostCfg := &dockercontainer.HostConfig{
		Mounts: []mount.Mount{
			{Type: mount.TypeBind, Source: sb.RootPath, Target: MountPath},
		},
	}

	resp, err := p.client.ContainerCreate(ctx, cfg, hostCfg, nil, nil, "ignite-"+strings.ToLower(sb.ID))
	if err != nil {
		_ = p.sandboxes.Teardown(sb)
		return nil, fmt.Errorf("creating container: %w", err)
	}

	env := &Environment{
		client:      p.client,
		containerID: resp.ID,
		sb:          sb,
		sandboxes:   p.sandboxes,
		installer:   p.opts.Installer,
		stopTimeout: p.opts.StopTimeout,
		output:      io.Discard,
	}

	if err := p.client.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		_ = env.Close(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("starting container: %w", err)
	}

	res, err := env.exec(ctx, io.Discard, "python3", "-c", "import sys")
	if err == nil && res.ExitCode != 0 {
		err = fmt.Errorf("interpreter exited with %d: %s", res.ExitCode, res.Diagnostic)
	}
	if err != nil {
		_ = env.Close(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("start interpreter: %w", err)
	}

	slog.Info("Container environment ready", "environment_id", sb.ID, "container", shortID(resp.ID), "image", p.opts.Image)
	return env, nil
}

func (p *Provider) ensureImage(ctx context.Context) error {
	p.pullOnce.Do(func() {
		_, _, err := p.client.ImageInspectWithRaw(ctx, p.opts.Image)
		if err == nil {
			return
		}
		if !client.IsErrNotFound(err) || !p.opts.Pull {
			p.pullErr = fmt.Errorf("sandbox image '%s' not available: %w", p.opts.Image, err)
			return
		}

		slog.Info("Pulling sandbox image", "image", p.opts.Image)
		rc, err := p.client.ImagePull(ctx, p.opts.Image, types.ImagePullOptions{})
		if err != nil {
			p.pullErr = fmt.Errorf("pulling image %s: %w", p.opts.Image, err)
			return
		}
		defer rc.Close()
		// the pull only completes once its progress stream is drained
		if _, err := io.Copy(io.Discard, rc); err != nil {
			p.pullErr = fmt.Errorf("pulling image %s: %w", p.opts.Image, err)
		}
	})
	return p.pullErr
}

func (p *Provider) Close() error {
	return p.client.Close()
}

type Environment struct {
	client      *client.Client
	containerID string
	sb          *sandbox.Sandbox
	sandboxes   sandbox.SandboxManager
	installer   environment.BulkInstaller
	stopTimeout time.Duration

	mu      sync.Mutex
	output  io.Writer
	surface *surface.Surface
	closed  bool
}

func (e *Environment) ID() string { return e.sb.ID }

func (e *Environment) LoadPackages(ctx context.Context, names []string, opts environment.LoadOptions) error {
	if e.installer == nil {
		return igniteErrors.Dependency(strings.Join(names, ","), errors.New("no package index configured"))
	}
	// The site directory is bind-mounted, so host-side extraction is
	// visible to the container immediately.
	_, err := e.installer.Install(ctx, names, e.sb.SiteDir(), opts.CheckIntegrity)
	return err
}

func (e *Environment) Install(ctx context.Context, name string) error {
	if err := environment.ValidatePackageName(name); err != nil {
		return igniteErrors.Dependency(name, err)
	}
	res, err := e.exec(ctx, io.Discard, "python3", "-c", environment.InstallProgram(name, SitePath()))
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
	startup := path.Join(SitePath(), environment.StartupFile)
	res, err := e.exec(ctx, io.Discard, "python3", "-c", environment.ConfigProgram(key, value, startup))
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

	if err := os.WriteFile(e.sb.Path("program", "main.py"), []byte(program), 0644); err != nil {
		return nil, &igniteErrors.ExecutionError{ExitCode: -1, Err: fmt.Errorf("write program: %w", err)}
	}

	e.mu.Lock()
	out := e.output
	e.mu.Unlock()

	res, err := e.exec(ctx, out, "python3", path.Join(MountPath, "program", "main.py"))
	if err != nil {
		return res, &igniteErrors.ExecutionError{ExitCode: -1, Err: err}
	}
	if res.ExitCode != 0 {
		return res, &igniteErrors.ExecutionError{ExitCode: res.ExitCode, Diagnostic: res.Diagnostic}
	}
	return res, nil
}

// Close force-removes the container and then releases the sandbox.
func (e *Environment) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	var errs []error
	if e.stopTimeout > 0 {
		timeout := int(e.stopTimeout.Seconds())
		if err := e.client.ContainerStop(ctx, e.containerID, dockercontainer.StopOptions{Timeout: &timeout}); err != nil && !client.IsErrNotFound(err) {
			slog.Warn("Failed to stop container", "id", shortID(e.containerID), "error", err)
		}
	}
	if err := e.client.ContainerRemove(ctx, e.containerID, types.ContainerRemoveOptions{Force: true}); err != nil && !client.IsErrNotFound(err) {
		errs = append(errs, fmt.Errorf("removing container: %w", err))
	}
	if err := e.sandboxes.Teardown(e.sb); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// exec runs cmd inside the container. Stdout streams to stdout; stderr is
// kept as the diagnostic.
func (e *Environment) exec(ctx context.Context, stdout io.Writer, cmd ...string) (*environment.Result, error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("environment %s is closed", e.sb.ID)
	}

	start := time.Now()
	created, err := e.client.ContainerExecCreate(ctx, e.containerID, types.ExecConfig{
		AttachStdout: true,
		AttachStderr: true,
		WorkingDir:   MountPath,
		Env:          containerEnv(),
		Cmd:          cmd,
	})
	if err != nil {
		return nil, fmt.Errorf("creating exec: %w", err)
	}

	attach, err := e.client.ContainerExecAttach(ctx, created.ID, types.ExecStartCheck{})
	if err != nil {
		return nil, fmt.Errorf("attaching exec: %w", err)
	}
	defer attach.Close()

	var stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(stdout, &stderr, attach.Reader); err != nil {
		return nil, fmt.Errorf("reading exec output: %w", err)
	}

	inspect, err := e.client.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return nil, fmt.Errorf("inspecting exec: %w", err)
	}

	return &environment.Result{
		ExitCode:   inspect.ExitCode,
		Diagnostic: environment.Diagnostic(stderr.Bytes()),
		Duration:   time.Since(start),
	}, nil
}

// SitePath is the site directory as seen from inside the container.
func SitePath() string {
	return path.Join(MountPath, "site")
}

func containerEnv() []string {
	return []string{
		"PYTHONPATH=" + SitePath(),
		"PYTHONNOUSERSITE=1",
		"PYTHONDONTWRITEBYTECODE=1",
		"PYTHONUNBUFFERED=1",
		"HOME=/tmp",
		"IGNITE_SANDBOX=" + MountPath,
		"IGNITE_SURFACE=" + path.Join(MountPath, environment.DescriptorFile),
	}
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
