// Package envtest provides a recording Environment for pipeline tests.
package envtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/harunnryd/ignite/internal/environment"
	igniteErrors "github.com/harunnryd/ignite/internal/errors"
	"github.com/harunnryd/ignite/internal/surface"
)

const (
	OpLoadPackages = "loadPackages"
	OpInstall      = "install"
	OpBindSurface  = "bindSurface"
	OpSetConfig    = "setConfig"
	OpExecute      = "execute"
	OpClose        = "close"
)

type Call struct {
	Op   string
	Args []string
}

// Env records every call in order. Failures are injected through the
// exported error fields.
type Env struct {
	mu    sync.Mutex
	calls []Call

	EnvID string

	LoadErr    error
	InstallErr map[string]error
	BindErr    error
	ConfigErr  error
	ExecErr    error
	ExecResult *environment.Result

	Surface *surface.Surface
	Config  map[string]string
	Closed  bool
}

func New() *Env {
	return &Env{
		EnvID:      "fake",
		InstallErr: make(map[string]error),
		Config:     make(map[string]string),
	}
}

func (e *Env) record(op string, args ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, Call{Op: op, Args: args})
}

func (e *Env) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Call, len(e.calls))
	copy(out, e.calls)
	return out
}

func (e *Env) Ops() []string {
	var ops []string
	for _, c := range e.Calls() {
		ops = append(ops, c.Op)
	}
	return ops
}

func (e *Env) Count(op string) int {
	n := 0
	for _, c := range e.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (e *Env) ID() string { return e.EnvID }

func (e *Env) LoadPackages(ctx context.Context, names []string, opts environment.LoadOptions) error {
	e.record(OpLoadPackages, append([]string{fmt.Sprintf("integrity=%t", opts.CheckIntegrity)}, names...)...)
	return e.LoadErr
}

func (e *Env) Install(ctx context.Context, name string) error {
	e.record(OpInstall, name)
	if err, ok := e.InstallErr[name]; ok {
		return igniteErrors.Dependency(name, err)
	}
	return nil
}

func (e *Env) BindSurface(ctx context.Context, s *surface.Surface) error {
	e.record(OpBindSurface, s.ID)
	if e.BindErr != nil {
		return e.BindErr
	}
	e.mu.Lock()
	e.Surface = s
	e.mu.Unlock()
	return nil
}

func (e *Env) SetConfig(ctx context.Context, key, value string) error {
	e.record(OpSetConfig, key, value)
	if e.ConfigErr != nil {
		return e.ConfigErr
	}
	e.mu.Lock()
	e.Config[key] = value
	e.mu.Unlock()
	return nil
}

func (e *Env) Execute(ctx context.Context, program string) (*environment.Result, error) {
	e.record(OpExecute, program)
	if strings.TrimSpace(program) == "" {
		return nil, fmt.Errorf("empty program reached the environment")
	}
	res := e.ExecResult
	if res == nil {
		res = &environment.Result{}
	}
	return res, e.ExecErr
}

func (e *Env) Close(ctx context.Context) error {
	e.record(OpClose)
	e.mu.Lock()
	e.Closed = true
	e.mu.Unlock()
	return nil
}

// Provider hands out a single Env, or fails with Err.
type Provider struct {
	mu       sync.Mutex
	Env      *Env
	Err      error
	Acquired int
}

func NewProvider(env *Env) *Provider {
	return &Provider{Env: env}
}

func (p *Provider) Name() string { return "fake" }

func (p *Provider) Acquire(ctx context.Context) (environment.Environment, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Acquired++
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Env, nil
}
