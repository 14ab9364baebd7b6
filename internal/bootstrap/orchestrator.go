package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/harunnryd/ignite/internal/artifact"
	"github.com/harunnryd/ignite/internal/environment"
	igniteErrors "github.com/harunnryd/ignite/internal/errors"
	"github.com/harunnryd/ignite/internal/logger"
	"github.com/harunnryd/ignite/internal/surface"

	"github.com/oklog/ulid/v2"
)

type SurfaceResolver interface {
	Lookup(id string) (*surface.Surface, error)
}

type ArtifactFetcher interface {
	Fetch(ctx context.Context, ref string) (*artifact.Artifact, error)
}

type Options struct {
	// Prefetch retrieves the artifact while the environment is being
	// prepared. The result is still consumed at FetchingArtifact.
	Prefetch bool

	OnTransition TransitionFunc
}

// Orchestrator drives one bootstrap pipeline: it acquires an environment,
// installs dependencies, binds output, fetches the program and hands it off.
// Stages run strictly in order and the first failure halts the pipeline.
type Orchestrator struct {
	provider environment.Provider
	surfaces SurfaceResolver
	fetcher  ArtifactFetcher
	opts     Options

	mu      sync.Mutex
	started bool
	env     environment.Environment
}

func New(provider environment.Provider, surfaces SurfaceResolver, fetcher ArtifactFetcher, opts Options) *Orchestrator {
	return &Orchestrator{
		provider: provider,
		surfaces: surfaces,
		fetcher:  fetcher,
		opts:     opts,
	}
}

type fetchResult struct {
	artifact *artifact.Artifact
	err      error
}

type pipeline struct {
	o        *Orchestrator
	plan     Plan
	outcome  *Outcome
	state    Stage
	env      environment.Environment
	art      *artifact.Artifact
	prefetch <-chan fetchResult
}

// Run executes the pipeline once. Every failure is caught here, logged with
// its stage and cause, and reported in the Outcome.
func (o *Orchestrator) Run(ctx context.Context, plan Plan) *Outcome {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return &Outcome{State: StageFailed, FailedStage: StageUnstarted, Err: igniteErrors.ErrAlreadyStarted}
	}
	o.started = true
	o.mu.Unlock()

	runID := ulid.Make().String()
	ctx = logger.WithRunID(ctx, runID)

	p := &pipeline{
		o:       o,
		plan:    plan,
		outcome: &Outcome{RunID: runID, State: StageUnstarted},
		state:   StageUnstarted,
	}

	start := time.Now()
	logger.FromContext(ctx).Info("Bootstrap started",
		"backend", o.provider.Name(),
		"packages", len(plan.Packages),
		"resolve", len(plan.Resolve),
		"surface", plan.Surface,
		"source", plan.Source,
	)

	if err := plan.Validate(); err != nil {
		p.transition(ctx, StageInitializing)
		p.fail(ctx, igniteErrors.Initialization(err))
		return p.outcome
	}

	if o.opts.Prefetch {
		// An earlier stage failing abandons the in-flight fetch.
		fetchCtx, cancelFetch := context.WithCancel(ctx)
		defer cancelFetch()
		p.prefetch = o.startPrefetch(fetchCtx, plan.Source)
	}

	runners := map[Stage]func(context.Context) (context.Context, error){
		StageInitializing:           p.initialize,
		StageInstallingDependencies: p.installDependencies,
		StageBindingOutput:          p.bindOutput,
		StageFetchingArtifact:       p.fetchArtifact,
		StageExecuting:              p.execute,
	}

	for _, stage := range Stages {
		p.transition(ctx, stage)
		next, err := runners[stage](ctx)
		if err != nil {
			p.fail(ctx, err)
			return p.outcome
		}
		ctx = next
	}

	p.transition(ctx, StageCompleted)
	logger.FromContext(ctx).Info("Bootstrap completed", "duration", time.Since(start))
	return p.outcome
}

// Environment returns the handle acquired by Run, or nil.
func (o *Orchestrator) Environment() environment.Environment {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.env
}

// Close releases the environment. The handle lives until the host exits,
// so callers invoke this once the outcome has been reported.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	env := o.env
	o.env = nil
	o.mu.Unlock()

	if env == nil {
		return nil
	}
	return env.Close(ctx)
}

func (o *Orchestrator) startPrefetch(ctx context.Context, source string) <-chan fetchResult {
	ch := make(chan fetchResult, 1)
	go func() {
		a, err := o.fetcher.Fetch(ctx, source)
		ch <- fetchResult{artifact: a, err: err}
	}()
	return ch
}

func (p *pipeline) initialize(ctx context.Context) (context.Context, error) {
	env, err := p.o.provider.Acquire(ctx)
	if err != nil {
		return ctx, igniteErrors.Initialization(err)
	}
	if env == nil {
		return ctx, igniteErrors.Initialization(errors.New("provider returned no environment"))
	}

	p.env = env
	p.o.mu.Lock()
	p.o.env = env
	p.o.mu.Unlock()

	return logger.WithEnvironmentID(ctx, env.ID()), nil
}

func (p *pipeline) installDependencies(ctx context.Context) (context.Context, error) {
	if len(p.plan.Packages) > 0 {
		err := p.env.LoadPackages(ctx, p.plan.Packages, environment.LoadOptions{CheckIntegrity: p.plan.CheckIntegrity})
		if err != nil {
			return ctx, igniteErrors.Dependency(strings.Join(p.plan.Packages, ","), err)
		}
		logger.FromContext(ctx).Info("Packages loaded", "packages", p.plan.Packages, "check_integrity", p.plan.CheckIntegrity)
	}

	for _, name := range p.plan.Resolve {
		if err := p.env.Install(ctx, name); err != nil {
			return ctx, igniteErrors.Dependency(name, err)
		}
		logger.FromContext(ctx).Info("Package installed", "package", name)
	}
	return ctx, nil
}

func (p *pipeline) bindOutput(ctx context.Context) (context.Context, error) {
	s, err := p.o.surfaces.Lookup(p.plan.Surface)
	if err != nil {
		return ctx, igniteErrors.Initialization(err)
	}
	if err := p.env.BindSurface(ctx, s); err != nil {
		return ctx, igniteErrors.Initialization(fmt.Errorf("bind surface %s: %w", s.ID, err))
	}
	for _, e := range p.plan.Config {
		if err := p.env.SetConfig(ctx, e.Key, e.Value); err != nil {
			return ctx, igniteErrors.Initialization(err)
		}
	}
	logger.FromContext(ctx).Info("Output bound", "surface", s.ID, "kind", s.Kind, "entries", len(p.plan.Config))
	return ctx, nil
}

func (p *pipeline) fetchArtifact(ctx context.Context) (context.Context, error) {
	var res fetchResult
	if p.prefetch != nil {
		select {
		case res = <-p.prefetch:
		case <-ctx.Done():
			res.err = ctx.Err()
		}
	} else {
		res.artifact, res.err = p.o.fetcher.Fetch(ctx, p.plan.Source)
	}

	if res.err != nil {
		var fe *igniteErrors.FetchError
		if errors.As(res.err, &fe) {
			return ctx, res.err
		}
		return ctx, &igniteErrors.FetchError{Source: p.plan.Source, Err: res.err}
	}
	if res.artifact == nil || len(res.artifact.Body) == 0 {
		return ctx, &igniteErrors.FetchError{Source: p.plan.Source, Status: "empty artifact"}
	}

	p.art = res.artifact
	logger.FromContext(ctx).Info("Artifact fetched", "source", res.artifact.Source, "bytes", len(res.artifact.Body))
	return ctx, nil
}

func (p *pipeline) execute(ctx context.Context) (context.Context, error) {
	res, err := p.env.Execute(ctx, p.art.Text())
	p.outcome.Result = res
	if err != nil {
		var ee *igniteErrors.ExecutionError
		if errors.As(err, &ee) {
			return ctx, err
		}
		wrapped := &igniteErrors.ExecutionError{ExitCode: -1, Err: err}
		if res != nil {
			wrapped.ExitCode = res.ExitCode
			wrapped.Diagnostic = res.Diagnostic
		}
		return ctx, wrapped
	}
	if res != nil {
		logger.FromContext(ctx).Info("Program finished", "exit_code", res.ExitCode, "duration", res.Duration)
	}
	return ctx, nil
}

func (p *pipeline) transition(ctx context.Context, to Stage) {
	if p.state.Terminal() {
		logger.FromContext(ctx).Warn("Ignoring transition out of terminal stage", "from", p.state, "to", to)
		return
	}
	t := Transition{From: p.state, To: to, At: time.Now()}
	p.state = to
	p.outcome.State = to
	p.outcome.Transitions = append(p.outcome.Transitions, t)

	logger.FromContext(ctx).Info("Stage transition", "from", t.From, "to", t.To)
	if p.o.opts.OnTransition != nil {
		p.o.opts.OnTransition(t)
	}
}

func (p *pipeline) fail(ctx context.Context, err error) {
	stage := p.state
	p.outcome.FailedStage = stage
	p.outcome.Err = err
	p.transition(ctx, StageFailed)

	msg := "Could not prepare environment"
	if igniteErrors.Phase(err) == igniteErrors.PhaseProgram {
		msg = "Program failed after environment was ready"
	}
	attrs := []any{
		"stage", stage,
		"phase", igniteErrors.Phase(err),
		"category", igniteErrors.Category(err),
		"error", err,
	}
	var ee *igniteErrors.ExecutionError
	if errors.As(err, &ee) {
		attrs = append(attrs, "exit_code", ee.ExitCode)
	}
	logger.FromContext(ctx).Error(msg, attrs...)
}

// Describe renders a one-line diagnostic for a failed outcome.
func Describe(o *Outcome) string {
	if o == nil || o.Err == nil {
		return ""
	}
	if igniteErrors.Phase(o.Err) == igniteErrors.PhaseProgram {
		return fmt.Sprintf("program failed after environment was ready: %v", o.Err)
	}
	return fmt.Sprintf("could not prepare environment (%s): %v", o.FailedStage, o.Err)
}
