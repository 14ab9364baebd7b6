package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/harunnryd/ignite/cmd/ignite/runtime"

	"github.com/harunnryd/ignite/internal/bootstrap"
	"github.com/harunnryd/ignite/internal/config"
	igniteErrors "github.com/harunnryd/ignite/internal/errors"

	"charm.land/lipgloss/v2"
	"github.com/google/shlex"
	"github.com/spf13/cobra"
)

type launchOptions struct {
	packages    []string
	resolve     []string
	surface     string
	driver      string
	env         []string
	noIntegrity bool
	backend     string
	prefetch    bool
	quiet       bool
}

var launchFlags launchOptions

var launchCmd = &cobra.Command{
	Use:   "launch [source]",
	Short: "Prepare an environment and hand off to a program",
	Long: `Acquire an environment, install packages, bind the output surface, fetch the
program and execute it. The source is a path relative to artifact.base, a
file:// or http(s):// URL, or s3://bucket/key. It defaults to artifact.source.`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		loadedCfg, err := loadConfigForCommand(cmd)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		opts := launchFlags
		flags := cmd.Flags()
		if !flags.Changed("package") {
			opts.packages = nil
		}
		if !flags.Changed("resolve") {
			opts.resolve = nil
		}

		plan, err := buildPlan(loadedCfg, opts, args)
		if err != nil {
			return err
		}

		runCfg := launchRuntimeConfig(loadedCfg, opts)

		progress := cmd.ErrOrStderr()
		if opts.quiet {
			progress = io.Discard
		}

		return executeWithRuntime(&runCfg, func(b runtime.RuntimeBuilder) runtime.RuntimeBuilder {
			return b.WithBackend(opts.backend).WithTransitionObserver(progressObserver(progress))
		}, func(components *runtime.RuntimeComponents) error {
			outcome := components.Orchestrator.Run(components.Ctx, plan)
			if outcome.Succeeded() {
				return nil
			}
			return &exitError{code: outcome.ExitCode(), msg: bootstrap.Describe(outcome)}
		})
	},
}

// launchRuntimeConfig applies the flags that shape the runtime rather than
// the plan. --no-integrity covers the in-environment package manager too.
func launchRuntimeConfig(c *config.Config, opts launchOptions) config.Config {
	runCfg := *c
	if opts.prefetch {
		runCfg.Artifact.Prefetch = true
	}
	if opts.noIntegrity {
		runCfg.Packages.CheckIntegrity = false
	}
	return runCfg
}

// buildPlan merges configuration and flags into a launch plan. Flags replace
// the configured package lists. The driver entry is written first, then
// output.env, then --env, so later entries win inside the environment.
func buildPlan(c *config.Config, opts launchOptions, args []string) (bootstrap.Plan, error) {
	plan := bootstrap.Plan{
		Packages:       c.Packages.Install,
		CheckIntegrity: c.Packages.CheckIntegrity && !opts.noIntegrity,
		Resolve:        c.Packages.Resolve,
		Surface:        c.Output.Surface,
		Source:         c.Artifact.Source,
	}
	if opts.packages != nil {
		plan.Packages = opts.packages
	}
	if opts.resolve != nil {
		plan.Resolve = opts.resolve
	}
	if opts.surface != "" {
		plan.Surface = opts.surface
	}
	if len(args) > 0 {
		plan.Source = args[0]
	}
	if strings.TrimSpace(plan.Source) == "" {
		return bootstrap.Plan{}, igniteErrors.InvalidInput("no program source given; pass one or set artifact.source")
	}

	driver := c.Output.Driver
	if opts.driver != "" {
		driver = opts.driver
	}
	if c.Output.DriverKey != "" && driver != "" {
		plan.Config = append(plan.Config, bootstrap.ConfigEntry{Key: c.Output.DriverKey, Value: driver})
	}
	for _, e := range c.Output.Env {
		plan.Config = append(plan.Config, bootstrap.ConfigEntry{Key: e.Key, Value: e.Value})
	}

	extra, err := parseEnvFlags(opts.env)
	if err != nil {
		return bootstrap.Plan{}, err
	}
	plan.Config = append(plan.Config, extra...)

	return plan, nil
}

// parseEnvFlags accepts KEY=VALUE words; one flag may carry several,
// shell-quoted: --env "A=1 B='two words'".
func parseEnvFlags(values []string) ([]bootstrap.ConfigEntry, error) {
	var entries []bootstrap.ConfigEntry
	for _, raw := range values {
		words, err := shlex.Split(raw)
		if err != nil {
			return nil, igniteErrors.InvalidInput(fmt.Sprintf("parse --env %q: %v", raw, err))
		}
		for _, w := range words {
			key, value, ok := strings.Cut(w, "=")
			if !ok || key == "" {
				return nil, igniteErrors.InvalidInput(fmt.Sprintf("--env %q is not KEY=VALUE", w))
			}
			entries = append(entries, bootstrap.ConfigEntry{Key: key, Value: value})
		}
	}
	return entries, nil
}

var (
	stageStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Bold(true)
	failedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
)

func progressObserver(w io.Writer) bootstrap.TransitionFunc {
	return func(t bootstrap.Transition) {
		style := stageStyle
		if t.To.Terminal() {
			style = doneStyle
			if t.To == bootstrap.StageFailed {
				style = failedStyle
			}
		}
		fmt.Fprintf(w, "%s %s\n", style.Render("ignite"), t.To)
	}
}

func init() {
	flags := launchCmd.Flags()
	flags.StringSliceVar(&launchFlags.packages, "package", nil, "package for the bulk installer (repeatable; replaces packages.install)")
	flags.StringSliceVar(&launchFlags.resolve, "resolve", nil, "package for the environment's own package manager (repeatable; replaces packages.resolve)")
	flags.StringVar(&launchFlags.surface, "surface", "", "output surface id (default output.surface)")
	flags.StringVar(&launchFlags.driver, "driver", "", "value written to output.driver_key (default output.driver)")
	flags.StringArrayVar(&launchFlags.env, "env", nil, "extra KEY=VALUE written inside the environment (repeatable)")
	flags.BoolVar(&launchFlags.noIntegrity, "no-integrity", false, "skip checksum verification of bulk and in-environment packages")
	flags.StringVar(&launchFlags.backend, "backend", "", "runtime backend: process, container or shell (default runtime.backend)")
	flags.BoolVar(&launchFlags.prefetch, "prefetch", false, "fetch the program while the environment is prepared")
	flags.BoolVarP(&launchFlags.quiet, "quiet", "q", false, "do not print stage progress")
	rootCmd.AddCommand(launchCmd)
}
