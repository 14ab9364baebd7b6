package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/harunnryd/ignite/internal/bootstrap"
	"github.com/harunnryd/ignite/internal/config"
	igniteErrors "github.com/harunnryd/ignite/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig() *config.Config {
	return &config.Config{
		Packages: config.PackagesConfig{
			Install:        []string{"pkgA"},
			Resolve:        []string{"noise"},
			CheckIntegrity: true,
		},
		Output: config.OutputConfig{
			Surface:   "canvas",
			DriverKey: "SDL_VIDEODRIVER",
			Driver:    "canvas",
			Env:       []config.EnvEntry{{Key: "VIDEO_DRIVER", Value: "canvas"}},
		},
		Artifact: config.ArtifactConfig{Source: "script.py"},
	}
}

func TestBuildPlanFromConfig(t *testing.T) {
	plan, err := buildPlan(baseConfig(), launchOptions{}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"pkgA"}, plan.Packages)
	assert.Equal(t, []string{"noise"}, plan.Resolve)
	assert.True(t, plan.CheckIntegrity)
	assert.Equal(t, "canvas", plan.Surface)
	assert.Equal(t, "script.py", plan.Source)
	assert.Equal(t, []bootstrap.ConfigEntry{
		{Key: "SDL_VIDEODRIVER", Value: "canvas"},
		{Key: "VIDEO_DRIVER", Value: "canvas"},
	}, plan.Config)
	require.NoError(t, plan.Validate())
}

func TestBuildPlanFlagsOverrideConfig(t *testing.T) {
	opts := launchOptions{
		packages:    []string{},
		resolve:     []string{"six"},
		surface:     "null",
		driver:      "offscreen",
		env:         []string{"A=1 B='two words'"},
		noIntegrity: true,
	}
	plan, err := buildPlan(baseConfig(), opts, []string{"https://example.com/game.py"})
	require.NoError(t, err)

	assert.Empty(t, plan.Packages)
	assert.Equal(t, []string{"six"}, plan.Resolve)
	assert.False(t, plan.CheckIntegrity)
	assert.Equal(t, "null", plan.Surface)
	assert.Equal(t, "https://example.com/game.py", plan.Source)
	assert.Equal(t, []bootstrap.ConfigEntry{
		{Key: "SDL_VIDEODRIVER", Value: "offscreen"},
		{Key: "VIDEO_DRIVER", Value: "canvas"},
		{Key: "A", Value: "1"},
		{Key: "B", Value: "two words"},
	}, plan.Config)
}

func TestLaunchRuntimeConfigAppliesFlags(t *testing.T) {
	loaded := baseConfig()

	runCfg := launchRuntimeConfig(loaded, launchOptions{noIntegrity: true, prefetch: true})
	assert.False(t, runCfg.Packages.CheckIntegrity)
	assert.True(t, runCfg.Artifact.Prefetch)

	// the loaded config is left untouched
	assert.True(t, loaded.Packages.CheckIntegrity)
	assert.False(t, loaded.Artifact.Prefetch)

	runCfg = launchRuntimeConfig(loaded, launchOptions{})
	assert.True(t, runCfg.Packages.CheckIntegrity)
}

func TestBuildPlanWithoutDriverKey(t *testing.T) {
	c := baseConfig()
	c.Output.DriverKey = ""
	c.Output.Env = nil

	plan, err := buildPlan(c, launchOptions{}, nil)
	require.NoError(t, err)
	assert.Empty(t, plan.Config)
}

func TestBuildPlanRequiresSource(t *testing.T) {
	c := baseConfig()
	c.Artifact.Source = ""

	_, err := buildPlan(c, launchOptions{}, nil)
	assert.True(t, errors.Is(err, igniteErrors.ErrInvalidInput))
}

func TestParseEnvFlagsRejectsBareWords(t *testing.T) {
	_, err := parseEnvFlags([]string{"VIDEO_DRIVER"})
	assert.ErrorContains(t, err, "is not KEY=VALUE")

	_, err = parseEnvFlags([]string{"=value"})
	assert.Error(t, err)

	entries, err := parseEnvFlags([]string{"EMPTY="})
	require.NoError(t, err)
	assert.Equal(t, []bootstrap.ConfigEntry{{Key: "EMPTY", Value: ""}}, entries)
}

func TestProgressObserverPrintsStages(t *testing.T) {
	var buf bytes.Buffer
	observe := progressObserver(&buf)

	observe(bootstrap.Transition{From: bootstrap.StageUnstarted, To: bootstrap.StageInitializing})
	observe(bootstrap.Transition{From: bootstrap.StageExecuting, To: bootstrap.StageCompleted})

	assert.Contains(t, buf.String(), "Initializing")
	assert.Contains(t, buf.String(), "Completed")
}

func TestExitErrorCarriesCode(t *testing.T) {
	err := error(&exitError{code: 3, msg: "program failed after environment was ready"})
	var ee *exitError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, 3, ee.code)
	assert.Equal(t, "program failed after environment was ready", err.Error())
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 3, exitCode(&exitError{code: 3, msg: "program failed"}))
	assert.Equal(t, 1, exitCode(&exitError{code: 0, msg: "could not prepare environment"}))

	unknownBackend := igniteErrors.Wrap(igniteErrors.InvalidInput(`unknown runtime backend "wasm"`), "failed to initialize runtime")
	assert.Equal(t, 2, exitCode(unknownBackend))

	_, err := buildPlan(&config.Config{}, launchOptions{}, nil)
	assert.Equal(t, 2, exitCode(err))

	assert.Equal(t, 1, exitCode(errors.New("docker daemon unreachable")))
}
