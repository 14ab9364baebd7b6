package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	// nil cmd skips flags
	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.Log.Level)
	assert.Equal(t, DefaultRuntimeBackend, cfg.Runtime.Backend)
	assert.Equal(t, DefaultProcessCommand, cfg.Runtime.Process.Command)
	assert.Equal(t, DefaultContainerImage, cfg.Runtime.Container.Image)
	assert.True(t, cfg.Packages.CheckIntegrity)
	assert.Equal(t, DefaultOutputSurface, cfg.Output.Surface)
	assert.Equal(t, DefaultOutputDriverKey, cfg.Output.DriverKey)
	assert.Equal(t, DefaultOutputDriver, cfg.Output.Driver)
	assert.Equal(t, DefaultArtifactTimeout, cfg.Artifact.Timeout)
	assert.EqualValues(t, DefaultArtifactMaxBytes, cfg.Artifact.MaxBytes)
	assert.False(t, cfg.Artifact.Prefetch)

	require.Len(t, cfg.Output.Surfaces, 2)
	assert.Equal(t, DefaultOutputSurface, cfg.Output.Surfaces[0].ID)
	assert.Equal(t, DefaultSurfaceKindTerminal, cfg.Output.Surfaces[0].Kind)
}

func TestLoadWithConfigFlag(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	configPath := filepath.Join(tmpDir, "config.yaml")
	content := []byte(`
runtime:
  backend: shell
packages:
  install: [pkgA]
  resolve: [noise]
  check_integrity: false
output:
  surface: frames
  env:
    - key: VIDEO_DRIVER
      value: canvas
    - key: SDL_HINT_RENDER_VSYNC
      value: "1"
  surfaces:
    - id: frames
      kind: file
      target: ~/frames.log
artifact:
  source: script.py
`)
	require.NoError(t, os.WriteFile(configPath, content, 0644))

	cmd := &cobra.Command{}
	cmd.Flags().String("config", "", "config file path")
	require.NoError(t, cmd.Flags().Set("config", configPath))

	cfg, err := Load(cmd)
	require.NoError(t, err)

	assert.Equal(t, "shell", cfg.Runtime.Backend)
	assert.Equal(t, []string{"pkgA"}, cfg.Packages.Install)
	assert.Equal(t, []string{"noise"}, cfg.Packages.Resolve)
	assert.False(t, cfg.Packages.CheckIntegrity)
	assert.Equal(t, "frames", cfg.Output.Surface)
	require.Len(t, cfg.Output.Env, 2)
	assert.Equal(t, EnvEntry{Key: "VIDEO_DRIVER", Value: "canvas"}, cfg.Output.Env[0])
	assert.Equal(t, "SDL_HINT_RENDER_VSYNC", cfg.Output.Env[1].Key)
	require.Len(t, cfg.Output.Surfaces, 1)
	assert.Equal(t, filepath.Join(tmpDir, "frames.log"), cfg.Output.Surfaces[0].Target)
	assert.Equal(t, "script.py", cfg.Artifact.Source)
}

func TestLoadWithMissingConfigFlagReturnsError(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().String("config", "", "config file path")
	require.NoError(t, cmd.Flags().Set("config", filepath.Join(t.TempDir(), "missing.yaml")))

	_, err := Load(cmd)
	require.Error(t, err)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("IGNITE_RUNTIME_BACKEND", "container")
	t.Setenv("IGNITE_OUTPUT_DRIVER_KEY", "VIDEO_DRIVER")
	t.Setenv("IGNITE_RUNTIME_CONTAINER_IMAGE", "python:3.11")
	t.Setenv("IGNITE_ARTIFACT_BASE", "https://example.com/app/")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "container", cfg.Runtime.Backend)
	assert.Equal(t, "VIDEO_DRIVER", cfg.Output.DriverKey)
	assert.Equal(t, "python:3.11", cfg.Runtime.Container.Image)
	assert.Equal(t, "https://example.com/app/", cfg.Artifact.Base)
}

func TestLoadFlagOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cmd := &cobra.Command{}
	cmd.Flags().String("log.level", DefaultLogLevel, "")
	require.NoError(t, cmd.Flags().Set("log.level", "debug"))

	cfg, err := Load(cmd)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestEnvKey(t *testing.T) {
	cases := map[string]string{
		"IGNITE_LOG_LEVEL":                "log.level",
		"IGNITE_RUNTIME_SANDBOX_PATH":     "runtime.sandbox_path",
		"IGNITE_RUNTIME_PROCESS_COMMAND":  "runtime.process.command",
		"IGNITE_ARTIFACT_S3_ACCESS_KEY":   "artifact.s3.access_key",
		"IGNITE_PACKAGES_CHECK_INTEGRITY": "packages.check_integrity",
		"IGNITE_ARTIFACT_MAX_BYTES":       "artifact.max_bytes",
		"IGNITE_UNKNOWN_THING":            "unknown.thing",
	}
	for in, want := range cases {
		assert.Equal(t, want, envKey(in), in)
	}
}

func TestDurationOrDefault(t *testing.T) {
	d, err := DurationOrDefault("", "2s")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)

	d, err = DurationOrDefault(" 150ms ", "2s")
	require.NoError(t, err)
	assert.Equal(t, 150*time.Millisecond, d)

	_, err = DurationOrDefault("", "")
	assert.Error(t, err)

	_, err = DurationOrDefault("soon", "")
	assert.Error(t, err)

	_, err = DurationOrDefault("-1s", "")
	assert.Error(t, err)
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("IGNITE_TEST_DIR", "assets")

	got, err := ExpandPath("~/.ignite/sandboxes")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".ignite", "sandboxes"), got)

	got, err = ExpandPath("~")
	require.NoError(t, err)
	assert.Equal(t, home, got)

	got, err = ExpandPath("/srv/$IGNITE_TEST_DIR/")
	require.NoError(t, err)
	assert.Equal(t, "/srv/assets", got)

	got, err = ExpandPath("   ")
	require.NoError(t, err)
	assert.Empty(t, got)
}
