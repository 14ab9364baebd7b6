package container

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harunnryd/ignite/internal/environment"
	igniteErrors "github.com/harunnryd/ignite/internal/errors"
	"github.com/harunnryd/ignite/internal/sandbox"
	"github.com/harunnryd/ignite/internal/surface"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainerEnvPointsIntoMount(t *testing.T) {
	env := containerEnv()
	assert.Contains(t, env, "PYTHONPATH=/sandbox/site")
	assert.Contains(t, env, "IGNITE_SURFACE=/sandbox/surface.json")
	assert.Equal(t, "/sandbox/site", SitePath())
	assert.Equal(t, "0123456789ab", shortID("0123456789abcdef"))
	assert.Equal(t, "abc", shortID("abc"))
}

func TestNewProviderValidatesOptions(t *testing.T) {
	_, err := NewProvider(Options{Image: "python:3.12-slim"})
	assert.True(t, errors.Is(err, igniteErrors.ErrInvalidInput))

	mgr, err := sandbox.NewDirManager(t.TempDir(), sandbox.Options{})
	require.NoError(t, err)
	_, err = NewProvider(Options{Sandboxes: mgr})
	assert.True(t, errors.Is(err, igniteErrors.ErrInvalidInput))
}

func TestContainerEnvironmentEndToEnd(t *testing.T) {
	if os.Getenv("IGNITE_DOCKER_TESTS") != "1" {
		t.Skip("set IGNITE_DOCKER_TESTS=1 to run docker tests")
	}
	ctx := context.Background()

	mgr, err := sandbox.NewDirManager(t.TempDir(), sandbox.Options{})
	require.NoError(t, err)

	p, err := NewProvider(Options{
		Image:       "python:3.12-slim",
		Pull:        true,
		StopTimeout: time.Second,
		Sandboxes:   mgr,
	})
	require.NoError(t, err)
	defer p.Close()

	env, err := p.Acquire(ctx)
	require.NoError(t, err)
	defer env.Close(ctx)

	target := filepath.Join(t.TempDir(), "canvas.out")
	s, err := surface.New("canvas", surface.KindFile, target)
	require.NoError(t, err)

	require.NoError(t, env.BindSurface(ctx, s))
	require.NoError(t, env.SetConfig(ctx, "VIDEO_DRIVER", "canvas"))

	_, err = env.Execute(ctx, "import os\nprint(os.environ['VIDEO_DRIVER'])\n")
	require.NoError(t, err)

	out, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "canvas\n", string(out))

	res, err := env.Execute(ctx, "raise SystemExit(3)\n")
	var ee *igniteErrors.ExecutionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, 3, ee.ExitCode)
	assert.Equal(t, 3, res.ExitCode)

	err = env.Install(ctx, "definitely-not-a-real-package-ignite")
	assert.True(t, errors.Is(err, igniteErrors.ErrDependency))

	require.NoError(t, env.Close(ctx))
	_, err = env.(*Environment).exec(ctx, nil, "true")
	assert.Error(t, err)

	var _ environment.Environment = env
}
