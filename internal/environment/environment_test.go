package environment_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/harunnryd/ignite/internal/environment"
	"github.com/harunnryd/ignite/internal/environment/envtest"
	igniteErrors "github.com/harunnryd/ignite/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closingProvider struct {
	*envtest.Provider
	closed bool
}

func (c *closingProvider) Close() error {
	c.closed = true
	return nil
}

func TestRegistryBuildsProvidersOnce(t *testing.T) {
	r := environment.NewRegistry()
	built := 0
	require.NoError(t, r.Register("fake", func() (environment.Provider, error) {
		built++
		return envtest.NewProvider(envtest.New()), nil
	}))

	first, err := r.Get("fake")
	require.NoError(t, err)
	second, err := r.Get("fake")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, built)
}

func TestRegistryRejectsDuplicatesAndUnknownNames(t *testing.T) {
	r := environment.NewRegistry()
	factory := func() (environment.Provider, error) { return envtest.NewProvider(envtest.New()), nil }
	require.NoError(t, r.Register("fake", factory))
	assert.Error(t, r.Register("fake", factory))
	assert.True(t, errors.Is(r.Register("", factory), igniteErrors.ErrInvalidInput))

	_, err := r.Get("missing")
	assert.True(t, errors.Is(err, igniteErrors.ErrNotFound))
	assert.False(t, r.IsAvailable("missing"))
}

func TestRegistryNamesAreSorted(t *testing.T) {
	r := environment.NewRegistry()
	for _, name := range []string{"shell", "container", "process"} {
		require.NoError(t, r.Register(name, func() (environment.Provider, error) {
			return nil, errors.New("unavailable")
		}))
	}
	assert.Equal(t, []string{"container", "process", "shell"}, r.Names())
	assert.False(t, r.IsAvailable("shell"))
}

func TestDeferredProviderFailsAtAcquire(t *testing.T) {
	r := environment.NewRegistry()
	require.NoError(t, r.Register("docker", func() (environment.Provider, error) {
		return nil, errors.New("daemon not reachable")
	}))

	p := r.Deferred("docker")
	assert.Equal(t, "docker", p.Name())

	_, err := p.Acquire(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "daemon not reachable")
}

func TestDeferredProviderAcquiresFromBackend(t *testing.T) {
	env := envtest.New()
	r := environment.NewRegistry()
	require.NoError(t, r.Register("fake", func() (environment.Provider, error) {
		return envtest.NewProvider(env), nil
	}))

	got, err := r.Deferred("fake").Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, env, got)
}

func TestRegistryCloseReleasesBuiltProviders(t *testing.T) {
	cp := &closingProvider{Provider: envtest.NewProvider(envtest.New())}
	r := environment.NewRegistry()
	require.NoError(t, r.Register("fake", func() (environment.Provider, error) { return cp, nil }))

	require.NoError(t, r.Close())
	assert.False(t, cp.closed, "unbuilt providers are left alone")

	_, err := r.Get("fake")
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.True(t, cp.closed)
}

func TestDiagnosticKeepsTail(t *testing.T) {
	assert.Equal(t, "boom", environment.Diagnostic([]byte("  boom\n")))

	long := strings.Repeat("a", 5000) + "END"
	d := environment.Diagnostic([]byte(long))
	assert.True(t, strings.HasPrefix(d, "..."))
	assert.True(t, strings.HasSuffix(d, "END"))
	assert.Len(t, d, 4096+3)
}

func TestProgramsQuoteTheirArguments(t *testing.T) {
	install := environment.InstallProgram(`evil"name`, "/sandbox/site")
	assert.Contains(t, install, `"evil\"name"`)
	assert.Contains(t, install, `"--target", "/sandbox/site"`)

	cfg := environment.ConfigProgram("VIDEO_DRIVER", "can'vas", "/sandbox/site/sitecustomize.py")
	assert.Contains(t, cfg, `os.environ["VIDEO_DRIVER"] = "can'vas"`)
	assert.Contains(t, cfg, `"/sandbox/site/sitecustomize.py"`)
}

func TestValidation(t *testing.T) {
	assert.NoError(t, environment.ValidateConfigKey("VIDEO_DRIVER"))
	assert.True(t, errors.Is(environment.ValidateConfigKey(" "), igniteErrors.ErrInvalidInput))
	assert.True(t, errors.Is(environment.ValidateConfigKey("A=B"), igniteErrors.ErrInvalidInput))

	assert.NoError(t, environment.ValidatePackageName("numpy"))
	assert.True(t, errors.Is(environment.ValidatePackageName("--index-url"), igniteErrors.ErrInvalidInput))
	assert.True(t, errors.Is(environment.ValidatePackageName(""), igniteErrors.ErrInvalidInput))
}
