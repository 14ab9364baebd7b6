package shell

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/harunnryd/ignite/internal/artifact"
	"github.com/harunnryd/ignite/internal/environment"
	igniteErrors "github.com/harunnryd/ignite/internal/errors"
	"github.com/harunnryd/ignite/internal/packages"
	"github.com/harunnryd/ignite/internal/sandbox"
	"github.com/harunnryd/ignite/internal/surface"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scriptPackage(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0755, Size: int64(len(body)), Typeflag: tar.TypeReg}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

// newInstaller publishes pkgA (depends on helper) and helper in a local index.
func newInstaller(t *testing.T) *packages.Installer {
	t.Helper()
	dir := t.TempDir()

	index := map[string]packages.Package{}
	publish := func(pkg packages.Package, data []byte) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, pkg.FileName), data, 0644))
		sum := sha256.Sum256(data)
		pkg.SHA256 = hex.EncodeToString(sum[:])
		index[pkg.Name] = pkg
	}
	publish(packages.Package{Name: "helper", Version: "0.1", FileName: "helper-0.1.tar.gz"},
		scriptPackage(t, map[string]string{"bin/helper": "echo \"helper sees $VIDEO_DRIVER\"\n"}))
	publish(packages.Package{Name: "pkgA", Version: "1.0", FileName: "pkga-1.0.tar.gz", Depends: []string{"helper"}},
		scriptPackage(t, map[string]string{"bin/pkga": "echo \"pkga $1\"\nhelper\n"}))

	data, err := json.Marshal(map[string]any{"packages": index})
	require.NoError(t, err)
	indexPath := filepath.Join(dir, "index.json")
	require.NoError(t, os.WriteFile(indexPath, data, 0644))

	fetcher := artifact.NewFetcher(artifact.Options{})
	ix, err := packages.LoadIndex(context.Background(), fetcher, indexPath)
	require.NoError(t, err)
	return packages.NewInstaller(fetcher, ix, packages.Options{})
}

func newEnv(t *testing.T, installer environment.BulkInstaller) *Environment {
	t.Helper()
	mgr, err := sandbox.NewDirManager(t.TempDir(), sandbox.Options{})
	require.NoError(t, err)

	p, err := NewProvider(Options{Sandboxes: mgr, Installer: installer, CheckIntegrity: true})
	require.NoError(t, err)
	assert.Equal(t, Name, p.Name())

	env, err := p.Acquire(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Close(context.Background()) })
	return env.(*Environment)
}

func bindFile(t *testing.T, env *Environment) string {
	t.Helper()
	target := filepath.Join(t.TempDir(), "canvas.out")
	s, err := surface.New("canvas", surface.KindFile, target)
	require.NoError(t, err)
	require.NoError(t, env.BindSurface(context.Background(), s))
	return target
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestConfigPersistsIntoProgram(t *testing.T) {
	env := newEnv(t, nil)
	ctx := context.Background()

	target := bindFile(t, env)
	require.NoError(t, env.SetConfig(ctx, "VIDEO_DRIVER", "canvas"))

	v, err := env.Getenv(ctx, "VIDEO_DRIVER")
	require.NoError(t, err)
	assert.Equal(t, "canvas", v)

	res, err := env.Execute(ctx, "echo \"driver=$VIDEO_DRIVER\"\n")
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "driver=canvas\n", readFile(t, target))

	var desc surface.Descriptor
	require.NoError(t, json.Unmarshal([]byte(readFile(t, filepath.Join(env.Root(), environment.DescriptorFile))), &desc))
	assert.Equal(t, "canvas", desc.ID)
	assert.Equal(t, surface.KindFile, desc.Kind)
}

func TestConfigValueIsQuoted(t *testing.T) {
	env := newEnv(t, nil)
	ctx := context.Background()

	require.NoError(t, env.SetConfig(ctx, "TITLE", "it's $HOME; rm -rf /"))
	v, err := env.Getenv(ctx, "TITLE")
	require.NoError(t, err)
	assert.Equal(t, "it's $HOME; rm -rf /", v)

	err = env.SetConfig(ctx, "NOT-VALID", "x")
	assert.True(t, errors.Is(err, igniteErrors.ErrInvalidInput))
}

func TestBulkPackagesRunAsCommands(t *testing.T) {
	env := newEnv(t, newInstaller(t))
	ctx := context.Background()

	require.NoError(t, env.LoadPackages(ctx, []string{"pkgA"}, environment.LoadOptions{CheckIntegrity: true}))
	target := bindFile(t, env)
	require.NoError(t, env.SetConfig(ctx, "VIDEO_DRIVER", "webgl"))

	_, err := env.Execute(ctx, "pkga one\n")
	require.NoError(t, err)
	assert.Equal(t, "pkga one\nhelper sees webgl\n", readFile(t, target))
}

func TestPackageManagerInstallsFromIndex(t *testing.T) {
	env := newEnv(t, newInstaller(t))
	ctx := context.Background()

	require.NoError(t, env.Install(ctx, "helper"))
	assert.FileExists(t, filepath.Join(env.Root(), "site", "bin", "helper"))
}

func TestPackageManagerUnknownPackage(t *testing.T) {
	env := newEnv(t, newInstaller(t))

	err := env.Install(context.Background(), "noise")
	var de *igniteErrors.DependencyError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "noise", de.Package)
	assert.Contains(t, de.Error(), "not in package index")
}

func TestPackageManagerWithoutIndex(t *testing.T) {
	env := newEnv(t, nil)

	err := env.Install(context.Background(), "noise")
	assert.True(t, errors.Is(err, igniteErrors.ErrDependency))
	assert.Contains(t, err.Error(), "no package index configured")
}

func TestExecutionFaultCarriesStatusAndDiagnostic(t *testing.T) {
	env := newEnv(t, nil)
	ctx := context.Background()

	res, err := env.Execute(ctx, "echo 'bad things' >&2\nexit 3\n")
	require.Error(t, err)

	var ee *igniteErrors.ExecutionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, 3, ee.ExitCode)
	assert.Equal(t, "bad things", ee.Diagnostic)
	assert.Equal(t, 3, res.ExitCode)

	// the interpreter stays usable after a failed program
	_, err = env.Execute(ctx, "true\n")
	assert.NoError(t, err)
}

func TestHostCommandsAreNotReachable(t *testing.T) {
	env := newEnv(t, nil)

	_, err := env.Execute(context.Background(), "ls /\n")
	var ee *igniteErrors.ExecutionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, exitNotFound, ee.ExitCode)
	assert.Contains(t, ee.Diagnostic, "ls: command not found")
}

func TestSyntaxErrorIsExecutionError(t *testing.T) {
	env := newEnv(t, nil)

	_, err := env.Execute(context.Background(), "if then fi (\n")
	var ee *igniteErrors.ExecutionError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, 2, ee.ExitCode)
}

func TestOutputBeforeBindIsDiscarded(t *testing.T) {
	env := newEnv(t, nil)

	res, err := env.Execute(context.Background(), "echo hidden\n")
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
}

func TestCloseRemovesSandbox(t *testing.T) {
	env := newEnv(t, nil)
	root := env.Root()

	require.NoError(t, env.Close(context.Background()))
	assert.NoDirExists(t, root)

	_, err := env.Execute(context.Background(), "true\n")
	assert.Error(t, err)
}
