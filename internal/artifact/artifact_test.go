package artifact

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/harunnryd/ignite/internal/config"
	igniteErrors "github.com/harunnryd/ignite/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAssetServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/app/script.py", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("print(1)"))
	})
	mux.HandleFunc("/app/empty.py", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/app/big.py", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchHTTPRelativeToBase(t *testing.T) {
	srv := newAssetServer(t)
	f := NewFetcher(Options{Base: srv.URL + "/app/index.html"})

	a, err := f.Fetch(context.Background(), "script.py")
	require.NoError(t, err)
	assert.Equal(t, "print(1)", a.Text())
	assert.Equal(t, srv.URL+"/app/script.py", a.Source)
}

func TestFetchHTTPNotFoundIsFetchError(t *testing.T) {
	srv := newAssetServer(t)
	f := NewFetcher(Options{Base: srv.URL + "/app/"})

	a, err := f.Fetch(context.Background(), "missing.py")
	require.Error(t, err)
	assert.Nil(t, a)

	var fe *igniteErrors.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "Not Found", fe.Status)
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.Equal(t, srv.URL+"/app/missing.py", fe.Source)
	assert.True(t, errors.Is(err, igniteErrors.ErrFetch))
}

func TestFetchEmptyBodyIsNeverReturned(t *testing.T) {
	srv := newAssetServer(t)
	f := NewFetcher(Options{Base: srv.URL + "/app/"})

	_, err := f.Fetch(context.Background(), "empty.py")
	var fe *igniteErrors.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "empty artifact", fe.Status)
}

func TestFetchEnforcesMaxBytes(t *testing.T) {
	srv := newAssetServer(t)
	f := NewFetcher(Options{Base: srv.URL + "/app/", MaxBytes: 16})

	_, err := f.Fetch(context.Background(), "big.py")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds 16 bytes")

	a, err := f.Fetch(context.Background(), "script.py")
	require.NoError(t, err)
	assert.Equal(t, "print(1)", a.Text())
}

func TestFetchLocalAssets(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "script.py"), []byte("print(1)"), 0644))

	f := NewFetcher(Options{Base: dir})

	a, err := f.Fetch(context.Background(), "script.py")
	require.NoError(t, err)
	assert.Equal(t, "print(1)", a.Text())

	_, err = f.Fetch(context.Background(), "missing.py")
	var fe *igniteErrors.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "Not Found", fe.Status)

	abs := filepath.Join(dir, "script.py")
	a, err = NewFetcher(Options{}).Fetch(context.Background(), abs)
	require.NoError(t, err)
	assert.Equal(t, "print(1)", a.Text())

	for _, name := range []string{"frame#1.py", "what?.py", "100%.py", "sub dir/a b.py"} {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("print('"+name+"')"), 0644))

		a, err := f.Fetch(context.Background(), name)
		require.NoError(t, err, name)
		assert.Equal(t, "print('"+name+"')", a.Text(), name)

		a, err = NewFetcher(Options{}).Fetch(context.Background(), path)
		require.NoError(t, err, name)
		assert.Equal(t, "print('"+name+"')", a.Text(), name)
	}
}

func TestFetchUnsupportedScheme(t *testing.T) {
	_, err := NewFetcher(Options{}).Fetch(context.Background(), "gopher://example.com/x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, igniteErrors.ErrFetch))
	assert.Contains(t, err.Error(), "unsupported scheme")
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		base, ref, want string
	}{
		{"https://example.com/app/index.html", "script.py", "https://example.com/app/script.py"},
		{"https://example.com/app/", "lib/noise.whl", "https://example.com/app/lib/noise.whl"},
		{"s3://bucket/packages/index.json", "noise.whl", "s3://bucket/packages/noise.whl"},
		{"", "https://cdn.example.com/x.py", "https://cdn.example.com/x.py"},
		{dir, "script.py", "file://" + filepath.ToSlash(dir) + "/script.py"},
		{filepath.Join(dir, "index.json"), "noise.whl", "file://" + filepath.ToSlash(dir) + "/noise.whl"},
		{dir, "lib/../script.py", "file://" + filepath.ToSlash(dir) + "/script.py"},
	}
	for _, tc := range cases {
		got, err := Resolve(tc.base, tc.ref)
		require.NoError(t, err, tc.ref)
		assert.Equal(t, tc.want, got.String(), "%s + %s", tc.base, tc.ref)
	}

	got, err := Resolve(dir, "frame#1.py")
	require.NoError(t, err)
	assert.Equal(t, filepath.ToSlash(filepath.Join(dir, "frame#1.py")), got.Path)
	assert.Empty(t, got.Fragment)

	_, err = Resolve("", "  ")
	assert.True(t, errors.Is(err, igniteErrors.ErrInvalidInput))
}

func TestS3SourceRequiresEndpoint(t *testing.T) {
	f := NewFetcher(Options{}, NewS3Source(config.S3Config{}))

	_, err := f.Fetch(context.Background(), "s3://bucket/script.py")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint is required")
}

func TestS3SourceMissingObjectIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	endpoint := strings.TrimPrefix(srv.URL, "http://")
	f := NewFetcher(Options{}, NewS3Source(config.S3Config{
		Endpoint:  endpoint,
		AccessKey: "ignite",
		SecretKey: "ignite-secret",
		Region:    "us-east-1",
	}))

	_, err := f.Fetch(context.Background(), "s3://programs/script.py")
	var fe *igniteErrors.FetchError
	require.True(t, errors.As(err, &fe), "got %v", err)
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.Equal(t, "Not Found", fe.Status)
}

func TestS3SourceRejectsLocationWithoutKey(t *testing.T) {
	src := NewS3Source(config.S3Config{Endpoint: "localhost:9000", Region: "us-east-1"})
	f := NewFetcher(Options{}, src)

	_, err := f.Fetch(context.Background(), "s3://bucket-only")
	require.Error(t, err)
	assert.True(t, errors.Is(err, igniteErrors.ErrInvalidInput))
}
