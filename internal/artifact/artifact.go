package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	igniteErrors "github.com/harunnryd/ignite/internal/errors"
)

// Artifact is an immutable program body retrieved from a content source.
type Artifact struct {
	Source string
	Body   []byte
}

func (a *Artifact) Text() string {
	return string(a.Body)
}

// Source retrieves the body behind a resolved location. Implementations
// report non-success responses as *errors.FetchError.
type Source interface {
	Scheme() []string
	Open(ctx context.Context, loc *url.URL) (io.ReadCloser, error)
}

type Options struct {
	Base     string
	Timeout  time.Duration
	MaxBytes int64
}

type Fetcher struct {
	base     string
	timeout  time.Duration
	maxBytes int64
	sources  map[string]Source
}

func NewFetcher(opts Options, sources ...Source) *Fetcher {
	f := &Fetcher{
		base:     opts.Base,
		timeout:  opts.Timeout,
		maxBytes: opts.MaxBytes,
		sources:  make(map[string]Source),
	}
	f.Register(NewFileSource())
	f.Register(NewHTTPSource(nil))
	for _, s := range sources {
		f.Register(s)
	}
	return f
}

func (f *Fetcher) Register(s Source) {
	for _, scheme := range s.Scheme() {
		f.sources[scheme] = s
	}
}

// Fetch retrieves ref resolved against the configured base.
func (f *Fetcher) Fetch(ctx context.Context, ref string) (*Artifact, error) {
	return f.FetchFrom(ctx, f.base, ref)
}

// FetchFrom retrieves ref resolved relative to base, the way a browser
// resolves a relative fetch against the page location.
func (f *Fetcher) FetchFrom(ctx context.Context, base, ref string) (*Artifact, error) {
	loc, err := Resolve(base, ref)
	if err != nil {
		return nil, &igniteErrors.FetchError{Source: ref, Err: err}
	}
	source := loc.String()

	src, ok := f.sources[loc.Scheme]
	if !ok {
		return nil, &igniteErrors.FetchError{Source: source, Err: fmt.Errorf("unsupported scheme %q", loc.Scheme)}
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	body, err := src.Open(ctx, loc)
	if err != nil {
		var fe *igniteErrors.FetchError
		if errors.As(err, &fe) {
			if fe.Source == "" {
				fe.Source = source
			}
			return nil, fe
		}
		return nil, &igniteErrors.FetchError{Source: source, Err: err}
	}
	defer body.Close()

	var r io.Reader = body
	if f.maxBytes > 0 {
		r = io.LimitReader(body, f.maxBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &igniteErrors.FetchError{Source: source, Err: fmt.Errorf("read body: %w", err)}
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, &igniteErrors.FetchError{Source: source, Status: fmt.Sprintf("artifact exceeds %d bytes", f.maxBytes)}
	}
	if len(data) == 0 {
		return nil, &igniteErrors.FetchError{Source: source, Status: "empty artifact"}
	}

	return &Artifact{Source: source, Body: data}, nil
}

// Resolve turns ref into an absolute location. References that carry a
// scheme are used as-is; bare paths resolve against base, which may be a
// URL or a local directory or file.
func Resolve(base, ref string) (*url.URL, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, igniteErrors.InvalidInput("empty source")
	}

	if strings.Contains(ref, "://") {
		return url.Parse(ref)
	}

	baseURL, err := baseLocation(base)
	if err != nil {
		return nil, err
	}

	// Local references are paths, not URL syntax: '#', '?' and '%' are
	// ordinary file name characters.
	if baseURL.Scheme == "file" {
		if filepath.IsAbs(ref) {
			return &url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Clean(ref))}, nil
		}
		dir := filepath.FromSlash(baseURL.Path)
		if !strings.HasSuffix(baseURL.Path, "/") {
			dir = filepath.Dir(dir)
		}
		return &url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Join(dir, ref))}, nil
	}

	rel, err := url.Parse(filepath.ToSlash(ref))
	if err != nil {
		return nil, err
	}
	return baseURL.ResolveReference(rel), nil
}

func baseLocation(base string) (*url.URL, error) {
	base = strings.TrimSpace(base)
	if strings.Contains(base, "://") {
		return url.Parse(base)
	}

	if base == "" {
		base = "."
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, err
	}
	p := filepath.ToSlash(abs)
	if info, err := os.Stat(abs); err == nil && info.IsDir() && !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return &url.URL{Scheme: "file", Path: p}, nil
}
