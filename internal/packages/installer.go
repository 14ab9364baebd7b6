package packages

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/harunnryd/ignite/internal/artifact"
	igniteErrors "github.com/harunnryd/ignite/internal/errors"

	"github.com/natefinch/atomic"
)

type Options struct {
	// CacheDir keeps downloaded archives keyed by checksum. Empty disables caching.
	CacheDir string
}

// Installer is the bulk dependency channel: it places verified archives
// directly into an environment's site directory.
type Installer struct {
	fetcher  *artifact.Fetcher
	cacheDir string

	mu       sync.Mutex
	index    *Index
	location string
}

func NewInstaller(fetcher *artifact.Fetcher, index *Index, opts Options) *Installer {
	return &Installer{
		fetcher:  fetcher,
		index:    index,
		cacheDir: opts.CacheDir,
	}
}

// NewIndexedInstaller defers loading the index at location until the first
// Install, so index retrieval failures surface as dependency failures.
func NewIndexedInstaller(fetcher *artifact.Fetcher, location string, opts Options) *Installer {
	return &Installer{
		fetcher:  fetcher,
		location: location,
		cacheDir: opts.CacheDir,
	}
}

func (in *Installer) Index() *Index {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.index
}

// LoadIndex returns the index, reading it on first use.
func (in *Installer) LoadIndex(ctx context.Context) (*Index, error) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.index != nil {
		return in.index, nil
	}
	if in.location == "" {
		return nil, fmt.Errorf("no package index configured")
	}
	ix, err := LoadIndex(ctx, in.fetcher, in.location)
	if err != nil {
		return nil, err
	}
	in.index = ix
	return ix, nil
}

// Install resolves names against the index and extracts every package of
// the closure into dest. Packages installed before a failure stay in place.
func (in *Installer) Install(ctx context.Context, names []string, dest string, checkIntegrity bool) ([]Package, error) {
	index, err := in.LoadIndex(ctx)
	if err != nil {
		return nil, igniteErrors.Dependency(strings.Join(names, ","), err)
	}

	pkgs, err := index.Resolve(names)
	if err != nil {
		return nil, err
	}

	installed := make([]Package, 0, len(pkgs))
	for _, pkg := range pkgs {
		if err := ctx.Err(); err != nil {
			return installed, igniteErrors.Dependency(pkg.Name, err)
		}
		if err := in.installOne(ctx, index.Source, pkg, dest, checkIntegrity); err != nil {
			return installed, igniteErrors.Dependency(pkg.Name, err)
		}
		slog.Debug("Package installed", "package", pkg.Name, "version", pkg.Version, "dest", dest)
		installed = append(installed, pkg)
	}
	return installed, nil
}

func (in *Installer) installOne(ctx context.Context, source string, pkg Package, dest string, checkIntegrity bool) error {
	data, cached := in.readCache(pkg)
	if !cached {
		a, err := in.fetcher.FetchFrom(ctx, source, pkg.FileName)
		if err != nil {
			return err
		}
		data = a.Body
	}

	if checkIntegrity {
		if err := Verify(pkg, data); err != nil {
			return err
		}
	}

	if !cached {
		in.writeCache(pkg, data)
	}

	return Extract(data, pkg.FileName, dest)
}

// Verify compares the SHA-256 digest of data with the index entry.
func Verify(pkg Package, data []byte) error {
	if pkg.SHA256 == "" {
		return fmt.Errorf("integrity check: no sha256 recorded for %s", pkg.FileName)
	}
	sum := sha256.Sum256(data)
	got := hex.EncodeToString(sum[:])
	if !strings.EqualFold(got, pkg.SHA256) {
		return fmt.Errorf("integrity check: %s has sha256 %s, want %s", pkg.FileName, got, pkg.SHA256)
	}
	return nil
}

func (in *Installer) cachePath(pkg Package) string {
	if in.cacheDir == "" || pkg.SHA256 == "" {
		return ""
	}
	return filepath.Join(in.cacheDir, strings.ToLower(pkg.SHA256)+"-"+path.Base(pkg.FileName))
}

func (in *Installer) readCache(pkg Package) ([]byte, bool) {
	p := in.cachePath(pkg)
	if p == "" {
		return nil, false
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, false
	}
	// A cache entry is only trusted when it still matches its key.
	if Verify(pkg, data) != nil {
		return nil, false
	}
	return data, true
}

func (in *Installer) writeCache(pkg Package, data []byte) {
	p := in.cachePath(pkg)
	if p == "" {
		return
	}
	if err := os.MkdirAll(in.cacheDir, 0755); err != nil {
		slog.Warn("Package cache unavailable", "dir", in.cacheDir, "error", err)
		return
	}
	if err := atomic.WriteFile(p, bytes.NewReader(data)); err != nil {
		slog.Warn("Failed to cache package archive", "package", pkg.Name, "error", err)
	}
}
