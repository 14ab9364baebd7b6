package packages

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/harunnryd/ignite/internal/artifact"
	igniteErrors "github.com/harunnryd/ignite/internal/errors"
)

// Package is one entry of the lock-style package index.
type Package struct {
	Name     string   `json:"name" yaml:"name"`
	Version  string   `json:"version" yaml:"version"`
	FileName string   `json:"file_name" yaml:"file_name"`
	SHA256   string   `json:"sha256" yaml:"sha256"`
	Depends  []string `json:"depends,omitempty" yaml:"depends,omitempty"`
}

type Index struct {
	// Source is the resolved location the index was read from; archive
	// file names resolve relative to it.
	Source   string             `json:"-"`
	Packages map[string]Package `json:"packages"`
}

func ParseIndex(source string, data []byte) (*Index, error) {
	var ix Index
	if err := json.Unmarshal(data, &ix); err != nil {
		return nil, fmt.Errorf("parse package index %s: %w", source, err)
	}
	ix.Source = source

	normalized := make(map[string]Package, len(ix.Packages))
	for key, pkg := range ix.Packages {
		if pkg.Name == "" {
			pkg.Name = key
		}
		if pkg.FileName == "" {
			return nil, igniteErrors.InvalidInput(fmt.Sprintf("package %q has no file_name", pkg.Name))
		}
		normalized[Canonical(pkg.Name)] = pkg
	}
	ix.Packages = normalized
	return &ix, nil
}

// LoadIndex reads the index through the artifact fetcher so that every
// fetch scheme (file, http, s3) can host it.
func LoadIndex(ctx context.Context, fetcher *artifact.Fetcher, location string) (*Index, error) {
	if strings.TrimSpace(location) == "" {
		return nil, igniteErrors.InvalidInput("packages.index_url is not configured")
	}
	a, err := fetcher.Fetch(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("load package index: %w", err)
	}
	return ParseIndex(a.Source, a.Body)
}

// Canonical folds a package name the way Python package indexes compare them.
func Canonical(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer("_", "-", ".", "-").Replace(name)
}

func (ix *Index) Lookup(name string) (Package, bool) {
	if ix == nil {
		return Package{}, false
	}
	pkg, ok := ix.Packages[Canonical(name)]
	return pkg, ok
}

// Resolve returns the dependency closure of names, dependencies first.
// Each package appears once even when several roots share it.
func (ix *Index) Resolve(names []string) ([]Package, error) {
	var (
		order   []Package
		visited = make(map[string]bool)
		active  = make(map[string]bool)
	)

	var visit func(name, requiredBy string) error
	visit = func(name, requiredBy string) error {
		key := Canonical(name)
		if visited[key] {
			return nil
		}
		if active[key] {
			// cycles are tolerated; the first visit installs the package
			return nil
		}
		pkg, ok := ix.Lookup(name)
		if !ok {
			err := igniteErrors.NotFound("not in package index")
			if requiredBy != "" {
				err = fmt.Errorf("required by %s: %w", requiredBy, err)
			}
			return igniteErrors.Dependency(name, err)
		}

		active[key] = true
		for _, dep := range pkg.Depends {
			if err := visit(dep, pkg.Name); err != nil {
				return err
			}
		}
		active[key] = false
		visited[key] = true
		order = append(order, pkg)
		return nil
	}

	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			return nil, igniteErrors.Dependency(name, igniteErrors.InvalidInput("empty package name"))
		}
		if err := visit(name, ""); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func (ix *Index) List() []Package {
	if ix == nil {
		return nil
	}
	out := make([]Package, 0, len(ix.Packages))
	for _, pkg := range ix.Packages {
		out = append(out, pkg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
