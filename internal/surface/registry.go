package surface

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/harunnryd/ignite/internal/config"
	igniteErrors "github.com/harunnryd/ignite/internal/errors"
)

type Registry struct {
	mu       sync.RWMutex
	surfaces map[string]*Surface
}

func NewRegistry() *Registry {
	return &Registry{surfaces: make(map[string]*Surface)}
}

func NewRegistryFromConfig(entries []config.SurfaceConfig) (*Registry, error) {
	r := NewRegistry()
	for _, e := range entries {
		s, err := New(e.ID, Kind(e.Kind), e.Target)
		if err != nil {
			return nil, err
		}
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(s *Surface) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.surfaces[s.ID]; exists {
		return fmt.Errorf("surface %s already registered", s.ID)
	}
	r.surfaces[s.ID] = s
	return nil
}

// Lookup returns the shared surface registered under id.
func (r *Registry) Lookup(id string) (*Surface, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.surfaces[id]
	if !ok {
		return nil, igniteErrors.NotFound(fmt.Sprintf("surface %q", id))
	}
	return s, nil
}

func (r *Registry) List() []*Surface {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Surface, 0, len(r.surfaces))
	for _, s := range r.surfaces {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) Close() error {
	var errs []error
	for _, s := range r.List() {
		if err := s.close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
