package surface

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

type Kind string

const (
	KindTerminal Kind = "terminal"
	KindFile     Kind = "file"
	KindNull     Kind = "null"
)

// Surface is a host-side drawable region. Environments hold it by reference;
// only the owning Registry opens and closes the underlying writer.
type Surface struct {
	ID     string
	Kind   Kind
	Target string

	mu     sync.Mutex
	writer io.Writer
	closer io.Closer
	stdout io.Writer
}

// Descriptor is the form of a surface handed to code running inside an environment.
type Descriptor struct {
	ID     string `json:"id"`
	Kind   Kind   `json:"kind"`
	Target string `json:"target,omitempty"`
}

func New(id string, kind Kind, target string) (*Surface, error) {
	if id == "" {
		return nil, fmt.Errorf("surface id is required")
	}
	switch kind {
	case KindTerminal, KindNull:
	case KindFile:
		if target == "" {
			return nil, fmt.Errorf("surface %s: file target is required", id)
		}
	default:
		return nil, fmt.Errorf("surface %s: unsupported kind %q", id, kind)
	}
	return &Surface{ID: id, Kind: kind, Target: target, stdout: os.Stdout}, nil
}

func (s *Surface) Descriptor() Descriptor {
	return Descriptor{ID: s.ID, Kind: s.Kind, Target: s.Target}
}

func (s *Surface) DescriptorJSON() ([]byte, error) {
	return json.MarshalIndent(s.Descriptor(), "", "  ")
}

// Writer opens the surface on first use and returns the same writer afterwards.
func (s *Surface) Writer() (io.Writer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer != nil {
		return s.writer, nil
	}

	switch s.Kind {
	case KindTerminal:
		s.writer = s.stdout
	case KindNull:
		s.writer = io.Discard
	case KindFile:
		if err := os.MkdirAll(filepath.Dir(s.Target), 0755); err != nil {
			return nil, fmt.Errorf("create surface directory: %w", err)
		}
		f, err := os.OpenFile(s.Target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("open surface %s: %w", s.ID, err)
		}
		s.writer = &lockedWriter{w: f}
		s.closer = f
	}
	return s.writer, nil
}

func (s *Surface) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.closer != nil {
		err = s.closer.Close()
	}
	s.writer = nil
	s.closer = nil
	return err
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
