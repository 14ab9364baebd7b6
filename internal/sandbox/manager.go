package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/oklog/ulid/v2"
)

type SandboxManager interface {
	Setup(ctx context.Context, owner string) (*Sandbox, error)
	Teardown(sb *Sandbox) error
}

type Options struct {
	LockTimeout time.Duration
	LockRetry   time.Duration
	Keep        bool
}

// DirManager hands out sandbox directories under a base path. Each sandbox is
// guarded by an exclusive file lock for as long as it is set up.
type DirManager struct {
	mu        sync.RWMutex
	sandboxes map[string]*Sandbox
	baseDir   string
	opts      Options
}

func NewDirManager(baseDir string, opts Options) (*DirManager, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".ignite", "sandboxes")
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 5 * time.Second
	}
	if opts.LockRetry <= 0 {
		opts.LockRetry = 50 * time.Millisecond
	}

	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sandbox base directory: %w", err)
	}

	return &DirManager{
		sandboxes: make(map[string]*Sandbox),
		baseDir:   baseDir,
		opts:      opts,
	}, nil
}

func (m *DirManager) BaseDir() string {
	return m.baseDir
}

func (m *DirManager) Setup(ctx context.Context, owner string) (*Sandbox, error) {
	if owner == "" {
		owner = "default"
	}

	id := ulid.Make().String()
	root := filepath.Join(m.baseDir, owner, id)

	sb := &Sandbox{
		ID:        id,
		Owner:     owner,
		RootPath:  root,
		State:     SandboxStateSetup,
		CreatedAt: time.Now(),
	}

	for _, dir := range []string{root, sb.SiteDir(), sb.ProgramDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create sandbox directory: %w", err)
		}
	}

	lock := flock.New(filepath.Join(root, lockFileName))
	lockCtx, cancel := context.WithTimeout(ctx, m.opts.LockTimeout)
	defer cancel()

	locked, err := lock.TryLockContext(lockCtx, m.opts.LockRetry)
	if err != nil || !locked {
		_ = os.RemoveAll(root)
		if err == nil {
			err = fmt.Errorf("lock held by another owner")
		}
		return nil, fmt.Errorf("lock sandbox %s: %w", id, err)
	}
	sb.lock = lock
	sb.State = SandboxStateReady

	m.mu.Lock()
	m.sandboxes[id] = sb
	m.mu.Unlock()

	slog.Info("Sandbox created", "sandbox_id", id, "path", root)
	return sb, nil
}

func (m *DirManager) Teardown(sb *Sandbox) error {
	if sb == nil {
		return nil
	}

	m.mu.Lock()
	delete(m.sandboxes, sb.ID)
	m.mu.Unlock()

	sb.State = SandboxStateTeardown
	if sb.lock != nil {
		if err := sb.lock.Unlock(); err != nil {
			slog.Warn("Failed to release sandbox lock", "sandbox_id", sb.ID, "error", err)
		}
		sb.lock = nil
	}

	if m.opts.Keep {
		slog.Info("Sandbox kept", "sandbox_id", sb.ID, "path", sb.RootPath)
		return nil
	}

	if err := os.RemoveAll(sb.RootPath); err != nil {
		sb.State = SandboxStateError
		slog.Error("Failed to remove sandbox directory", "error", err, "path", sb.RootPath)
		return err
	}
	slog.Info("Sandbox removed", "sandbox_id", sb.ID)
	return nil
}

// TeardownAll releases every sandbox still set up, such as one whose
// environment was never closed after an interrupted run.
func (m *DirManager) TeardownAll() error {
	m.mu.RLock()
	active := make([]*Sandbox, 0, len(m.sandboxes))
	for _, sb := range m.sandboxes {
		active = append(active, sb)
	}
	m.mu.RUnlock()

	var errs []error
	for _, sb := range active {
		if err := m.Teardown(sb); err != nil {
			errs = append(errs, fmt.Errorf("teardown %s: %w", sb.ID, err))
		}
	}
	return errors.Join(errs...)
}

// Locked reports whether some holder currently owns the sandbox lock at root.
func Locked(root string) (bool, error) {
	probe := flock.New(filepath.Join(root, lockFileName))
	ok, err := probe.TryLock()
	if err != nil {
		return false, err
	}
	if ok {
		_ = probe.Unlock()
		return false, nil
	}
	return true, nil
}
