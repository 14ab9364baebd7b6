package sandbox

import (
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

type Sandbox struct {
	ID        string
	Owner     string
	RootPath  string
	State     SandboxState
	CreatedAt time.Time

	lock *flock.Flock
}

type SandboxState string

const (
	SandboxStateSetup    SandboxState = "setup"
	SandboxStateReady    SandboxState = "ready"
	SandboxStateTeardown SandboxState = "teardown"
	SandboxStateError    SandboxState = "error"
)

const (
	siteDirName    = "site"
	programDirName = "program"
	lockFileName   = "sandbox.lock"
)

// SiteDir holds installed packages; it is on the interpreter search path.
func (s *Sandbox) SiteDir() string {
	return filepath.Join(s.RootPath, siteDirName)
}

// ProgramDir holds the handed-off program body.
func (s *Sandbox) ProgramDir() string {
	return filepath.Join(s.RootPath, programDirName)
}

func (s *Sandbox) Path(elem ...string) string {
	return filepath.Join(append([]string{s.RootPath}, elem...)...)
}
