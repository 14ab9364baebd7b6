package bootstrap

import (
	"github.com/harunnryd/ignite/internal/environment"
	igniteErrors "github.com/harunnryd/ignite/internal/errors"
)

// Outcome is the final report of a pipeline run.
type Outcome struct {
	RunID string
	State Stage

	// FailedStage and Err are set when State is StageFailed.
	FailedStage Stage
	Err         error

	Result      *environment.Result
	Transitions []Transition
}

func (o *Outcome) Succeeded() bool {
	return o.State == StageCompleted
}

// Phase reports whether a failure happened while preparing the environment
// or inside the handed-off program.
func (o *Outcome) Phase() string {
	return igniteErrors.Phase(o.Err)
}

// ExitCode maps the outcome to a process exit status.
func (o *Outcome) ExitCode() int {
	switch {
	case o.Succeeded():
		return 0
	case o.Result != nil && o.Result.ExitCode > 0:
		return o.Result.ExitCode
	default:
		return 1
	}
}
