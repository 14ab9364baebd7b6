package bootstrap

import "time"

// Stage is a state of the bootstrap pipeline.
type Stage string

const (
	StageUnstarted              Stage = "Unstarted"
	StageInitializing           Stage = "Initializing"
	StageInstallingDependencies Stage = "InstallingDependencies"
	StageBindingOutput          Stage = "BindingOutput"
	StageFetchingArtifact       Stage = "FetchingArtifact"
	StageExecuting              Stage = "Executing"
	StageCompleted              Stage = "Completed"
	StageFailed                 Stage = "Failed"
)

// Stages lists the working stages in the order they run.
var Stages = []Stage{
	StageInitializing,
	StageInstallingDependencies,
	StageBindingOutput,
	StageFetchingArtifact,
	StageExecuting,
}

// Terminal reports whether s is absorbing: Completed and Failed admit no
// further transitions.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

type Transition struct {
	From Stage
	To   Stage
	At   time.Time
}

// TransitionFunc observes every state change of a pipeline.
type TransitionFunc func(t Transition)
