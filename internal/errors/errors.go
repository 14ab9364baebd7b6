package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the bootstrap taxonomy
var (
	// ErrInitialization - sandbox could not be acquired or prepared (fatal, nothing else runs)
	ErrInitialization = errors.New("initialization error")

	// ErrDependency - a named package could not be resolved or installed
	ErrDependency = errors.New("dependency error")

	// ErrFetch - program artifact retrieval failed or returned a non-success status
	ErrFetch = errors.New("fetch error")

	// ErrExecution - the handed-off program faulted inside the environment
	ErrExecution = errors.New("execution error")

	// ErrNotFound - resource not found (unknown surface, backend or package)
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput - invalid input (bad plan, malformed source or config)
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyStarted - an orchestrator pipeline runs at most once
	ErrAlreadyStarted = errors.New("pipeline already started")
)

// InitializationError wraps any failure while acquiring or binding the environment.
type InitializationError struct {
	Err error
}

func (e *InitializationError) Error() string {
	if e.Err == nil {
		return ErrInitialization.Error()
	}
	return fmt.Sprintf("%s: %v", ErrInitialization, e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }

func (e *InitializationError) Is(target error) bool { return target == ErrInitialization }

// DependencyError names the package that could not be installed.
type DependencyError struct {
	Package string
	Err     error
}

func (e *DependencyError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: package %q", ErrDependency, e.Package)
	}
	return fmt.Sprintf("%s: package %q: %v", ErrDependency, e.Package, e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }

func (e *DependencyError) Is(target error) bool { return target == ErrDependency }

// FetchError carries the transport status description of a failed retrieval.
type FetchError struct {
	Source     string
	Status     string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("%s: %s", ErrFetch, e.Source)
	if e.Status != "" {
		msg += ": " + e.Status
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// ExecutionError captures whatever diagnostic the environment surfaced.
type ExecutionError struct {
	ExitCode   int
	Diagnostic string
	Err        error
}

func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("%s: exit code %d", ErrExecution, e.ExitCode)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Diagnostic != "" {
		msg += ": " + e.Diagnostic
	}
	return msg
}

func (e *ExecutionError) Unwrap() error { return e.Err }

func (e *ExecutionError) Is(target error) bool { return target == ErrExecution }

// Initialization wraps err as an initialization failure
func Initialization(err error) error {
	if err == nil {
		return nil
	}
	var ie *InitializationError
	if errors.As(err, &ie) {
		return err
	}
	return &InitializationError{Err: err}
}

// Dependency wraps err as a failure to install pkg
func Dependency(pkg string, err error) error {
	var de *DependencyError
	if errors.As(err, &de) {
		return err
	}
	return &DependencyError{Package: pkg, Err: err}
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsCategory checks if error belongs to specific category
func IsCategory(err error, category error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, category)
}

// NotFound wraps error as not found
func NotFound(message string) error {
	return fmt.Errorf("%s: %w", message, ErrNotFound)
}

// InvalidInput wraps error as invalid input
func InvalidInput(message string) error {
	return fmt.Errorf("%s: %w", message, ErrInvalidInput)
}

const (
	PhaseSetup   = "setup"
	PhaseProgram = "program"
)

// Phase tells environment preparation failures apart from failures of the
// handed-off program itself.
func Phase(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrExecution):
		return PhaseProgram
	default:
		return PhaseSetup
	}
}

// Category returns the taxonomy name for an error
func Category(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInitialization):
		return "InitializationError"
	case errors.Is(err, ErrDependency):
		return "DependencyError"
	case errors.Is(err, ErrFetch):
		return "FetchError"
	case errors.Is(err, ErrExecution):
		return "ExecutionError"
	default:
		return "Unknown"
	}
}
