package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypedErrorsMatchSentinels(t *testing.T) {
	cases := []struct {
		err      error
		sentinel error
		category string
		phase    string
	}{
		{&InitializationError{Err: errors.New("boom")}, ErrInitialization, "InitializationError", PhaseSetup},
		{&DependencyError{Package: "noise"}, ErrDependency, "DependencyError", PhaseSetup},
		{&FetchError{Source: "script.py", Status: "Not Found", StatusCode: 404}, ErrFetch, "FetchError", PhaseSetup},
		{&ExecutionError{ExitCode: 1, Diagnostic: "Traceback"}, ErrExecution, "ExecutionError", PhaseProgram},
	}

	for _, tc := range cases {
		wrapped := fmt.Errorf("stage: %w", tc.err)
		assert.True(t, errors.Is(wrapped, tc.sentinel), "%T should match its sentinel", tc.err)
		assert.Equal(t, tc.category, Category(wrapped))
		assert.Equal(t, tc.phase, Phase(wrapped))
	}
}

func TestDependencyKeepsInnermostPackage(t *testing.T) {
	inner := Dependency("noise", errors.New("registry lookup failed"))
	outer := Dependency("pkgA", fmt.Errorf("install: %w", inner))

	var de *DependencyError
	require.True(t, errors.As(outer, &de))
	assert.Equal(t, "noise", de.Package)
}

func TestInitializationDoesNotDoubleWrap(t *testing.T) {
	assert.Nil(t, Initialization(nil))

	first := Initialization(errors.New("asset load failure"))
	second := Initialization(first)
	assert.Same(t, first, second)
}

func TestFetchErrorMessageCarriesStatus(t *testing.T) {
	err := &FetchError{Source: "script.py", Status: "Not Found", StatusCode: 404}
	assert.Contains(t, err.Error(), "Not Found")
	assert.Contains(t, err.Error(), "script.py")
}

func TestPhaseAndCategoryOfNil(t *testing.T) {
	assert.Equal(t, "", Phase(nil))
	assert.Equal(t, "", Category(nil))
	assert.Equal(t, "Unknown", Category(errors.New("other")))
}

func TestHelpers(t *testing.T) {
	assert.True(t, IsCategory(NotFound("surface canvas"), ErrNotFound))
	assert.True(t, IsCategory(InvalidInput("empty source"), ErrInvalidInput))
	assert.False(t, IsCategory(nil, ErrNotFound))
	assert.Nil(t, Wrap(nil, "ctx"))
	assert.EqualError(t, Wrap(errors.New("x"), "ctx"), "ctx: x")
}
