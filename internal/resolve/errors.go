// SPDX-License-Identifier: MPL-2.0

package resolve

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pkgchan/pkgchan/pkg/recipe"
)

var (
	// ErrCyclicDependency is the sentinel error wrapped by CyclicDependencyError.
	ErrCyclicDependency = errors.New("cyclic dependency")

	// ErrUnresolvedInput is the sentinel error wrapped by UnresolvedInputError.
	ErrUnresolvedInput = errors.New("unresolved input")

	// errAbandoned ends a shared build whose waiters have all gone.
	errAbandoned = errors.New("build abandoned by all waiters")
)

type (
	// CyclicDependencyError reports a cycle in the input graph.
	CyclicDependencyError struct {
		// Cycle is a closed path: the first and last identity are equal.
		Cycle []recipe.Identity
	}

	// UnresolvedInputError reports an input that is unknown or failed to build.
	UnresolvedInputError struct {
		Recipe recipe.Identity
		Input  recipe.InputRef
		Cause  error
	}
)

// Error implements the error interface.
func (e *CyclicDependencyError) Error() string {
	parts := make([]string, len(e.Cycle))
	for i, id := range e.Cycle {
		parts[i] = id.String()
	}
	return "cyclic dependency: " + strings.Join(parts, " -> ")
}

// Unwrap returns ErrCyclicDependency for errors.Is() compatibility.
func (e *CyclicDependencyError) Unwrap() error { return ErrCyclicDependency }

// Error implements the error interface.
func (e *UnresolvedInputError) Error() string {
	return fmt.Sprintf("%s: input %s: %v", e.Recipe, e.Input, e.Cause)
}

// Unwrap returns both the sentinel and the cause, so errors.Is matches
// ErrUnresolvedInput as well as whatever made the input unbuildable.
func (e *UnresolvedInputError) Unwrap() []error {
	return []error{ErrUnresolvedInput, e.Cause}
}
