// SPDX-License-Identifier: MPL-2.0

package recipe

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRecipe is the sentinel error wrapped by ValidationError.
var ErrInvalidRecipe = errors.New("invalid recipe")

// ValidationError is returned when a recipe definition is malformed.
// It wraps ErrInvalidRecipe for errors.Is() compatibility and collects every
// field-level violation found, not only the first one.
type ValidationError struct {
	Recipe      Identity
	FieldErrors []error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.FieldErrors))
	for i, err := range e.FieldErrors {
		msgs[i] = err.Error()
	}
	name := e.Recipe.String()
	if e.Recipe.Name == "" {
		name = "<unnamed>"
	}
	if len(msgs) == 1 {
		return fmt.Sprintf("invalid recipe %s: %s", name, msgs[0])
	}
	return fmt.Sprintf("invalid recipe %s: %d field error(s):\n  %s", name, len(msgs), strings.Join(msgs, "\n  "))
}

// Unwrap returns ErrInvalidRecipe for errors.Is() compatibility.
func (e *ValidationError) Unwrap() error { return ErrInvalidRecipe }

// Is reports whether target is any of the collected field errors' sentinels,
// so errors.Is(err, ErrUnknownPhase) works on a ValidationError.
func (e *ValidationError) Is(target error) bool {
	for _, fe := range e.FieldErrors {
		if errors.Is(fe, target) {
			return true
		}
	}
	return false
}
