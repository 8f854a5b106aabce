// SPDX-License-Identifier: MPL-2.0

package phase

import (
	"errors"
	"fmt"

	"github.com/pkgchan/pkgchan/pkg/recipe"
)

// ErrPhaseFailed is the sentinel error wrapped by PhaseError.
var ErrPhaseFailed = errors.New("phase failed")

// PhaseError reports the phase that aborted a build and why.
type PhaseError struct {
	Recipe recipe.Identity
	Phase  string
	Cause  error
}

// Error implements the error interface.
func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s: phase %q failed: %v", e.Recipe, e.Phase, e.Cause)
}

// Unwrap returns the sentinel and the cause, so errors.Is matches both
// ErrPhaseFailed and e.g. context.Canceled.
func (e *PhaseError) Unwrap() []error {
	return []error{ErrPhaseFailed, e.Cause}
}
