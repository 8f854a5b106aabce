// SPDX-License-Identifier: MPL-2.0

package build

import (
	"errors"
	"fmt"

	"github.com/pkgchan/pkgchan/pkg/recipe"
)

// ErrBuildFailed is the sentinel wrapped by every BuildError.
var ErrBuildFailed = errors.New("build failed")

// BuildError reports the recipe whose build failed and why.
type BuildError struct {
	Recipe recipe.Identity
	// Stage is one of "fetch", "phases", "install" or "commit".
	Stage string
	Cause error
}

// Error implements the error interface.
func (e *BuildError) Error() string {
	return fmt.Sprintf("building %s (%s): %v", e.Recipe, e.Stage, e.Cause)
}

// Unwrap returns ErrBuildFailed and the underlying cause.
func (e *BuildError) Unwrap() []error { return []error{ErrBuildFailed, e.Cause} }
