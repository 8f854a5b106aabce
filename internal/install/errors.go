// SPDX-License-Identifier: MPL-2.0

package install

import (
	"errors"
	"fmt"
)

var (
	// ErrPathEscape reports a source or destination outside its root.
	ErrPathEscape = errors.New("path escapes root")

	// ErrSourceMissing reports an entry whose source does not exist in staging.
	ErrSourceMissing = errors.New("install source missing")

	// ErrStagingDiscarded reports a symlink entry in a build whose staging
	// tree is removed afterwards, which would leave every link dangling.
	ErrStagingDiscarded = errors.New("symlink install needs a kept staging tree")
)

// InstallPlanError reports the install-plan entry that could not be applied.
type InstallPlanError struct {
	// Entry is the index of the entry in the plan.
	Entry  int
	Source string
	Dest   string
	// Reason is ErrPathEscape, ErrSourceMissing or ErrStagingDiscarded.
	Reason error
	Detail string
}

// Error implements the error interface.
func (e *InstallPlanError) Error() string {
	msg := fmt.Sprintf("install[%d] (%s -> %s): %v", e.Entry, e.Source, e.Dest, e.Reason)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Unwrap returns Reason for errors.Is() compatibility.
func (e *InstallPlanError) Unwrap() error { return e.Reason }
