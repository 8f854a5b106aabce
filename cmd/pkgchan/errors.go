// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pkgchan/pkgchan/internal/build"
	"github.com/pkgchan/pkgchan/internal/channel"
	"github.com/pkgchan/pkgchan/internal/config"
	"github.com/pkgchan/pkgchan/internal/fetch"
	"github.com/pkgchan/pkgchan/internal/install"
	"github.com/pkgchan/pkgchan/internal/issue"
	"github.com/pkgchan/pkgchan/internal/phase"
	"github.com/pkgchan/pkgchan/internal/resolve"
	"github.com/pkgchan/pkgchan/pkg/recipe"
	"github.com/pkgchan/pkgchan/pkg/types"
)

var errNoChannels = errors.New("no channel files found")

// errorClass maps a sentinel to its catalog entry and exit code. Order
// matters: the first match wins, so specific sentinels come before the
// errors that wrap them.
type errorClass struct {
	target error
	issue  issue.Id
	code   types.ExitCode
}

var errorClasses = []errorClass{
	{fetch.ErrChecksumMismatch, issue.ChecksumMismatchId, types.ExitFetchFailed},
	{fetch.ErrFetch, issue.FetchFailedId, types.ExitFetchFailed},
	{resolve.ErrCyclicDependency, issue.DependencyCycleId, types.ExitInvalid},
	{phase.ErrPhaseFailed, issue.PhaseFailedId, types.ExitBuildFailed},
	{install.ErrPathEscape, issue.InstallPlanFailedId, types.ExitBuildFailed},
	{install.ErrSourceMissing, issue.InstallPlanFailedId, types.ExitBuildFailed},
	{install.ErrStagingDiscarded, issue.InstallPlanFailedId, types.ExitBuildFailed},
	{resolve.ErrUnresolvedInput, issue.UnresolvedInputId, types.ExitBuildFailed},
	{recipe.ErrRecipeNotFound, issue.RecipeNotFoundId, types.ExitInvalid},
	{recipe.ErrInvalidRecipe, issue.InvalidRecipeId, types.ExitInvalid},
	{channel.ErrInvalidChannel, issue.ChannelParseErrorId, types.ExitInvalid},
	{config.ErrInvalidConfig, issue.ConfigLoadFailedId, types.ExitInvalid},
	{errNoChannels, issue.ChannelNotFoundId, types.ExitInvalid},
	{os.ErrPermission, issue.PermissionDeniedId, types.ExitFailure},
	{build.ErrBuildFailed, 0, types.ExitBuildFailed},
}

// issueExitCodes gives the exit code of errors that carry only a catalog id.
var issueExitCodes = map[issue.Id]types.ExitCode{
	issue.ChannelNotFoundId:   types.ExitInvalid,
	issue.ChannelParseErrorId: types.ExitInvalid,
	issue.RecipeNotFoundId:    types.ExitInvalid,
	issue.InvalidRecipeId:     types.ExitInvalid,
	issue.FetchFailedId:       types.ExitFetchFailed,
	issue.ChecksumMismatchId:  types.ExitFetchFailed,
	issue.DependencyCycleId:   types.ExitInvalid,
	issue.UnresolvedInputId:   types.ExitBuildFailed,
	issue.PhaseFailedId:       types.ExitBuildFailed,
	issue.InstallPlanFailedId: types.ExitBuildFailed,
	issue.ConfigLoadFailedId:  types.ExitInvalid,
	issue.PermissionDeniedId:  types.ExitFailure,
}

// classifyError returns the catalog entry and exit code for err. The cause
// chain is searched before any catalog id already attached to an
// ActionableError, since the root cause is the more precise signal.
func classifyError(err error) (issue.Id, types.ExitCode) {
	for _, c := range errorClasses {
		if errors.Is(err, c.target) {
			return c.issue, c.code
		}
	}
	var ae *issue.ActionableError
	if errors.As(err, &ae) && ae.Issue != 0 {
		return ae.Issue, issueExitCodes[ae.Issue]
	}
	return 0, types.ExitFailure
}

// commandError turns err into an ExitError carrying an ActionableError. It
// returns nil for a nil err and passes context cancellation through with a
// failure code.
func commandError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return &ExitError{Code: types.ExitFailure, Err: err}
	}
	id, code := classifyError(err)
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		ae = issue.NewErrorContext().WithOperation(op).WithIssue(id).Wrap(err).Build()
	} else if ae.Issue == 0 {
		ae.Issue = id
	}
	return &ExitError{Code: code, Err: ae}
}

// withIssue attaches id to err, wrapping it in an ActionableError for op
// when it is not one already. An id set earlier is kept.
func withIssue(err error, op string, id issue.Id) error {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		if ae.Issue == 0 {
			ae.Issue = id
		}
		return err
	}
	return issue.NewErrorContext().WithOperation(op).WithIssue(id).Wrap(err).BuildError()
}

// renderError writes err to w. In verbose mode the full error chain and the
// catalog remediation follow the short message.
func renderError(w io.Writer, err error, verbose bool) {
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		fmt.Fprintln(w, ErrorStyle.Render("Error: ")+err.Error())
		return
	}
	fmt.Fprintln(w, ErrorStyle.Render("Error: ")+ae.Format(verbose))
	if !verbose {
		if ae.Issue != 0 {
			fmt.Fprintln(w, SubtitleStyle.Render("Run with --verbose for troubleshooting steps."))
		}
		return
	}
	rendered, renderErr := ae.Remediation("dark")
	if renderErr != nil {
		fmt.Fprintln(w, WarningStyle.Render("could not render troubleshooting steps: ")+renderErr.Error())
		return
	}
	fmt.Fprint(w, rendered)
}
