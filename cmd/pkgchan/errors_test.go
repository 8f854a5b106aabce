// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/pkgchan/pkgchan/internal/build"
	"github.com/pkgchan/pkgchan/internal/fetch"
	"github.com/pkgchan/pkgchan/internal/install"
	"github.com/pkgchan/pkgchan/internal/issue"
	"github.com/pkgchan/pkgchan/internal/phase"
	"github.com/pkgchan/pkgchan/internal/resolve"
	"github.com/pkgchan/pkgchan/pkg/recipe"
	"github.com/pkgchan/pkgchan/pkg/types"
)

func TestClassifyError(t *testing.T) {
	t.Parallel()

	hello := recipe.Identity{Name: "hello", Version: "2.12"}

	tests := []struct {
		name     string
		err      error
		wantID   issue.Id
		wantCode types.ExitCode
	}{
		{
			name:     "checksum mismatch beats generic fetch failure",
			err:      &build.BuildError{Recipe: hello, Stage: "fetch", Cause: fmt.Errorf("%w: %w", fetch.ErrFetch, fetch.ErrChecksumMismatch)},
			wantID:   issue.ChecksumMismatchId,
			wantCode: types.ExitFetchFailed,
		},
		{
			name:     "fetch failure",
			err:      fmt.Errorf("download: %w", fetch.ErrFetch),
			wantID:   issue.FetchFailedId,
			wantCode: types.ExitFetchFailed,
		},
		{
			name:     "cycle",
			err:      &resolve.CyclicDependencyError{Cycle: []recipe.Identity{hello, hello}},
			wantID:   issue.DependencyCycleId,
			wantCode: types.ExitInvalid,
		},
		{
			name:     "phase failure inside a build error",
			err:      &build.BuildError{Recipe: hello, Stage: "phases", Cause: fmt.Errorf("configure: %w", phase.ErrPhaseFailed)},
			wantID:   issue.PhaseFailedId,
			wantCode: types.ExitBuildFailed,
		},
		{
			name:     "install escape",
			err:      &install.InstallPlanError{Entry: 0, Source: "../x", Dest: "bin", Reason: install.ErrPathEscape},
			wantID:   issue.InstallPlanFailedId,
			wantCode: types.ExitBuildFailed,
		},
		{
			name:     "unknown input",
			err:      &resolve.UnresolvedInputError{Recipe: hello, Input: recipe.InputRef{Name: "gtk"}, Cause: errors.New("nope")},
			wantID:   issue.UnresolvedInputId,
			wantCode: types.ExitBuildFailed,
		},
		{
			name:     "recipe not found",
			err:      &recipe.NotFoundError{Name: "hello"},
			wantID:   issue.RecipeNotFoundId,
			wantCode: types.ExitInvalid,
		},
		{
			name:     "invalid recipe",
			err:      fmt.Errorf("recipes[0]: %w", recipe.ErrInvalidRecipe),
			wantID:   issue.InvalidRecipeId,
			wantCode: types.ExitInvalid,
		},
		{
			name:     "permission denied",
			err:      fmt.Errorf("mkdir: %w", os.ErrPermission),
			wantID:   issue.PermissionDeniedId,
			wantCode: types.ExitFailure,
		},
		{
			name:     "bare build failure",
			err:      &build.BuildError{Recipe: hello, Stage: "commit", Cause: errors.New("disk full")},
			wantCode: types.ExitBuildFailed,
		},
		{
			name:     "catalog id on an actionable error",
			err:      issue.NewErrorContext().WithOperation("load configuration").WithIssue(issue.ConfigLoadFailedId).Wrap(errors.New("bad")).BuildError(),
			wantID:   issue.ConfigLoadFailedId,
			wantCode: types.ExitInvalid,
		},
		{
			name:     "unclassified",
			err:      errors.New("boom"),
			wantCode: types.ExitFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			id, code := classifyError(tt.err)
			if id != tt.wantID {
				t.Errorf("issue = %d, want %d", id, tt.wantID)
			}
			if code != tt.wantCode {
				t.Errorf("exit code = %d, want %d", code, tt.wantCode)
			}
		})
	}
}

func TestCommandError(t *testing.T) {
	t.Parallel()

	if commandError(nil, "build") != nil {
		t.Error("commandError(nil) should be nil")
	}

	err := commandError(fmt.Errorf("fetch: %w", fetch.ErrFetch), "build hello")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != types.ExitFetchFailed {
		t.Fatalf("commandError() = %v, want ExitError with ExitFetchFailed", err)
	}
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		t.Fatal("commandError() should carry an ActionableError")
	}
	if ae.Operation != "build hello" || ae.Issue != issue.FetchFailedId {
		t.Errorf("ActionableError = %+v", ae)
	}
	if !errors.Is(err, fetch.ErrFetch) {
		t.Error("the cause chain should be preserved")
	}

	canceled := commandError(fmt.Errorf("realize: %w", context.Canceled), "build")
	if !errors.Is(canceled, context.Canceled) || errors.As(canceled, &ae) {
		t.Errorf("cancellation should pass through unwrapped: %v", canceled)
	}
}

func TestRenderError(t *testing.T) {
	t.Parallel()

	err := commandError(&resolve.CyclicDependencyError{Cycle: []recipe.Identity{
		{Name: "a", Version: "1"}, {Name: "b", Version: "1"}, {Name: "a", Version: "1"},
	}}, "plan a")

	var short bytes.Buffer
	renderError(&short, err, false)
	if !strings.Contains(short.String(), "failed to plan a") {
		t.Errorf("short output:\n%s", short.String())
	}
	if !strings.Contains(short.String(), "--verbose") {
		t.Errorf("short output should point at --verbose:\n%s", short.String())
	}

	var long bytes.Buffer
	renderError(&long, err, true)
	for _, want := range []string{"Error chain:", "Inspect"} {
		if !strings.Contains(long.String(), want) {
			t.Errorf("verbose output missing %q:\n%s", want, long.String())
		}
	}

	var plain bytes.Buffer
	renderError(&plain, errors.New("unknown flag: --nope"), true)
	if !strings.Contains(plain.String(), "unknown flag: --nope") {
		t.Errorf("plain output:\n%s", plain.String())
	}
}
