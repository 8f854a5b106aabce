// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/pkgchan/pkgchan/pkg/recipe"
)

// ComputedFetcher runs a Computed source's Derive function in a fresh directory.
type ComputedFetcher struct {
	workDir string
	logger  *log.Logger
}

// NewComputedFetcher creates a ComputedFetcher deriving under workDir.
func NewComputedFetcher(workDir string, opts ...Option) *ComputedFetcher {
	o := buildOptions(opts)
	return &ComputedFetcher{workDir: workDir, logger: o.logger}
}

// Fetch derives the source and returns its directory. The directory is
// removed if Derive fails.
func (f *ComputedFetcher) Fetch(ctx context.Context, src recipe.SourceRef) (string, error) {
	s, ok := src.(recipe.Computed)
	if !ok {
		return "", &FetchError{Source: describe(src), Cause: fmt.Errorf("%w: computed fetcher got %s", ErrUnsupportedSource, kind(src))}
	}
	if s.Derive == nil {
		return "", &FetchError{Source: s.Describe(), Cause: fmt.Errorf("no derive function")}
	}
	if err := ensureDir(f.workDir); err != nil {
		return "", &FetchError{Source: s.Describe(), Cause: err}
	}
	dir, err := os.MkdirTemp(f.workDir, "computed-*")
	if err != nil {
		return "", &FetchError{Source: s.Describe(), Cause: err}
	}
	if err := s.Derive(ctx, dir); err != nil {
		_ = os.RemoveAll(dir)
		return "", &FetchError{Source: s.Describe(), Cause: err}
	}
	f.logger.Debug("derived source", "name", s.Name, "dir", dir)
	return dir, nil
}
