// SPDX-License-Identifier: MPL-2.0

package build

import (
	"context"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pkgchan/pkgchan/internal/fetch"
	"github.com/pkgchan/pkgchan/internal/install"
	"github.com/pkgchan/pkgchan/internal/logging"
	"github.com/pkgchan/pkgchan/internal/phase"
	"github.com/pkgchan/pkgchan/internal/resolve"
	"github.com/pkgchan/pkgchan/internal/store"
	"github.com/pkgchan/pkgchan/pkg/recipe"
)

type (
	// Builder produces store entries. It is safe for concurrent use; each
	// Produce call gets its own staging and output directories.
	Builder struct {
		fetcher     fetch.Fetcher
		executor    *phase.Executor
		applier     *install.Applier
		store       *store.Store
		logger      *log.Logger
		keepStaging bool
	}

	// Option configures a Builder.
	Option func(*Builder)
)

var _ resolve.Producer = (*Builder)(nil)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// WithKeepStaging keeps staging trees after a successful build. Recipes that
// install with symlink mode need it.
func WithKeepStaging(keep bool) Option {
	return func(b *Builder) { b.keepStaging = keep }
}

// New creates a Builder.
func New(fetcher fetch.Fetcher, executor *phase.Executor, applier *install.Applier, st *store.Store, opts ...Option) *Builder {
	b := &Builder{fetcher: fetcher, executor: executor, applier: applier, store: st}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = logging.OrDiscard(b.logger)
	return b
}

// Store returns the store the Builder commits to.
func (b *Builder) Store() *store.Store { return b.store }

// Produce builds r with its realized inputs and returns the store path. An
// identity already committed to the store is returned without rebuilding.
func (b *Builder) Produce(ctx context.Context, r *recipe.Recipe, inputs resolve.Inputs) (string, error) {
	id := r.Identity()
	logger := b.logger.With("recipe", id.String())
	if b.store.Has(id) {
		logger.Debug("reusing store entry")
		return b.store.Path(id), nil
	}

	start := time.Now()
	fail := func(stage string, err error) (string, error) {
		logger.Error("build failed", "stage", stage, "err", err)
		return "", &BuildError{Recipe: id, Stage: stage, Cause: err}
	}

	if err := b.checkSymlinks(r); err != nil {
		return fail("install", err)
	}

	src, err := b.fetcher.Fetch(ctx, r.Source())
	if err != nil {
		return fail("fetch", err)
	}
	if _, computed := r.Source().(recipe.Computed); computed && src != "" {
		defer os.RemoveAll(src)
	}

	staging, err := b.executor.Run(ctx, r, src, []recipe.ResolvedInput(inputs))
	if err != nil {
		return fail("phases", err)
	}
	if !b.keepStaging {
		defer func() {
			if err := staging.Discard(); err != nil {
				logger.Warn("could not remove staging dir", "dir", staging.Dir, "err", err)
			}
		}()
	}

	tmp := b.store.TempDir()
	tree, err := b.applier.Apply(ctx, staging.Dir, r.Install(), tmp)
	if err != nil {
		_ = os.RemoveAll(tmp)
		return fail("install", err)
	}

	path, err := b.store.Commit(id, tmp, store.Receipt{
		BuildID: staging.BuildID,
		Source:  r.Source().Describe(),
		Inputs:  inputs,
		Files:   tree.Files,
	})
	if err != nil {
		_ = os.RemoveAll(tmp)
		return fail("commit", err)
	}

	logger.Info("built", "path", path, "files", len(tree.Files), "elapsed", time.Since(start).Round(time.Millisecond))
	return path, nil
}

// checkSymlinks rejects symlink install entries when the staging tree they
// would point into is discarded after the build.
func (b *Builder) checkSymlinks(r *recipe.Recipe) error {
	if b.keepStaging {
		return nil
	}
	for i, e := range r.Install() {
		if e.EffectiveMode() == recipe.InstallSymlink {
			return &install.InstallPlanError{Entry: i, Source: e.Source, Dest: e.Dest,
				Reason: install.ErrStagingDiscarded, Detail: "staging is removed after the build"}
		}
	}
	return nil
}
