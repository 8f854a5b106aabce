// SPDX-License-Identifier: MPL-2.0

package phase

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/pkgchan/pkgchan/internal/logging"
	"github.com/pkgchan/pkgchan/pkg/recipe"
)

type (
	// Executor runs recipes' phase sequences. It holds no per-build state and
	// is safe for concurrent use; every Run gets its own staging tree.
	Executor struct {
		catalog recipe.Catalog
		workDir string
		logger  *log.Logger
		stdout  io.Writer
		stderr  io.Writer
	}

	// ExecutorOption configures an Executor.
	ExecutorOption func(*Executor)

	// Staging is the tree a successful Run leaves behind for the install step.
	Staging struct {
		Dir     string
		BuildID string
		Recipe  recipe.Identity
		// Phases are the names of the phases that ran, in order.
		Phases []string
	}
)

// WithLogger sets the parent logger of phase loggers.
func WithLogger(l *log.Logger) ExecutorOption {
	return func(e *Executor) { e.logger = l }
}

// WithOutput sets where phases write their stdout and stderr.
func WithOutput(stdout, stderr io.Writer) ExecutorOption {
	return func(e *Executor) { e.stdout, e.stderr = stdout, stderr }
}

// NewExecutor creates an Executor that derives sequences from catalog and
// creates staging trees under workDir.
func NewExecutor(catalog recipe.Catalog, workDir string, opts ...ExecutorOption) (*Executor, error) {
	abs, err := filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("resolving work dir: %w", err)
	}
	e := &Executor{
		catalog: catalog,
		workDir: abs,
		stdout:  io.Discard,
		stderr:  io.Discard,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.OrDiscard(e.logger)
	return e, nil
}

// Catalog returns the base sequences the executor derives from.
func (e *Executor) Catalog() recipe.Catalog { return e.catalog }

// Sequence returns the final phase sequence of r.
func (e *Executor) Sequence(r *recipe.Recipe) ([]recipe.Phase, error) {
	base, ok := e.catalog[r.BuildSystem()]
	if !ok {
		return nil, fmt.Errorf("%s: unknown build system %q", r.Identity(), r.BuildSystem())
	}
	return base.Derive(r.Phases())
}

// Run creates a fresh staging tree and runs r's phases in it, in order.
// On failure or cancellation the staging tree is removed and a *PhaseError
// names the phase that stopped the build.
func (e *Executor) Run(ctx context.Context, r *recipe.Recipe, sourcePath string, inputs []recipe.ResolvedInput) (*Staging, error) {
	phases, err := e.Sequence(r)
	if err != nil {
		return nil, &PhaseError{Recipe: r.Identity(), Phase: "derive", Cause: err}
	}

	buildID := uuid.NewString()
	if err := os.MkdirAll(e.workDir, 0o755); err != nil {
		return nil, &PhaseError{Recipe: r.Identity(), Phase: "stage", Cause: err}
	}
	dir := filepath.Join(e.workDir, r.Identity().Dirname()+"-"+buildID)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, &PhaseError{Recipe: r.Identity(), Phase: "stage", Cause: err}
	}

	staging := &Staging{Dir: dir, BuildID: buildID, Recipe: r.Identity()}
	logger := e.logger.With("recipe", r.Identity(), "build_id", buildID)
	params := r.Params()

	for _, p := range phases {
		if err := ctx.Err(); err != nil {
			return nil, e.abort(staging, logger, p.Name, err)
		}

		env := &recipe.PhaseEnv{
			Recipe:     r.Identity(),
			BuildID:    buildID,
			StagingDir: dir,
			SourcePath: sourcePath,
			Inputs:     inputs,
			Params:     params,
			Stdout:     e.stdout,
			Stderr:     e.stderr,
			Logger:     logger.With("phase", p.Name),
		}

		start := time.Now()
		env.Logger.Info("phase started")
		if err := p.Fn(ctx, env); err != nil {
			return nil, e.abort(staging, logger, p.Name, err)
		}
		env.Logger.Info("phase finished", "elapsed", time.Since(start).Round(time.Millisecond))
		staging.Phases = append(staging.Phases, p.Name)
	}
	return staging, nil
}

func (e *Executor) abort(s *Staging, logger *log.Logger, phase string, cause error) error {
	logger.Error("phase failed", "phase", phase, "err", cause)
	if err := s.Discard(); err != nil {
		logger.Warn("could not remove staging tree", "dir", s.Dir, "err", err)
	}
	return &PhaseError{Recipe: s.Recipe, Phase: phase, Cause: cause}
}

// Discard removes the staging tree.
func (s *Staging) Discard() error {
	return os.RemoveAll(s.Dir)
}
