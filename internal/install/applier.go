// SPDX-License-Identifier: MPL-2.0

package install

import (
	"context"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"

	"github.com/pkgchan/pkgchan/internal/logging"
	"github.com/pkgchan/pkgchan/pkg/fspath"
	"github.com/pkgchan/pkgchan/pkg/recipe"
)

type (
	// Applier applies install plans. It is stateless and safe for concurrent use.
	Applier struct {
		logger *log.Logger
	}

	// Option configures an Applier.
	Option func(*Applier)

	// OutputTree describes an applied install plan.
	OutputTree struct {
		Root string
		// Files are slash-separated paths relative to Root, sorted.
		Files []string
	}

	// placement is one file scheduled for the output tree.
	placement struct {
		src   string
		mode  recipe.InstallMode
		entry int
	}

	matcher struct {
		include   []string
		exclude   []string
		includeRe []*regexp.Regexp
		excludeRe []*regexp.Regexp
	}
)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(a *Applier) { a.logger = l }
}

// NewApplier creates an Applier.
func NewApplier(opts ...Option) *Applier {
	a := &Applier{}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = logging.OrDiscard(a.logger)
	return a
}

// Apply places the files selected by plan from stagingDir under outputRoot,
// creating outputRoot if needed.
func (a *Applier) Apply(ctx context.Context, stagingDir string, plan []recipe.InstallEntry, outputRoot string) (*OutputTree, error) {
	realStaging, err := filepath.EvalSymlinks(stagingDir)
	if err != nil {
		return nil, fmt.Errorf("resolving staging dir: %w", err)
	}

	placements := map[string]placement{}
	for i, e := range plan {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := a.planEntry(i, e, realStaging, outputRoot, placements); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return nil, err
	}
	files := slices.Sorted(maps.Keys(placements))
	for _, rel := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := placements[rel]
		dst, err := fspath.SafeJoin(outputRoot, rel)
		if err != nil {
			e := plan[p.entry]
			return nil, &InstallPlanError{Entry: p.entry, Source: e.Source, Dest: e.Dest, Reason: ErrPathEscape, Detail: err.Error()}
		}
		if err := place(p, dst); err != nil {
			return nil, fmt.Errorf("install %s: %w", rel, err)
		}
	}

	a.logger.Debug("install plan applied", "entries", len(plan), "files", len(files), "root", outputRoot)
	return &OutputTree{Root: outputRoot, Files: files}, nil
}

func (a *Applier) planEntry(i int, e recipe.InstallEntry, staging, outputRoot string, placements map[string]placement) error {
	fail := func(reason error, format string, args ...any) error {
		return &InstallPlanError{Entry: i, Source: e.Source, Dest: e.Dest, Reason: reason, Detail: fmt.Sprintf(format, args...)}
	}

	srcRel, ok := e.CleanSource()
	if !ok {
		return fail(ErrPathEscape, "source leaves the staging root")
	}
	destRel, ok := e.CleanDest()
	if !ok {
		return fail(ErrPathEscape, "destination leaves the output root")
	}
	if _, err := fspath.SafeJoin(outputRoot, destRel); err != nil {
		return fail(ErrPathEscape, "%v", err)
	}

	src, err := fspath.SafeJoin(staging, srcRel)
	if err != nil {
		return fail(ErrPathEscape, "%v", err)
	}
	info, err := os.Lstat(src)
	if err != nil {
		return fail(ErrSourceMissing, "%s", srcRel)
	}
	// A source reached through a symlinked directory must still live in staging.
	container := src
	if !info.IsDir() {
		container = filepath.Dir(src)
	}
	if real, err := filepath.EvalSymlinks(container); err != nil || !fspath.IsWithin(staging, real) {
		return fail(ErrPathEscape, "%s resolves outside staging", srcRel)
	}

	m, err := newMatcher(e)
	if err != nil {
		return fail(err, "")
	}

	add := func(rel, file string) {
		if !m.match(rel) {
			return
		}
		placements[path.Join(destRel, rel)] = placement{src: file, mode: e.EffectiveMode(), entry: i}
	}

	if !info.IsDir() {
		add(filepath.Base(src), src)
		return nil
	}
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		add(filepath.ToSlash(rel), p)
		return nil
	})
}

func place(p placement, dst string) error {
	if p.mode == recipe.InstallSymlink {
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		if _, err := os.Lstat(dst); err == nil {
			if err := os.Remove(dst); err != nil {
				return err
			}
		}
		return os.Symlink(p.src, dst)
	}
	return fspath.CopyFile(p.src, dst)
}

func newMatcher(e recipe.InstallEntry) (*matcher, error) {
	m := &matcher{include: e.Include, exclude: e.Exclude}
	for _, expr := range e.IncludeRegexp {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, err
		}
		m.includeRe = append(m.includeRe, re)
	}
	for _, expr := range e.ExcludeRegexp {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, err
		}
		m.excludeRe = append(m.excludeRe, re)
	}
	return m, nil
}

// match reports whether rel, a slash path relative to the entry's match root,
// is selected. Includes default to everything and excludes win.
func (m *matcher) match(rel string) bool {
	if globAny(m.exclude, rel) || regexpAny(m.excludeRe, rel) {
		return false
	}
	if len(m.include) == 0 && len(m.includeRe) == 0 {
		return true
	}
	return globAny(m.include, rel) || regexpAny(m.includeRe, rel)
}

// globAny matches patterns without a "/" against the base name and the others
// against the whole relative path.
func globAny(patterns []string, rel string) bool {
	for _, pat := range patterns {
		subject := rel
		if !strings.Contains(pat, "/") {
			subject = path.Base(rel)
		}
		if ok, _ := doublestar.Match(pat, subject); ok {
			return true
		}
	}
	return false
}

func regexpAny(res []*regexp.Regexp, rel string) bool {
	for _, re := range res {
		if re.MatchString(rel) {
			return true
		}
	}
	return false
}
