// SPDX-License-Identifier: MPL-2.0

package channel

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"

	"github.com/pkgchan/pkgchan/internal/logging"
	"github.com/pkgchan/pkgchan/internal/phase"
	"github.com/pkgchan/pkgchan/pkg/cueutil"
	"github.com/pkgchan/pkgchan/pkg/recipe"
)

// FilePattern selects channel files inside a channel directory.
const FilePattern = "**/*.cue"

//go:embed recipe_schema.cue
var schemaSource []byte

var channelSchema = cueutil.NewSchema(schemaSource, "#Channel")

var (
	// ErrInvalidChannel is the sentinel wrapped by FileError.
	ErrInvalidChannel = errors.New("invalid channel")

	// ErrUnknownOp is returned for a phase override with an unrecognized op.
	ErrUnknownOp = errors.New("unknown phase op")
)

type (
	// Loader turns channel files into recipes.
	Loader struct {
		shell       *phase.Shell
		catalog     recipe.Catalog
		logger      *log.Logger
		maxFileSize int64
	}

	// Option configures a Loader.
	Option func(*Loader)

	// Channel is the result of loading one or more channel directories.
	Channel struct {
		// Registry holds every loaded recipe.
		Registry *recipe.Registry
		// Files are the channel files that were read, in load order.
		Files []string

		mu   sync.RWMutex
		docs map[recipe.Identity]Document
	}

	// FileError locates a problem in a channel file.
	FileError struct {
		File string
		Path cueutil.CUEPath
		Err  error
	}
)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(ld *Loader) { ld.logger = l }
}

// WithMaxFileSize rejects channel files larger than n bytes. Values below 1
// keep cueutil.DefaultMaxFileSize.
func WithMaxFileSize(n int64) Option {
	return func(ld *Loader) { ld.maxFileSize = n }
}

// NewLoader creates a Loader. Phase scripts are compiled with shell, and
// recipes are validated against catalog.
func NewLoader(shell *phase.Shell, catalog recipe.Catalog, opts ...Option) *Loader {
	if shell == nil {
		shell = phase.NewShell()
	}
	ld := &Loader{shell: shell, catalog: catalog}
	for _, opt := range opts {
		opt(ld)
	}
	ld.logger = logging.OrDiscard(ld.logger)
	return ld
}

// Error implements the error interface.
func (e *FileError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %v", e.File, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

// Unwrap returns ErrInvalidChannel and the underlying error.
func (e *FileError) Unwrap() []error { return []error{ErrInvalidChannel, e.Err} }

// Load reads every channel file under dirs into a new Channel. All problems
// are collected and returned together; the Channel is nil if any occurred.
func (ld *Loader) Load(dirs ...string) (*Channel, error) {
	ch := &Channel{Registry: recipe.NewRegistry(ld.catalog), docs: map[recipe.Identity]Document{}}
	var errs []error
	for _, dir := range dirs {
		files, err := Files(dir)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, file := range files {
			if err := ld.loadFile(ch, file); err != nil {
				errs = append(errs, err)
			}
			ch.Files = append(ch.Files, file)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	ld.logger.Debug("channels loaded", "dirs", len(dirs), "files", len(ch.Files), "recipes", ch.Registry.Len())
	return ch, nil
}

// Files lists the channel files under dir in lexical order.
func Files(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("channel %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("channel %s: not a directory", dir)
	}
	matches, err := doublestar.Glob(os.DirFS(dir), FilePattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("channel %s: %w", dir, err)
	}
	slices.Sort(matches)
	files := make([]string, 0, len(matches))
	for _, m := range matches {
		files = append(files, filepath.Join(dir, filepath.FromSlash(m)))
	}
	return files, nil
}

func (ld *Loader) loadFile(ch *Channel, file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return &FileError{File: file, Err: err}
	}
	docs, err := ld.parse(file, data)
	if err != nil {
		return err
	}
	var errs []error
	base := cueutil.CUEPath("recipes")
	for i, doc := range docs {
		at := base.Index(i)
		r, err := ld.Recipe(doc)
		if err != nil {
			errs = append(errs, &FileError{File: file, Path: at, Err: err})
			continue
		}
		if err := ch.Registry.Add(r); err != nil {
			errs = append(errs, &FileError{File: file, Path: at, Err: err})
			continue
		}
		ch.mu.Lock()
		ch.docs[r.Identity()] = doc
		ch.mu.Unlock()
	}
	return errors.Join(errs...)
}

// parse validates data against the channel schema and returns its recipe
// documents. Each schema problem becomes a FileError at its own path.
func (ld *Loader) parse(file string, data []byte) ([]Document, error) {
	f, err := cueutil.Decode[File](channelSchema, data,
		cueutil.WithFilename(file),
		cueutil.WithMaxFileSize(ld.maxFileSize),
	)
	if err == nil {
		return f.Recipes, nil
	}
	var de *cueutil.DocumentError
	if !errors.As(err, &de) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidChannel, err)
	}
	errs := make([]error, len(de.Problems))
	for i, p := range de.Problems {
		errs[i] = &FileError{File: file, Path: p.Path, Err: errors.New(p.Message)}
	}
	return nil, errors.Join(errs...)
}

// Recipe builds a recipe from doc, compiling its phase scripts.
func (ld *Loader) Recipe(doc Document) (*recipe.Recipe, error) {
	overrides := make([]recipe.PhaseOverride, 0, len(doc.Phases))
	for i, p := range doc.Phases {
		o, err := ld.override(p)
		if err != nil {
			return nil, fmt.Errorf("phases[%d]: %w", i, err)
		}
		overrides = append(overrides, o)
	}

	def := recipe.Definition{
		Name:        doc.Name,
		Version:     doc.Version,
		Synopsis:    doc.Synopsis,
		Description: doc.Description,
		Homepage:    doc.Homepage,
		License:     doc.License,
		Source:      doc.Source.ref(),
		Inputs:      doc.Inputs,
		BuildSystem: doc.BuildSystem,
		Phases:      overrides,
		Params:      doc.Params,
		Install:     doc.Install,
	}
	if def.BuildSystem == "" {
		def.BuildSystem = phase.SequenceBinary
	}
	return recipe.New(def, recipe.WithBaseSequences(ld.catalog))
}

func (ld *Loader) override(p PhaseDocument) (recipe.PhaseOverride, error) {
	compile := func() (recipe.PhaseFunc, error) {
		return ld.shell.Compile(p.Name, p.Script)
	}
	switch p.Op {
	case OpInsertAfter, OpInsertBefore:
		fn, err := compile()
		if err != nil {
			return nil, err
		}
		if p.Op == OpInsertAfter {
			return recipe.InsertAfter{Anchor: p.Anchor, Name: p.Name, Fn: fn}, nil
		}
		return recipe.InsertBefore{Anchor: p.Anchor, Name: p.Name, Fn: fn}, nil
	case OpReplace:
		fn, err := compile()
		if err != nil {
			return nil, err
		}
		return recipe.Replace{Name: p.Name, Fn: fn}, nil
	case OpDelete:
		return recipe.Delete{Name: p.Name}, nil
	default:
		return nil, fmt.Errorf("%w %q (valid: %s, %s, %s, %s)", ErrUnknownOp, p.Op, OpInsertAfter, OpInsertBefore, OpReplace, OpDelete)
	}
}

func (s *SourceDocument) ref() recipe.SourceRef {
	switch {
	case s == nil:
		return recipe.NoSource{}
	case s.Git != "":
		return recipe.GitFetch{URL: s.Git, Commit: s.Commit, Checksum: recipe.Checksum(s.SHA256)}
	default:
		return recipe.URLFetch{URL: s.URL, Checksum: recipe.Checksum(s.SHA256)}
	}
}

// Document returns the channel document a recipe was loaded from.
func (ch *Channel) Document(id recipe.Identity) (Document, bool) {
	ch.mu.RLock()
	defer ch.mu.RUnlock()
	doc, ok := ch.docs[id]
	return doc, ok
}
