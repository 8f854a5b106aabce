// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"zombiezen.com/go/nix"
	"zombiezen.com/go/nix/nar"

	"github.com/pkgchan/pkgchan/internal/logging"
	"github.com/pkgchan/pkgchan/pkg/recipe"
)

// DefaultTimeout bounds a single network fetch.
const DefaultTimeout = 10 * time.Minute

type (
	// Fetcher materializes a source and returns its local path. NoSource yields "".
	Fetcher interface {
		Fetch(ctx context.Context, src recipe.SourceRef) (string, error)
	}

	// FetcherFunc adapts a function to the Fetcher interface.
	FetcherFunc func(ctx context.Context, src recipe.SourceRef) (string, error)

	// Mux dispatches each source variant to its fetcher.
	Mux struct {
		url      Fetcher
		git      Fetcher
		computed Fetcher
	}

	// Option configures the fetchers built by NewMux.
	Option func(*options)

	options struct {
		logger  *log.Logger
		timeout time.Duration
		client  HTTPDoer
	}
)

// Fetch calls f(ctx, src).
func (f FetcherFunc) Fetch(ctx context.Context, src recipe.SourceRef) (string, error) {
	return f(ctx, src)
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTimeout bounds each network fetch. Non-positive values select DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithHTTPClient sets the HTTP client used for URL sources.
func WithHTTPClient(c HTTPDoer) Option {
	return func(o *options) { o.client = c }
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = logging.OrDiscard(o.logger)
	if o.timeout <= 0 {
		o.timeout = DefaultTimeout
	}
	return o
}

// NewMux creates the standard fetchers, caching downloads and checkouts under
// cacheDir and deriving computed sources under workDir.
func NewMux(cacheDir, workDir string, opts ...Option) *Mux {
	return newMuxWith(
		NewURLFetcher(cacheDir, opts...),
		NewGitFetcher(cacheDir, opts...),
		NewComputedFetcher(workDir, opts...),
	)
}

// newMuxWith routes to explicit fetchers. Nil fetchers reject their kind.
func newMuxWith(url, git, computed Fetcher) *Mux {
	return &Mux{url: url, git: git, computed: computed}
}

// Fetch routes src to the fetcher for its kind.
func (m *Mux) Fetch(ctx context.Context, src recipe.SourceRef) (string, error) {
	var f Fetcher
	switch src.(type) {
	case nil, recipe.NoSource, *recipe.NoSource:
		return "", nil
	case recipe.URLFetch:
		f = m.url
	case recipe.GitFetch:
		f = m.git
	case recipe.Computed:
		f = m.computed
	}
	if f == nil {
		return "", &FetchError{Source: src.Describe(), Cause: fmt.Errorf("%w: %s", ErrUnsupportedSource, src.Kind())}
	}
	return f.Fetch(ctx, src)
}

// NarHash returns the sha256 NAR hash of the file tree at path.
func NarHash(path string) (nix.Hash, error) {
	h := nix.NewHasher(nix.SHA256)
	if err := nar.DumpPath(h, path); err != nil {
		return nix.Hash{}, fmt.Errorf("hashing %s: %w", path, err)
	}
	return h.SumHash(), nil
}

// digest returns the encoded digest of h without its "<type>:" prefix.
func digest(h nix.Hash) string {
	s := h.String()
	if _, d, ok := strings.Cut(s, ":"); ok {
		return d
	}
	return s
}

// cacheName returns the content-addressed cache entry name for h and base.
func cacheName(h nix.Hash, base string) string {
	return digest(h) + "-" + base
}

func exists(p string) bool {
	_, err := os.Lstat(p)
	return err == nil
}

// publish renames tmp to final. A concurrent fetch of the same content may
// win the rename; its entry is identical, so tmp is dropped.
func publish(tmp, final string) error {
	if err := os.Rename(tmp, final); err != nil {
		if exists(final) {
			return os.RemoveAll(tmp)
		}
		return err
	}
	return nil
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Clean(dir), err)
	}
	return nil
}
