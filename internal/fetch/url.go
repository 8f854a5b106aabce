// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/log"
	"zombiezen.com/go/nix"

	"github.com/pkgchan/pkgchan/pkg/recipe"
)

type (
	// HTTPDoer is the subset of *http.Client used for downloads.
	HTTPDoer interface {
		Do(req *http.Request) (*http.Response, error)
	}

	// URLFetcher downloads URLFetch sources over http(s) or reads them from
	// file:// URLs, verifying the flat hash of the content.
	URLFetcher struct {
		cacheDir string
		client   HTTPDoer
		opts     options
		logger   *log.Logger
	}
)

// NewURLFetcher creates a URLFetcher caching under cacheDir.
func NewURLFetcher(cacheDir string, opts ...Option) *URLFetcher {
	o := buildOptions(opts)
	client := o.client
	if client == nil {
		client = http.DefaultClient
	}
	return &URLFetcher{cacheDir: cacheDir, client: client, opts: o, logger: o.logger}
}

// Fetch downloads src into the cache and returns the cached file path.
func (f *URLFetcher) Fetch(ctx context.Context, src recipe.SourceRef) (string, error) {
	s, ok := src.(recipe.URLFetch)
	if !ok {
		return "", &FetchError{Source: describe(src), Cause: fmt.Errorf("%w: url fetcher got %s", ErrUnsupportedSource, kind(src))}
	}
	p, err := f.fetch(ctx, s)
	if err != nil {
		return "", &FetchError{Source: s.URL, Cause: err}
	}
	return p, nil
}

func (f *URLFetcher) fetch(ctx context.Context, s recipe.URLFetch) (string, error) {
	u, err := url.Parse(s.URL)
	if err != nil {
		return "", err
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" || base == "" {
		base = "source"
	}

	hashType := nix.SHA256
	var want nix.Hash
	pinned := !s.Checksum.IsZero()
	if pinned {
		if want, err = s.Checksum.Hash(); err != nil {
			return "", err
		}
		hashType = want.Type()
		cached := filepath.Join(f.cacheDir, cacheName(want, base))
		if exists(cached) {
			f.logger.Debug("source cached", "url", s.URL, "path", cached)
			return cached, nil
		}
	} else {
		f.logger.Warn("source is not pinned by a checksum", "url", s.URL)
	}

	if err := ensureDir(f.cacheDir); err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, f.opts.timeout)
	defer cancel()

	body, err := f.open(ctx, u)
	if err != nil {
		return "", err
	}
	defer body.Close()

	tmp, err := os.CreateTemp(f.cacheDir, ".fetch-*")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	hasher := nix.NewHasher(hashType)
	if _, err := io.Copy(io.MultiWriter(tmp, hasher), body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("downloading: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	got := hasher.SumHash()
	if pinned && got.String() != want.String() {
		return "", &ChecksumError{Source: s.URL, Expected: want.String(), Got: got.String()}
	}

	final := filepath.Join(f.cacheDir, cacheName(got, base))
	if err := publish(tmpName, final); err != nil {
		return "", err
	}
	f.logger.Info("fetched source", "url", s.URL, "hash", got.String())
	return final, nil
}

func (f *URLFetcher) open(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	switch u.Scheme {
	case "file":
		return os.Open(filepath.FromSlash(u.Path))
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("User-Agent", "pkgchan")
		resp, err := f.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("executing request: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return resp.Body, nil
	default:
		return nil, fmt.Errorf("%w: url scheme %q", ErrUnsupportedSource, u.Scheme)
	}
}

func describe(src recipe.SourceRef) string {
	if src == nil {
		return "none"
	}
	return src.Describe()
}

func kind(src recipe.SourceRef) recipe.SourceKind {
	if src == nil {
		return recipe.SourceKindNone
	}
	return src.Kind()
}
