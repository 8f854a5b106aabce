// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"github.com/pkgchan/pkgchan/pkg/recipe"
)

// GitFetcher checks out GitFetch sources with go-git and verifies the NAR
// hash of the tree without its .git directory.
type GitFetcher struct {
	cacheDir string
	opts     options
	logger   *log.Logger

	// auth is the authentication method to use for Git operations.
	auth transport.AuthMethod
}

// NewGitFetcher creates a GitFetcher caching checkouts under cacheDir.
func NewGitFetcher(cacheDir string, opts ...Option) *GitFetcher {
	o := buildOptions(opts)
	f := &GitFetcher{cacheDir: cacheDir, opts: o, logger: o.logger}
	f.setupAuth()
	return f
}

// Fetch clones the repository, checks out the pinned commit and returns the
// cached tree path.
func (f *GitFetcher) Fetch(ctx context.Context, src recipe.SourceRef) (string, error) {
	s, ok := src.(recipe.GitFetch)
	if !ok {
		return "", &FetchError{Source: describe(src), Cause: fmt.Errorf("%w: git fetcher got %s", ErrUnsupportedSource, kind(src))}
	}
	dir, err := f.fetch(ctx, s)
	if err != nil {
		return "", &FetchError{Source: s.Describe(), Cause: err}
	}
	return dir, nil
}

func (f *GitFetcher) fetch(ctx context.Context, s recipe.GitFetch) (string, error) {
	want, err := s.Checksum.Hash()
	if err != nil {
		return "", err
	}
	final := filepath.Join(f.cacheDir, cacheName(want, repoBase(s.URL)))
	if exists(final) {
		f.logger.Debug("checkout cached", "git", s.URL, "path", final)
		return final, nil
	}

	if err := ensureDir(f.cacheDir); err != nil {
		return "", err
	}
	tmp, err := os.MkdirTemp(f.cacheDir, ".git-*")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(tmp)

	ctx, cancel := context.WithTimeout(ctx, f.opts.timeout)
	defer cancel()

	repo, err := git.PlainCloneContext(ctx, tmp, false, &git.CloneOptions{
		URL:  s.URL,
		Auth: f.auth,
	})
	if err != nil {
		return "", fmt.Errorf("failed to clone repository: %w", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to get worktree: %w", err)
	}
	if err := worktree.Checkout(&git.CheckoutOptions{
		Hash:  plumbing.NewHash(s.Commit),
		Force: true,
	}); err != nil {
		return "", fmt.Errorf("failed to checkout %s: %w", s.Commit, err)
	}
	if err := os.RemoveAll(filepath.Join(tmp, ".git")); err != nil {
		return "", err
	}

	got, err := NarHash(tmp)
	if err != nil {
		return "", err
	}
	if got.String() != want.String() {
		return "", &ChecksumError{Source: s.Describe(), Expected: want.String(), Got: got.String()}
	}

	if err := publish(tmp, final); err != nil {
		return "", err
	}
	f.logger.Info("checked out source", "git", s.URL, "commit", s.Commit)
	return final, nil
}

// repoBase returns the repository name of a git URL without its ".git" suffix.
func repoBase(u string) string {
	u = strings.TrimRight(u, "/")
	if i := strings.LastIndex(u, ":"); i >= 0 && !strings.Contains(u, "://") {
		u = u[i+1:]
	}
	base := strings.TrimSuffix(path.Base(filepath.ToSlash(u)), ".git")
	if base == "" || base == "." || base == "/" {
		return "source"
	}
	return base
}

// setupAuth configures authentication based on available credentials.
func (f *GitFetcher) setupAuth() {
	if auth := tryHTTPAuth(); auth != nil {
		f.auth = auth
		return
	}
	if auth := trySSHAuth(); auth != nil {
		f.auth = auth
	}
}

// tryHTTPAuth reads a token from the environment.
func tryHTTPAuth() transport.AuthMethod {
	for _, c := range []struct{ env, user string }{
		{"PKGCHAN_GIT_TOKEN", "git"},
		{"GITHUB_TOKEN", "x-access-token"},
		{"GITLAB_TOKEN", "gitlab-ci-token"},
	} {
		if token := os.Getenv(c.env); token != "" {
			return &http.BasicAuth{Username: c.user, Password: token}
		}
	}
	return nil
}

// trySSHAuth looks for a key in the common SSH key locations.
func trySSHAuth() transport.AuthMethod {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	for _, name := range []string{"id_ed25519", "id_rsa", "id_ecdsa"} {
		keyPath := filepath.Join(homeDir, ".ssh", name)
		if _, err := os.Stat(keyPath); err != nil {
			continue
		}
		if auth, err := ssh.NewPublicKeysFromFile("git", keyPath, ""); err == nil {
			return auth
		}
	}
	return nil
}
