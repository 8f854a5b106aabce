// SPDX-License-Identifier: MPL-2.0

package recipe

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

const (
	// SourceKindURL is the kind of URLFetch sources.
	SourceKindURL SourceKind = "url"
	// SourceKindGit is the kind of GitFetch sources.
	SourceKindGit SourceKind = "git"
	// SourceKindComputed is the kind of Computed sources.
	SourceKindComputed SourceKind = "computed"
	// SourceKindNone is the kind of recipes without a source.
	SourceKindNone SourceKind = "none"
)

type (
	// SourceKind names a SourceRef variant.
	SourceKind string

	// SourceRef is the tagged variant describing where a recipe's source comes from.
	// The set of variants is closed: URLFetch, GitFetch, Computed and NoSource.
	SourceRef interface {
		Kind() SourceKind
		// Describe returns a short human-readable form for logs and receipts.
		Describe() string
		validate() []error
	}

	// URLFetch downloads a single file. Checksum is the flat digest of the file.
	URLFetch struct {
		URL      string   `json:"url" yaml:"url"`
		Checksum Checksum `json:"sha256,omitempty" yaml:"sha256,omitempty"`
	}

	// GitFetch checks out a commit of a git repository. Checksum is the NAR digest
	// of the checked-out tree without its .git directory, and is mandatory.
	GitFetch struct {
		URL      string   `json:"git" yaml:"git"`
		Commit   string   `json:"commit" yaml:"commit"`
		Checksum Checksum `json:"sha256" yaml:"sha256"`
	}

	// DeriveFunc populates dir with the computed source.
	DeriveFunc func(ctx context.Context, dir string) error

	// Computed produces its source locally by running Derive in an empty directory.
	Computed struct {
		Name   string     `json:"computed" yaml:"computed"`
		Derive DeriveFunc `json:"-" yaml:"-"`
	}

	// NoSource is used by recipes that only assemble their inputs.
	NoSource struct{}
)

// Kind returns SourceKindURL.
func (URLFetch) Kind() SourceKind { return SourceKindURL }

// Describe returns the URL.
func (s URLFetch) Describe() string { return s.URL }

func (s URLFetch) validate() []error {
	var errs []error
	u, err := url.Parse(s.URL)
	switch {
	case strings.TrimSpace(s.URL) == "":
		errs = append(errs, fmt.Errorf("source: url must not be empty"))
	case err != nil:
		errs = append(errs, fmt.Errorf("source: invalid url %q: %w", s.URL, err))
	case u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "file":
		errs = append(errs, fmt.Errorf("source: unsupported url scheme %q (valid: http, https, file)", u.Scheme))
	}
	if err := s.Checksum.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("source: %w", err))
	}
	return errs
}

// Kind returns SourceKindGit.
func (GitFetch) Kind() SourceKind { return SourceKindGit }

// Describe returns "url#commit".
func (s GitFetch) Describe() string { return s.URL + "#" + s.Commit }

func (s GitFetch) validate() []error {
	var errs []error
	if strings.TrimSpace(s.URL) == "" {
		errs = append(errs, fmt.Errorf("source: git url must not be empty"))
	}
	if len(s.Commit) != 40 || !isHex(s.Commit) {
		errs = append(errs, fmt.Errorf("source: git commit %q must be a full 40-character hex hash", s.Commit))
	}
	if s.Checksum.IsZero() {
		errs = append(errs, fmt.Errorf("source: git sources require a checksum"))
	} else if err := s.Checksum.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("source: %w", err))
	}
	return errs
}

// Kind returns SourceKindComputed.
func (Computed) Kind() SourceKind { return SourceKindComputed }

// Describe returns "computed:<name>".
func (s Computed) Describe() string { return "computed:" + s.Name }

func (s Computed) validate() []error {
	var errs []error
	if strings.TrimSpace(s.Name) == "" {
		errs = append(errs, fmt.Errorf("source: computed source must have a name"))
	}
	if s.Derive == nil {
		errs = append(errs, fmt.Errorf("source: computed source %q has no derive function", s.Name))
	}
	return errs
}

// Kind returns SourceKindNone.
func (NoSource) Kind() SourceKind { return SourceKindNone }

// Describe returns "none".
func (NoSource) Describe() string { return "none" }

func (NoSource) validate() []error { return nil }
