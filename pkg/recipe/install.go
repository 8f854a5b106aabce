// SPDX-License-Identifier: MPL-2.0

package recipe

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	// InstallCopy copies matched files into the output tree.
	InstallCopy InstallMode = "copy"
	// InstallSymlink symlinks matched files from the output tree into staging.
	// Only useful when the staging tree outlives the build (e.g. kept for debugging).
	InstallSymlink InstallMode = "symlink"
)

// ErrInvalidInstallMode is returned when an InstallMode value is not recognized.
var ErrInvalidInstallMode = errors.New("invalid install mode")

type (
	// InstallMode selects how matched files are placed into the output tree.
	InstallMode string

	// InstallEntry maps staged files into the output tree.
	//
	// Source is a directory prefix ("opt/") or a single file relative to the staging
	// root. Dest is a directory relative to the output root; a leading "/" is
	// anchored at the output root, never at the host root. Filters without a "/"
	// match the file's base name, otherwise its path relative to Source.
	InstallEntry struct {
		Source        string      `json:"source" yaml:"source"`
		Dest          string      `json:"dest" yaml:"dest"`
		Include       []string    `json:"include,omitempty" yaml:"include,omitempty"`
		Exclude       []string    `json:"exclude,omitempty" yaml:"exclude,omitempty"`
		IncludeRegexp []string    `json:"include_regexp,omitempty" yaml:"include_regexp,omitempty"`
		ExcludeRegexp []string    `json:"exclude_regexp,omitempty" yaml:"exclude_regexp,omitempty"`
		Mode          InstallMode `json:"mode,omitempty" yaml:"mode,omitempty"`
	}
)

// IsValid returns whether the InstallMode is known. The zero value means copy.
func (m InstallMode) IsValid() (bool, []error) {
	switch m {
	case "", InstallCopy, InstallSymlink:
		return true, nil
	default:
		return false, []error{fmt.Errorf("%w %q (valid: copy, symlink)", ErrInvalidInstallMode, m)}
	}
}

// EffectiveMode returns Mode, defaulting to InstallCopy.
func (e InstallEntry) EffectiveMode() InstallMode {
	if e.Mode == "" {
		return InstallCopy
	}
	return e.Mode
}

// CleanDest returns Dest as a slash-separated path relative to the output root.
// It reports false if the destination would escape the root.
func (e InstallEntry) CleanDest() (string, bool) {
	return cleanRelative(e.Dest)
}

// CleanSource returns Source relative to the staging root, or false if it escapes.
func (e InstallEntry) CleanSource() (string, bool) {
	return cleanRelative(e.Source)
}

func (e InstallEntry) validate(i int) []error {
	var errs []error
	field := fmt.Sprintf("install[%d]", i)
	if strings.TrimSpace(e.Source) == "" {
		errs = append(errs, fmt.Errorf("%s: source must not be empty", field))
	} else if _, ok := e.CleanSource(); !ok {
		errs = append(errs, fmt.Errorf("%s: source %q escapes the staging root", field, e.Source))
	}
	if _, ok := e.CleanDest(); !ok {
		errs = append(errs, fmt.Errorf("%s: dest %q escapes the output root", field, e.Dest))
	}
	for _, pat := range append(append([]string(nil), e.Include...), e.Exclude...) {
		if !doublestar.ValidatePattern(pat) {
			errs = append(errs, fmt.Errorf("%s: invalid glob %q", field, pat))
		}
	}
	for _, expr := range append(append([]string(nil), e.IncludeRegexp...), e.ExcludeRegexp...) {
		if _, err := regexp.Compile(expr); err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid regexp %q: %w", field, expr, err))
		}
	}
	if ok, modeErrs := e.Mode.IsValid(); !ok {
		for _, err := range modeErrs {
			errs = append(errs, fmt.Errorf("%s: %w", field, err))
		}
	}
	return errs
}

// cleanRelative normalizes p to a relative slash path ("" for the root).
// Leading slashes anchor at the root; a path that climbs above it is rejected.
func cleanRelative(p string) (string, bool) {
	p = strings.TrimLeft(strings.ReplaceAll(p, "\\", "/"), "/")
	c := path.Clean(p)
	if c == ".." || strings.HasPrefix(c, "../") {
		return "", false
	}
	if c == "." {
		return "", true
	}
	return c, true
}
