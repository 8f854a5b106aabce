// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	cueerrors "cuelang.org/go/cue/errors"
)

var (
	// ErrInvalidDocument is the sentinel error wrapped by DocumentError.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrFileTooLarge is the sentinel error wrapped by FileTooLargeError.
	ErrFileTooLarge = errors.New("file too large")
)

type (
	// Problem is one violation CUE reported inside a document.
	Problem struct {
		// Path locates the offending value, e.g. "recipes[0].install[2].mode".
		// It is empty for syntax errors.
		Path    CUEPath
		Message string
	}

	// DocumentError lists every problem found in a document.
	DocumentError struct {
		File     string
		Problems []Problem
	}

	// FileTooLargeError is returned before parsing a document over the size limit.
	FileTooLargeError struct {
		File  string
		Size  int64
		Limit int64
	}
)

// String returns "path: message", or the message alone when there is no path.
func (p Problem) String() string {
	if p.Path == "" {
		return p.Message
	}
	return p.Path.String() + ": " + p.Message
}

// Error implements the error interface.
func (e *DocumentError) Error() string {
	switch len(e.Problems) {
	case 0:
		return e.File + ": " + ErrInvalidDocument.Error()
	case 1:
		return e.File + ": " + e.Problems[0].String()
	}
	lines := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		lines[i] = p.String()
	}
	return fmt.Sprintf("%s: %d problems:\n  %s", e.File, len(lines), strings.Join(lines, "\n  "))
}

// Unwrap returns ErrInvalidDocument for errors.Is() compatibility.
func (e *DocumentError) Unwrap() error { return ErrInvalidDocument }

// Error implements the error interface.
func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("%s: %d bytes exceeds the %d byte limit", e.File, e.Size, e.Limit)
}

// Unwrap returns ErrFileTooLarge for errors.Is() compatibility.
func (e *FileTooLargeError) Unwrap() error { return ErrFileTooLarge }

func newDocumentError(file string, err error) *DocumentError {
	de := &DocumentError{File: file}
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		de.Problems = append(de.Problems, Problem{Path: pathOf(e.Path()), Message: fmt.Sprintf(format, args...)})
	}
	if len(de.Problems) == 0 {
		de.Problems = []Problem{{Message: err.Error()}}
	}
	de.Problems = slices.Compact(de.Problems)
	return de
}

// pathOf turns CUE's flat selector list, where list indices are plain
// numbers, into a CUEPath.
func pathOf(selectors []string) CUEPath {
	var p CUEPath
	for _, sel := range selectors {
		if i, err := strconv.Atoi(sel); err == nil && p != "" {
			p = p.Index(i)
			continue
		}
		p = p.Field(sel)
	}
	return p
}
