// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"errors"
	"fmt"
)

var (
	// ErrFetch is the sentinel wrapped by every FetchError.
	ErrFetch = errors.New("fetch failed")

	// ErrChecksumMismatch indicates the fetched content does not match the pinned checksum.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrUnsupportedSource is returned when a fetcher is handed a source kind it cannot serve.
	ErrUnsupportedSource = errors.New("unsupported source")
)

type (
	// FetchError reports a source that could not be materialized.
	FetchError struct {
		// Source is the described source (URL, "url#commit", ...).
		Source string
		Cause  error
	}

	// ChecksumError provides details about a checksum verification failure.
	// It wraps ErrChecksumMismatch so callers can use errors.Is for classification.
	ChecksumError struct {
		Source   string
		Expected string
		Got      string
	}
)

// Error implements the error interface.
func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.Source, e.Cause)
}

// Unwrap returns ErrFetch and the underlying cause.
func (e *FetchError) Unwrap() []error { return []error{ErrFetch, e.Cause} }

// Error returns a human-readable description of the checksum mismatch,
// showing both expected and actual hash values for debugging.
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum verification failed for %s\nExpected: %s\nGot:      %s", e.Source, e.Expected, e.Got)
}

// Unwrap returns ErrChecksumMismatch so callers can use errors.Is.
func (e *ChecksumError) Unwrap() error { return ErrChecksumMismatch }
