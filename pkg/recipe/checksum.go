// SPDX-License-Identifier: MPL-2.0

package recipe

import (
	"errors"
	"fmt"
	"strings"

	"zombiezen.com/go/nix"
)

// ErrInvalidChecksum is the sentinel error wrapped by InvalidChecksumError.
var ErrInvalidChecksum = errors.New("invalid checksum")

type (
	// Checksum is the expected digest of fetched content. The zero value means
	// "not pinned". Accepted forms are a bare 64-character hex sha256 digest,
	// "<type>:<digest>" in base16, nix-base32 or base64, and SRI ("sha256-<b64>").
	Checksum string

	// InvalidChecksumError is returned when a Checksum cannot be parsed.
	InvalidChecksumError struct {
		Value Checksum
		Cause error
	}
)

// String returns the string representation of the Checksum.
func (c Checksum) String() string { return string(c) }

// IsZero reports whether no checksum was declared.
func (c Checksum) IsZero() bool { return strings.TrimSpace(string(c)) == "" }

// Hash parses the checksum into a nix hash.
func (c Checksum) Hash() (nix.Hash, error) {
	s := strings.TrimSpace(string(c))
	if len(s) == 64 && isHex(s) {
		s = "sha256:" + strings.ToLower(s)
	}
	h, err := nix.ParseHash(s)
	if err != nil {
		return nix.Hash{}, &InvalidChecksumError{Value: c, Cause: err}
	}
	return h, nil
}

// Validate returns an error if a non-zero checksum cannot be parsed.
func (c Checksum) Validate() error {
	if c.IsZero() {
		return nil
	}
	_, err := c.Hash()
	return err
}

// Error implements the error interface for InvalidChecksumError.
func (e *InvalidChecksumError) Error() string {
	return fmt.Sprintf("invalid checksum %q: %v", e.Value, e.Cause)
}

// Unwrap returns ErrInvalidChecksum for errors.Is() compatibility.
func (e *InvalidChecksumError) Unwrap() error { return ErrInvalidChecksum }

func isHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
