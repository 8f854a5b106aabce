// SPDX-License-Identifier: MPL-2.0

// Package fetch materializes recipe sources on the local filesystem.
//
// Downloaded files and git checkouts are kept in a content-addressed cache
// named "<nix-base32 digest>-<base name>", so a pinned source is fetched once.
// Pinned checksums are verified with nix hashes: a flat hash for URL sources
// and a NAR hash of the checked-out tree for git sources.
package fetch
