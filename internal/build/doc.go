// SPDX-License-Identifier: MPL-2.0

// Package build turns a recipe with realized inputs into a committed store
// entry: it fetches the source, runs the phase sequence, applies the install
// plan into a temporary output and commits that output to the store.
//
// Builder implements resolve.Producer, so the resolver drives it for every
// recipe in a build closure.
package build
