// SPDX-License-Identifier: MPL-2.0

// Package resolve realizes a recipe's declared inputs.
//
// Resolution walks the input closure through an explicit recipe.Registry,
// rejects cycles and unknown inputs before anything is built, then realizes
// inputs depth-first. Realization is memoized per identity and concurrent
// requests for the same identity share a single in-flight build. The actual
// build is delegated to a Producer.
package resolve
