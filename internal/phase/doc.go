// SPDX-License-Identifier: MPL-2.0

// Package phase derives a recipe's phase sequence from a base sequence and runs
// it in a private staging tree.
//
// The package ships the default base sequences (gnu, binary, copy and trivial),
// the archive unpacker, the substitute-driven patch phase, and a POSIX shell
// phase interpreted in-process with mvdan.cc/sh. Phases run strictly in order;
// the first failure discards the staging tree.
package phase
