// SPDX-License-Identifier: MPL-2.0

// Package builtin provides in-process implementations of the file utilities
// build phases use most (cp, mkdir, mv, rm, cat, chmod, touch, tar, gzip, ln)
// plus the substitute helper used by patch phases.
//
// Commands are dispatched from the virtual shell through Registry.ExecHandler.
// A registered command that fails returns its error without falling back to a
// host binary; unregistered commands fall through to the next handler.
//
// Most utilities wrap github.com/u-root/u-root/pkg/core, which streams file
// contents and therefore works independently of the host's coreutils.
package builtin
