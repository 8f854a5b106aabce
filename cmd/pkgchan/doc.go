// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for pkgchan.
//
// The App type is the composition root: each command loads the
// configuration, then wires the channel loader, store, fetcher, phase
// executor, builder and input resolver into a session and runs against it.
package cmd
