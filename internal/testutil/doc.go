// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Common helpers include environment variable management (MustSetenv, SetHomeDir,
// SetXDGDirs), file trees (WriteTree, ReadTree, MustMkdirAll) and a
// controllable clock (FakeClock) for code that stamps times.
package testutil
