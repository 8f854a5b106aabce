// SPDX-License-Identifier: MPL-2.0

//go:build windows

package watch

import (
	"errors"
	"syscall"
)

// Win32 codes after which ReadDirectoryChangesW cannot continue.
const (
	errTooManyOpenFiles = syscall.Errno(4)
	errInvalidHandle    = syscall.Errno(6)
	errNotEnoughMemory  = syscall.Errno(8)
)

// watcherBroken reports whether err means the directory handles are gone or
// exhausted. The watcher cannot recover from either.
func watcherBroken(err error) bool {
	for _, errno := range []syscall.Errno{errTooManyOpenFiles, errInvalidHandle, errNotEnoughMemory} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}
