// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"path/filepath"
	"runtime"
	"testing"
)

// SetHomeDir sets the appropriate HOME environment variable based on platform
// and returns a cleanup function to restore the original value.
//
// Platform handling:
//   - Windows: Sets USERPROFILE
//   - Linux/macOS: Sets HOME
//
// Usage:
//
//	func TestSomething(t *testing.T) {
//	    t.Cleanup(testutil.SetHomeDir(t, t.TempDir()))
//	    // Test code that uses the home directory...
//	}
func SetHomeDir(t testing.TB, dir string) func() {
	t.Helper()

	switch runtime.GOOS {
	case "windows":
		return MustSetenv(t, "USERPROFILE", dir)
	default:
		return MustSetenv(t, "HOME", dir)
	}
}

// SetXDGDirs points XDG_CONFIG_HOME, XDG_DATA_HOME and XDG_CACHE_HOME at
// config, data and cache below dir. The returned cleanup restores all three.
func SetXDGDirs(t testing.TB, dir string) func() {
	t.Helper()

	cleanups := []func(){
		MustSetenv(t, "XDG_CONFIG_HOME", filepath.Join(dir, "config")),
		MustSetenv(t, "XDG_DATA_HOME", filepath.Join(dir, "data")),
		MustSetenv(t, "XDG_CACHE_HOME", filepath.Join(dir, "cache")),
	}
	return func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
}
