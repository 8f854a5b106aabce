// SPDX-License-Identifier: MPL-2.0

package config

// configDirOverride replaces the platform lookup in ConfigDir when set.
var configDirOverride string

// SetConfigDirOverride makes ConfigDir return dir. Tests use it where the
// platform lookup ignores a temporary HOME.
func SetConfigDirOverride(dir string) {
	configDirOverride = dir
}

// Reset clears the config directory override.
func Reset() {
	configDirOverride = ""
}
