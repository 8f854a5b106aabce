// SPDX-License-Identifier: MPL-2.0

// Package config handles pkgchan configuration using Viper with CUE as the file format.
//
// The config file is searched for at the --config path, then
// $XDG_CONFIG_HOME/pkgchan/config.cue (platform equivalents on macOS and Windows),
// then ./config.cue. PKGCHAN_* environment variables override file values, with
// nested keys joined by "_" (PKGCHAN_LOG_LEVEL, PKGCHAN_FETCH_TIMEOUT).
//
// Files are validated against the embedded CUE schema (config_schema.cue); the
// decoded result is checked again with Config.IsValid because environment
// overrides never pass through CUE.
package config
