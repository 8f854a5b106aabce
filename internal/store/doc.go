// SPDX-License-Identifier: MPL-2.0

// Package store manages the directory of built outputs.
//
// Layout:
//
//	<root>/<name>-<version>/             committed output tree
//	<root>/.receipts/<name>-<version>.toml build receipt
//	<root>/.tmp/<uuid>/                  in-progress outputs
//
// An entry counts as present only when both its tree and its receipt exist.
// Outputs are built under .tmp and renamed into place on success, so a failed
// build never leaves a partial entry.
package store
