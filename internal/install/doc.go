// SPDX-License-Identifier: MPL-2.0

// Package install applies a recipe's install plan: it selects files from a
// staging tree and copies or symlinks them into an output tree.
//
// The whole plan is computed before anything is written, so a rejected entry
// leaves the output root untouched. When several entries map a file to the
// same destination, the entry declared last wins.
package install
