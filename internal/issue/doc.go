// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// ActionableError carries the failed operation, the resource involved and short
// suggestions. Errors linked to the catalog (Get, Values) additionally carry a
// Markdown remediation page rendered with glamour in verbose mode.
package issue
