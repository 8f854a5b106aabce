// SPDX-License-Identifier: MPL-2.0

// Package channel loads recipe channels: directories of CUE files that declare
// recipes. Each file is validated against the embedded #Channel schema, then
// every entry is turned into a recipe.Recipe whose phase scripts run in the
// virtual shell.
package channel
