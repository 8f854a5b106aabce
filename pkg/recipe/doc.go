// SPDX-License-Identifier: MPL-2.0

// Package recipe defines the immutable package recipe model of a pkgchan channel.
//
// A Recipe describes one installable unit: its identity (name and version), where its
// source comes from, which other recipes it needs as inputs, how its build phases
// differ from a named base phase sequence, and how staged files map into the final
// output tree. Recipes are validated once at construction (see New) and never change
// afterwards; every getter returns a copy.
//
// Recipes are collected in an explicit Registry value that is passed to the resolver
// and the builder. There is no package-level registry.
package recipe
