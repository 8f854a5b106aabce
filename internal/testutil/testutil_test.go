// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"maps"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteTreeReadTree(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tree := map[string]string{
		"README":          "hello",
		"src/main.c":      "int main;",
		"share/doc/a/b/c": "",
	}
	WriteTree(t, dir, tree)
	if err := os.Symlink("README", filepath.Join(dir, "LINK")); err != nil {
		t.Fatal(err)
	}

	got := ReadTree(t, dir)
	want := maps.Clone(tree)
	want["LINK"] = "-> README"
	if !maps.Equal(got, want) {
		t.Errorf("ReadTree() = %v, want %v", got, want)
	}
}
