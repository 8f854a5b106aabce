// SPDX-License-Identifier: MPL-2.0

// Package fspath provides path helpers shared by the build pipeline:
// root-confined joins that reject traversal, and mode-preserving file and
// tree copies.
package fspath

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrEscapesRoot is returned when a path would resolve outside its root.
var ErrEscapesRoot = errors.New("path escapes root")

// IsWithin reports whether target is root or lies below it. Both paths are
// cleaned lexically; symlinks are not resolved.
func IsWithin(root, target string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(target))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// SafeJoin joins a slash-separated relative path onto root and fails with
// ErrEscapesRoot if the result would leave root. A leading "/" in rel is
// anchored at root.
func SafeJoin(root, rel string) (string, error) {
	rel = strings.TrimLeft(filepath.ToSlash(rel), "/")
	joined := filepath.Join(root, filepath.FromSlash(rel))
	if !IsWithin(root, joined) {
		return "", fmt.Errorf("%w: %q is outside %q", ErrEscapesRoot, rel, root)
	}
	return joined, nil
}

// CopyFile copies src to dst, creating parent directories and preserving the
// permission bits of src. An existing dst is replaced. Symlinks are recreated
// rather than followed.
func CopyFile(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := removeIfExists(dst); err != nil {
		return err
	}

	if info.Mode()&fs.ModeSymlink != 0 {
		target, err := os.Readlink(src)
		if err != nil {
			return err
		}
		return os.Symlink(target, dst)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("copy %s: not a regular file (%s)", src, info.Mode().Type())
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	// OpenFile applies the umask; restore the exact bits.
	return os.Chmod(dst, info.Mode().Perm())
}

// CopyTree copies the directory src into dst, preserving relative paths,
// permission bits and symlinks.
func CopyTree(src, dst string) error {
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		}
		return CopyFile(p, target)
	})
}

func removeIfExists(p string) error {
	if _, err := os.Lstat(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return os.Remove(p)
}
