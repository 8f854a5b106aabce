// SPDX-License-Identifier: MPL-2.0

package phase

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/pkgchan/pkgchan/pkg/fspath"
	"github.com/pkgchan/pkgchan/pkg/recipe"
)

// ParamStripComponents overrides how many leading path components unpack drops
// from archive entries.
const ParamStripComponents = "strip-components"

type archiveKind int

const (
	archivePlain archiveKind = iota
	archiveTar
	archiveTarGzip
	archiveTarXz
	archiveZip
)

// Unpack returns the default unpack phase. Archives are extracted into the
// staging root, directories are copied, and any other file is copied as is.
// defaultStrip is used unless the recipe sets the strip-components param.
func Unpack(defaultStrip int) recipe.PhaseFunc {
	return func(ctx context.Context, env *recipe.PhaseEnv) error {
		if env.SourcePath == "" {
			return nil
		}
		strip := defaultStrip
		if v, ok := env.Params[ParamStripComponents]; ok {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return fmt.Errorf("param %s: %q is not a non-negative integer", ParamStripComponents, v)
			}
			strip = n
		}

		info, err := os.Stat(env.SourcePath)
		if err != nil {
			return err
		}
		if info.IsDir() {
			env.Logger.Debug("copying source tree", "source", env.SourcePath)
			return fspath.CopyTree(env.SourcePath, env.StagingDir)
		}

		kind := detectArchive(env.SourcePath)
		env.Logger.Debug("unpacking source", "source", env.SourcePath, "strip", strip)
		switch kind {
		case archiveZip:
			return extractZip(ctx, env.SourcePath, env.StagingDir, strip)
		case archiveTar, archiveTarGzip, archiveTarXz:
			return extractTarFile(ctx, env.SourcePath, env.StagingDir, kind, strip)
		default:
			return fspath.CopyFile(env.SourcePath, filepath.Join(env.StagingDir, sourceBase(env.SourcePath)))
		}
	}
}

func detectArchive(name string) archiveKind {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return archiveTarGzip
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return archiveTarXz
	case strings.HasSuffix(lower, ".tar"):
		return archiveTar
	case strings.HasSuffix(lower, ".zip"):
		return archiveZip
	default:
		return archivePlain
	}
}

// sourceBase strips the "<digest>-" prefix the fetch cache puts on file names.
func sourceBase(p string) string {
	base := filepath.Base(p)
	if prefix, rest, ok := strings.Cut(base, "-"); ok && len(prefix) == 52 && rest != "" {
		return rest
	}
	return base
}

func extractTarFile(ctx context.Context, src, dest string, kind archiveKind, strip int) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	switch kind {
	case archiveTarGzip:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(src), err)
		}
		defer gz.Close()
		r = gz
	case archiveTarXz:
		xr, err := xz.NewReader(f)
		if err != nil {
			return fmt.Errorf("%s: %w", filepath.Base(src), err)
		}
		r = xr
	}
	return extractTar(ctx, r, dest, strip)
}

func extractTar(ctx context.Context, r io.Reader, dest string, strip int) error {
	tr := tar.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		name, ok := stripComponents(hdr.Name, strip)
		if !ok {
			continue
		}
		target, err := fspath.SafeJoin(dest, name)
		if err != nil {
			return err
		}

		mode := fs.FileMode(hdr.Mode).Perm()
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := mkdirInside(dest, target, mode|0o700); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(dest, target, tr, mode); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := writeSymlink(dest, target, hdr.Linkname); err != nil {
				return err
			}
		case tar.TypeLink:
			linkName, ok := stripComponents(hdr.Linkname, strip)
			if !ok {
				return fmt.Errorf("hard link %s points at stripped entry %s", hdr.Name, hdr.Linkname)
			}
			old, err := fspath.SafeJoin(dest, linkName)
			if err != nil {
				return err
			}
			if err := prepareParent(dest, target); err != nil {
				return err
			}
			if err := os.Link(old, target); err != nil {
				return err
			}
		default:
			// Devices, FIFOs and PAX metadata have no place in a staging tree.
		}
	}
}

func extractZip(ctx context.Context, src, dest string, strip int) error {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer zr.Close()

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		name, ok := stripComponents(f.Name, strip)
		if !ok {
			continue
		}
		target, err := fspath.SafeJoin(dest, name)
		if err != nil {
			return err
		}

		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := mkdirInside(dest, target, mode.Perm()|0o700); err != nil {
				return err
			}
		case mode&fs.ModeSymlink != 0:
			rc, err := f.Open()
			if err != nil {
				return err
			}
			link, err := io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return err
			}
			if err := writeSymlink(dest, target, string(link)); err != nil {
				return err
			}
		default:
			rc, err := f.Open()
			if err != nil {
				return err
			}
			perm := mode.Perm()
			if perm == 0 {
				perm = 0o644
			}
			err = writeFile(dest, target, rc, perm)
			rc.Close()
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// stripComponents drops the first n slash-separated components of name and
// reports false when nothing is left. Names that climb out of the archive
// root are returned unstripped so that the root-confined join rejects them.
func stripComponents(name string, n int) (string, bool) {
	name = path.Clean(strings.TrimLeft(strings.ReplaceAll(name, "\\", "/"), "/"))
	if name == "." {
		return "", false
	}
	if name == ".." || strings.HasPrefix(name, "../") {
		return name, true
	}
	parts := strings.Split(name, "/")
	if len(parts) <= n {
		return "", false
	}
	return strings.Join(parts[n:], "/"), true
}

func writeFile(root, target string, r io.Reader, mode fs.FileMode) error {
	if err := prepareParent(root, target); err != nil {
		return err
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chmod(target, mode)
}

func writeSymlink(root, target, linkname string) error {
	if err := prepareParent(root, target); err != nil {
		return err
	}
	return os.Symlink(linkname, target)
}

// prepareParent creates target's parent inside root and removes any existing target.
func prepareParent(root, target string) error {
	if err := mkdirInside(root, filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if _, err := os.Lstat(target); err == nil {
		return os.RemoveAll(target)
	}
	return nil
}

// mkdirInside creates dir unless its deepest existing ancestor resolves outside
// root, which happens when an earlier archive entry planted a symlink.
func mkdirInside(root, dir string, perm fs.FileMode) error {
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return err
	}
	existing := dir
	for {
		if _, err := os.Lstat(existing); err == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		existing = parent
	}
	real, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return err
	}
	if !fspath.IsWithin(realRoot, real) {
		return fmt.Errorf("%w: %s resolves to %s", fspath.ErrEscapesRoot, existing, real)
	}
	return os.MkdirAll(dir, perm)
}
