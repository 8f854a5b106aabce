// SPDX-License-Identifier: MPL-2.0

package builtin

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// lnCommand implements ln. u-root has no pkg/core ln.
type lnCommand struct{}

func newLnCommand() *lnCommand { return &lnCommand{} }

// Name returns the command name.
func (c *lnCommand) Name() string { return "ln" }

// Run executes ln.
// Usage: ln [-sf] TARGET LINK_NAME
//
// Symbolic link targets are stored verbatim, so relative targets stay relative.
func (c *lnCommand) Run(ctx context.Context, args []string) error {
	hc := handlerContext(ctx)

	fs := flag.NewFlagSet("ln", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	symbolic := fs.Bool("s", false, "symbolic link")
	force := fs.Bool("f", false, "force overwrite")
	if err := fs.Parse(args[1:]); err != nil {
		return wrapError(c.Name(), err)
	}

	posArgs := fs.Args()
	if len(posArgs) != 2 {
		return wrapError(c.Name(), fmt.Errorf("expected TARGET LINK_NAME, got %d operand(s)", len(posArgs)))
	}
	target, linkName := posArgs[0], resolve(hc.Dir, posArgs[1])

	if info, err := os.Stat(linkName); err == nil && info.IsDir() {
		linkName = filepath.Join(linkName, filepath.Base(target))
	}

	if *force {
		if _, err := os.Lstat(linkName); err == nil {
			if err := os.Remove(linkName); err != nil {
				return wrapError(c.Name(), fmt.Errorf("cannot remove %q: %w", linkName, err))
			}
		}
	}

	if *symbolic {
		return wrapError(c.Name(), os.Symlink(target, linkName))
	}
	return wrapError(c.Name(), os.Link(resolve(hc.Dir, target), linkName))
}

func resolve(dir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
