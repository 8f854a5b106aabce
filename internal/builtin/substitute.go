// SPDX-License-Identifier: MPL-2.0

package builtin

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
)

// substituteCommand rewrites a file in place with regular-expression
// replacements. Patch phases use it to fix hard-coded paths in staged files.
type substituteCommand struct{}

func newSubstituteCommand() *substituteCommand { return &substituteCommand{} }

// Name returns the command name.
func (c *substituteCommand) Name() string { return "substitute" }

// Run executes substitute.
// Usage: substitute [-strict] FILE REGEXP REPLACEMENT [REGEXP REPLACEMENT]...
//
// REPLACEMENT may reference groups as ${1}. Pairs apply in order. With -strict,
// a REGEXP that matches nothing is an error.
func (c *substituteCommand) Run(ctx context.Context, args []string) error {
	hc := handlerContext(ctx)

	fs := flag.NewFlagSet("substitute", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	strict := fs.Bool("strict", false, "fail when a pattern matches nothing")
	if err := fs.Parse(args[1:]); err != nil {
		return wrapError(c.Name(), err)
	}

	pos := fs.Args()
	if len(pos) < 3 || len(pos)%2 == 0 {
		return wrapError(c.Name(), fmt.Errorf("usage: substitute [-strict] FILE REGEXP REPLACEMENT [REGEXP REPLACEMENT]..."))
	}
	return wrapError(c.Name(), SubstituteFile(resolve(hc.Dir, pos[0]), pos[1:], *strict))
}

// SubstituteFile applies REGEXP/REPLACEMENT pairs to the file at path,
// preserving its permissions.
func SubstituteFile(path string, pairs []string, strict bool) error {
	if len(pairs)%2 != 0 {
		return fmt.Errorf("odd number of pattern/replacement arguments")
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	for i := 0; i < len(pairs); i += 2 {
		re, err := regexp.Compile(pairs[i])
		if err != nil {
			return fmt.Errorf("pattern %q: %w", pairs[i], err)
		}
		if strict && !re.Match(data) {
			return fmt.Errorf("pattern %q matched nothing in %s", pairs[i], path)
		}
		data = re.ReplaceAll(data, []byte(pairs[i+1]))
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".substitute-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), info.Mode().Perm()); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
