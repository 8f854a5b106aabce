// SPDX-License-Identifier: MPL-2.0

package builtin

import (
	"context"

	"github.com/u-root/u-root/pkg/core"
	"github.com/u-root/u-root/pkg/core/cat"
	"github.com/u-root/u-root/pkg/core/chmod"
	"github.com/u-root/u-root/pkg/core/cp"
	"github.com/u-root/u-root/pkg/core/gzip"
	"github.com/u-root/u-root/pkg/core/mkdir"
	"github.com/u-root/u-root/pkg/core/mv"
	"github.com/u-root/u-root/pkg/core/rm"
	"github.com/u-root/u-root/pkg/core/tar"
	"github.com/u-root/u-root/pkg/core/touch"
)

type (
	// coreFactory returns a fresh u-root command; core commands keep per-run state.
	coreFactory func() core.Command

	// coreCommand adapts a u-root pkg/core utility to Command.
	coreCommand struct {
		name    string
		factory coreFactory
		// withArgv0 passes args[0] through; gzip uses it to detect gunzip and gzcat.
		withArgv0 bool
	}
)

func catFactory() core.Command   { return cat.New() }
func chmodFactory() core.Command { return chmod.New() }
func cpFactory() core.Command    { return cp.New() }
func gzipFactory() core.Command  { return gzip.New() }
func mkdirFactory() core.Command { return mkdir.New() }
func mvFactory() core.Command    { return mv.New() }
func rmFactory() core.Command    { return rm.New() }
func tarFactory() core.Command   { return tar.New() }
func touchFactory() core.Command { return touch.New() }

func newCoreCommand(name string, factory coreFactory) *coreCommand {
	return &coreCommand{name: name, factory: factory}
}

// Name returns the command name.
func (c *coreCommand) Name() string { return c.name }

// Run executes the wrapped u-root command with the handler context's I/O,
// working directory and environment.
func (c *coreCommand) Run(ctx context.Context, args []string) error {
	hc := handlerContext(ctx)
	cmd := c.factory()
	cmd.SetIO(hc.Stdin, hc.Stdout, hc.Stderr)
	cmd.SetWorkingDir(hc.Dir)
	cmd.SetLookupEnv(hc.LookupEnv)

	cmdArgs := args
	if !c.withArgv0 {
		cmdArgs = nil
		if len(args) > 1 {
			cmdArgs = args[1:]
		}
	}
	return wrapError(c.name, cmd.RunContext(ctx, cmdArgs...))
}
