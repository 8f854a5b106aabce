// SPDX-License-Identifier: MPL-2.0

package builtin

import (
	"context"
	"fmt"
	"io"

	"mvdan.cc/sh/v3/interp"
)

type (
	// Command is an in-process utility callable from shell phases.
	Command interface {
		// Name returns the command name (e.g., "cp").
		Name() string
		// Run executes the command. args[0] is the command name.
		Run(ctx context.Context, args []string) error
	}

	// HandlerContext is the I/O and environment a command runs with.
	HandlerContext struct {
		Stdin     io.Reader
		Stdout    io.Writer
		Stderr    io.Writer
		Dir       string
		LookupEnv func(string) (string, bool)
	}

	handlerContextKey struct{}
)

// WithHandlerContext stores hc in ctx. Commands prefer it over the shell
// interpreter's handler context, which lets them run outside a shell.
func WithHandlerContext(ctx context.Context, hc *HandlerContext) context.Context {
	return context.WithValue(ctx, handlerContextKey{}, hc)
}

// handlerContext returns the HandlerContext stored in ctx, or derives one
// from the mvdan/sh interpreter's handler context.
func handlerContext(ctx context.Context) *HandlerContext {
	if hc, ok := ctx.Value(handlerContextKey{}).(*HandlerContext); ok {
		return hc
	}
	hc := interp.HandlerCtx(ctx)
	return &HandlerContext{
		Stdin:  hc.Stdin,
		Stdout: hc.Stdout,
		Stderr: hc.Stderr,
		Dir:    hc.Dir,
		LookupEnv: func(name string) (string, bool) {
			v := hc.Env.Get(name)
			return v.Str, v.Set
		},
	}
}

// wrapError prefixes err with "[builtin] <cmd>:" so that failures of
// in-process utilities are distinguishable from host command output.
func wrapError(cmdName string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("[builtin] %s: %w", cmdName, err)
}
