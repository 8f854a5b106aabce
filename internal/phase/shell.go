// SPDX-License-Identifier: MPL-2.0

package phase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/pkgchan/pkgchan/internal/builtin"
	"github.com/pkgchan/pkgchan/pkg/recipe"
)

type (
	// Shell turns POSIX sh scripts into phase functions. Scripts run in-process
	// with errexit set, cwd at the staging root and the Environ variables.
	Shell struct {
		builtins *builtin.Registry
	}

	// ShellOption configures a Shell.
	ShellOption func(*Shell)

	// ScriptError reports a script that could not be parsed.
	ScriptError struct {
		Name  string
		Cause error
	}
)

// WithBuiltins routes registered commands to in-process implementations.
// A nil registry makes every command run as a host binary.
func WithBuiltins(reg *builtin.Registry) ShellOption {
	return func(s *Shell) { s.builtins = reg }
}

// NewShell creates a Shell. Without options it uses builtin.Default().
func NewShell(opts ...ShellOption) *Shell {
	s := &Shell{builtins: builtin.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ShellPhase returns a phase that interprets script with a default Shell.
// Syntax errors surface when the phase runs.
func ShellPhase(script string) recipe.PhaseFunc {
	return NewShell().Phase(script)
}

// Compile parses script now and returns the phase that runs it.
func (s *Shell) Compile(name, script string) (recipe.PhaseFunc, error) {
	prog, err := syntax.NewParser().Parse(strings.NewReader(script), name)
	if err != nil {
		return nil, &ScriptError{Name: name, Cause: err}
	}
	return func(ctx context.Context, env *recipe.PhaseEnv) error {
		return s.run(ctx, env, prog)
	}, nil
}

// Phase is like Compile but defers parsing until the phase runs.
func (s *Shell) Phase(script string) recipe.PhaseFunc {
	return func(ctx context.Context, env *recipe.PhaseEnv) error {
		prog, err := syntax.NewParser().Parse(strings.NewReader(script), "script")
		if err != nil {
			return &ScriptError{Name: "script", Cause: err}
		}
		return s.run(ctx, env, prog)
	}
}

func (s *Shell) run(ctx context.Context, env *recipe.PhaseEnv, prog *syntax.File) error {
	opts := []interp.RunnerOption{
		interp.Dir(env.StagingDir),
		interp.Env(expand.ListEnviron(Environ(env)...)),
		interp.StdIO(nil, env.Stdout, env.Stderr),
		interp.Params("-e"),
	}
	if s.builtins != nil {
		opts = append(opts, interp.ExecHandlers(s.builtins.ExecHandler))
	}

	runner, err := interp.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create interpreter: %w", err)
	}
	if err := runner.Run(ctx, prog); err != nil {
		var status interp.ExitStatus
		if errors.As(err, &status) {
			return fmt.Errorf("script exited with status %d", uint8(status))
		}
		return fmt.Errorf("script execution failed: %w", err)
	}
	return nil
}

// Error implements the error interface.
func (e *ScriptError) Error() string {
	return fmt.Sprintf("script %s: %v", e.Name, e.Cause)
}

// Unwrap returns the parse error.
func (e *ScriptError) Unwrap() error { return e.Cause }
