// SPDX-License-Identifier: MPL-2.0

package builtin

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"mvdan.cc/sh/v3/interp"
)

// Registry maps command names to in-process implementations.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Default returns a new Registry holding every builtin of this package.
func Default() *Registry {
	r := NewRegistry()
	for _, cmd := range []Command{
		newCoreCommand("cat", catFactory),
		newCoreCommand("chmod", chmodFactory),
		newCoreCommand("cp", cpFactory),
		&coreCommand{name: "gzip", factory: gzipFactory, withArgv0: true},
		newCoreCommand("mkdir", mkdirFactory),
		newCoreCommand("mv", mvFactory),
		newCoreCommand("rm", rmFactory),
		newCoreCommand("tar", tarFactory),
		newCoreCommand("touch", touchFactory),
		newLnCommand(),
		newSubstituteCommand(),
	} {
		// Names above are unique.
		_ = r.Register(cmd)
	}
	return r
}

// Register adds cmd. It fails if the name is empty or already registered.
func (r *Registry) Register(cmd Command) error {
	name := cmd.Name()
	if name == "" {
		return fmt.Errorf("builtin: cannot register command with empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.commands[name]; exists {
		return fmt.Errorf("builtin: command %q already registered", name)
	}
	r.commands[name] = cmd
	return nil
}

// Lookup retrieves a command by name.
func (r *Registry) Lookup(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Names returns the registered command names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Run executes the named command. args[0] must be the command name.
func (r *Registry) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("builtin: no command given")
	}
	cmd, ok := r.Lookup(args[0])
	if !ok {
		return fmt.Errorf("[builtin] %s: command not found", args[0])
	}
	return cmd.Run(ctx, args)
}

// ExecHandler is an interp.ExecHandlers middleware that runs registered
// commands in-process. Unregistered commands are passed to next; registered
// commands never fall back to a host binary, even when they fail.
func (r *Registry) ExecHandler(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(ctx context.Context, args []string) error {
		if len(args) == 0 {
			return next(ctx, args)
		}
		cmd, ok := r.Lookup(args[0])
		if !ok {
			return next(ctx, args)
		}
		if err := cmd.Run(ctx, args); err != nil {
			hc := handlerContext(ctx)
			if hc.Stderr != nil {
				fmt.Fprintln(hc.Stderr, err)
			}
			return interp.ExitStatus(1)
		}
		return nil
	}
}
