// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pkgchan/pkgchan/pkg/recipe"
)

type buildFlagValues struct {
	watch       bool
	keepStaging bool
	rebuild     bool
}

// newBuildCommand creates the `pkgchan build` command.
func newBuildCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	flags := &buildFlagValues{}
	cmd := &cobra.Command{
		Use:   "build <name[@version]>...",
		Short: "Build recipes and their inputs into the store",
		Long: `Build one or more recipes. Inputs are realized first, independent inputs in
parallel up to the configured number of jobs. Recipes already committed to
the store are reused unless --rebuild is given.

With --watch, the channel directories are watched after the first build and
the targets are rebuilt whenever a channel file changes.`,
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: completeRecipes(app, rootFlags),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.newSession(cmd.Context(), rootFlags, sessionOptions{keepStaging: flags.keepStaging})
			if err != nil {
				return commandError(err, "start build")
			}
			if flags.watch {
				return commandError(runWatchMode(cmd.Context(), app, s, args), "watch channels")
			}
			return commandError(buildTargets(cmd.Context(), app, s, args, flags.rebuild), "build")
		},
	}
	cmd.Flags().BoolVarP(&flags.watch, "watch", "w", false, "rebuild the targets when channel files change")
	cmd.Flags().BoolVar(&flags.keepStaging, "keep-staging", false, "keep staging trees after successful builds")
	cmd.Flags().BoolVar(&flags.rebuild, "rebuild", false, "discard the targets' store entries before building")
	return cmd
}

// resolveTargets looks up every reference in the session's channel.
func resolveTargets(s *session, refs []string) ([]*recipe.Recipe, error) {
	targets := make([]*recipe.Recipe, 0, len(refs))
	var errs []error
	for _, ref := range refs {
		r, err := s.channel.Registry.Resolve(ref)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		targets = append(targets, r)
	}
	return targets, errors.Join(errs...)
}

// buildTargets realizes every target and prints one line per result. All
// targets are attempted; the returned error joins every failure.
func buildTargets(ctx context.Context, app *App, s *session, refs []string, rebuild bool) error {
	targets, err := resolveTargets(s, refs)
	if err != nil {
		return err
	}
	if rebuild {
		for _, t := range targets {
			if err := s.store.Remove(t.Identity()); err != nil {
				return permissionAware(err, "remove store entry", s.store.Path(t.Identity()))
			}
			s.resolver.Forget(t.Identity())
		}
	}

	paths := make([]string, len(targets))
	errs := make([]error, len(targets))
	var g errgroup.Group
	for i, t := range targets {
		g.Go(func() error {
			paths[i], errs[i] = s.resolver.Realize(ctx, t)
			return nil
		})
	}
	_ = g.Wait()

	for i, t := range targets {
		if errs[i] != nil {
			fmt.Fprintf(app.stderr, "%s %s\n", ErrorStyle.Render("✗"), recipeStyle.Render(t.Identity().String()))
			continue
		}
		fmt.Fprintf(app.stdout, "%s %s %s\n",
			SuccessStyle.Render("✓"), recipeStyle.Render(t.Identity().String()), VerboseStyle.Render(paths[i]))
	}
	return errors.Join(errs...)
}
