// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// newValidateCommand creates the `pkgchan validate` command.
func newValidateCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check every channel file and recipe",
		Long: `Check every channel file against the recipe schema, construct every recipe
and plan its input closure. All problems are reported together. Nothing is
fetched or built.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.newSession(cmd.Context(), rootFlags, sessionOptions{})
			if err != nil {
				return commandError(err, "validate channels")
			}
			return commandError(validateChannel(app, s), "validate channels")
		},
	}
}

// validateChannel plans every loaded recipe so that unknown inputs and
// cycles are caught without building.
func validateChannel(app *App, s *session) error {
	var errs []error
	for _, rec := range s.channel.Registry.All() {
		if _, err := s.resolver.Plan(rec); err != nil {
			fmt.Fprintf(app.stderr, "%s %s: %v\n", ErrorStyle.Render("✗"), recipeStyle.Render(rec.Identity().String()), err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	fmt.Fprintf(app.stdout, "%s %d recipes in %d channel files are valid\n",
		SuccessStyle.Render("✓"), s.channel.Registry.Len(), len(s.channel.Files))
	return nil
}
