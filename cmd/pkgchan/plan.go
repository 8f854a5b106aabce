// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newPlanCommand creates the `pkgchan plan` command.
func newPlanCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "plan <name[@version]>",
		Short: "Show the build order of a recipe without building",
		Long: `Show the build order of a recipe's input closure, dependencies first and
the recipe itself last. Entries already committed to the store are marked.
Nothing is fetched or built.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeRecipes(app, rootFlags),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.newSession(cmd.Context(), rootFlags, sessionOptions{})
			if err != nil {
				return commandError(err, "plan")
			}
			return commandError(printPlan(app, s, args[0]), "plan "+args[0])
		},
	}
}

func printPlan(app *App, s *session, ref string) error {
	rec, err := s.channel.Registry.Resolve(ref)
	if err != nil {
		return err
	}
	order, err := s.resolver.Plan(rec)
	if err != nil {
		return err
	}

	fmt.Fprintln(app.stdout, TitleStyle.Render("Build plan for "+rec.Identity().String()))
	fmt.Fprintln(app.stdout)
	width := len(fmt.Sprint(len(order)))
	for i, id := range order {
		status := SubtitleStyle.Render("to build")
		if s.store.Has(id) {
			status = SuccessStyle.Render("in store")
		}
		fmt.Fprintf(app.stdout, "  %*d. %s %s\n", width, i+1, recipeStyle.Render(id.String()), status)
	}
	return nil
}
