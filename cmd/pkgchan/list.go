// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pkgchan/pkgchan/pkg/recipe"
)

// newListCommand creates the `pkgchan list` command.
func newListCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the recipes of the loaded channels",
		Long: `List every recipe of the loaded channels with its versions, oldest first.
Versions already committed to the store are shown in green.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.newSession(cmd.Context(), rootFlags, sessionOptions{})
			if err != nil {
				return commandError(err, "list recipes")
			}
			listRecipes(app, s)
			return nil
		},
	}
}

func listRecipes(app *App, s *session) {
	// All is sorted by name then version, so each name's recipes are adjacent
	// and the last one carries the newest synopsis.
	var (
		names    []string
		synopses = map[string]string{}
		versions = map[string][]string{}
		width    int
	)
	for _, r := range s.channel.Registry.All() {
		name := r.Name()
		if _, seen := versions[name]; !seen {
			names = append(names, name)
			width = max(width, len(name))
		}
		v := CmdStyle.Render(r.Version())
		if s.store.Has(r.Identity()) {
			v = SuccessStyle.Render(r.Version())
		}
		versions[name] = append(versions[name], v)
		synopses[name] = r.Synopsis()
	}

	fmt.Fprintln(app.stdout, TitleStyle.Render(fmt.Sprintf("Recipes (%d):", s.channel.Registry.Len())))
	fmt.Fprintln(app.stdout)
	for _, name := range names {
		line := fmt.Sprintf("  %s  %s", recipeStyle.Render(fmt.Sprintf("%-*s", width, name)), strings.Join(versions[name], ", "))
		if syn := synopses[name]; syn != "" {
			line += "  " + SubtitleStyle.Render("- "+syn)
		}
		fmt.Fprintln(app.stdout, line)
	}
}

// recipeRefs returns a "name@version" reference for every loaded recipe.
func recipeRefs(reg *recipe.Registry) []string {
	all := reg.All()
	refs := make([]string, 0, len(all))
	for _, r := range all {
		refs = append(refs, r.Name()+"@"+r.Version())
	}
	return refs
}
