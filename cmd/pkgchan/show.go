// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pkgchan/pkgchan/internal/channel"
)

// newShowCommand creates the `pkgchan show` command.
func newShowCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:               "show <name[@version]>",
		Short:             "Print a recipe definition",
		Long:              `Print the definition of a recipe as it was declared in its channel file.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeRecipes(app, rootFlags),
		RunE: func(cmd *cobra.Command, args []string) error {
			format := channel.Format(output)
			if format != channel.FormatYAML && format != channel.FormatJSON {
				return commandError(fmt.Errorf("unknown output format %q (valid: yaml, json)", output), "show "+args[0])
			}
			s, err := app.newSession(cmd.Context(), rootFlags, sessionOptions{})
			if err != nil {
				return commandError(err, "show "+args[0])
			}
			rec, err := s.channel.Registry.Resolve(args[0])
			if err != nil {
				return commandError(err, "show "+args[0])
			}
			doc, ok := s.channel.Document(rec.Identity())
			if !ok {
				return commandError(fmt.Errorf("no channel document for %s", rec.Identity()), "show "+args[0])
			}
			return commandError(channel.Encode(app.stdout, doc, format), "show "+args[0])
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", string(channel.FormatYAML), "output format: yaml or json")
	_ = cmd.RegisterFlagCompletionFunc("output", cobra.FixedCompletions(
		[]string{string(channel.FormatYAML), string(channel.FormatJSON)}, cobra.ShellCompDirectiveNoFileComp))
	return cmd
}
