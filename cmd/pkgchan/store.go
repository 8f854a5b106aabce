// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pkgchan/pkgchan/pkg/recipe"
)

var errVersionRequired = errors.New("store references need an explicit version")

// newStoreCommand creates the `pkgchan store` command tree. None of its
// subcommands read the channels.
func newStoreCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	storeCmd := &cobra.Command{
		Use:   "store",
		Short: "Inspect and prune the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	storeCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List committed store entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.newSession(cmd.Context(), rootFlags, sessionOptions{storeOnly: true})
			if err != nil {
				return commandError(err, "list store")
			}
			return commandError(listStore(app, s), "list store")
		},
	})

	storeCmd.AddCommand(&cobra.Command{
		Use:   "rm <name@version>...",
		Short: "Remove store entries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.newSession(cmd.Context(), rootFlags, sessionOptions{storeOnly: true})
			if err != nil {
				return commandError(err, "remove store entries")
			}
			return commandError(removeFromStore(app, s, args), "remove store entries")
		},
	})

	storeCmd.AddCommand(&cobra.Command{
		Use:   "clean",
		Short: "Delete leftovers of interrupted builds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := app.newSession(cmd.Context(), rootFlags, sessionOptions{storeOnly: true})
			if err != nil {
				return commandError(err, "clean store")
			}
			if err := s.store.Clean(); err != nil {
				return commandError(permissionAware(err, "clean store", s.store.Root()), "clean store")
			}
			fmt.Fprintf(app.stdout, "%s Cleaned %s\n", SuccessStyle.Render("✓"), s.store.Root())
			return nil
		},
	})

	return storeCmd
}

func listStore(app *App, s *session) error {
	receipts, err := s.store.List()
	if err != nil {
		return err
	}
	fmt.Fprintln(app.stdout, TitleStyle.Render(fmt.Sprintf("Store %s (%d):", s.store.Root(), len(receipts))))
	fmt.Fprintln(app.stdout)
	if len(receipts) == 0 {
		fmt.Fprintf(app.stdout, "  %s\n", SubtitleStyle.Render("(empty)"))
		return nil
	}
	for _, r := range receipts {
		id := recipe.Identity{Name: r.Name, Version: r.Version}
		fmt.Fprintf(app.stdout, "  %s  %s  %s\n",
			recipeStyle.Render(id.String()),
			VerboseStyle.Render(fmt.Sprintf("%d files, built %s", len(r.Files), r.BuiltAt.Format("2006-01-02 15:04"))),
			SubtitleStyle.Render(r.NarHash))
	}
	return nil
}

func removeFromStore(app *App, s *session, refs []string) error {
	for _, ref := range refs {
		name, version, err := recipe.ParseReference(ref)
		if err != nil {
			return err
		}
		if version == "" {
			return fmt.Errorf("%w: %q", errVersionRequired, ref)
		}
		id := recipe.Identity{Name: name, Version: version}
		if !s.store.Has(id) {
			fmt.Fprintf(app.stderr, "%s %s is not in the store\n", WarningStyle.Render("!"), id)
			continue
		}
		if err := s.store.Remove(id); err != nil {
			return permissionAware(err, "remove "+id.String(), s.store.Path(id))
		}
		fmt.Fprintf(app.stdout, "%s Removed %s\n", SuccessStyle.Render("✓"), recipeStyle.Render(id.String()))
	}
	return nil
}
