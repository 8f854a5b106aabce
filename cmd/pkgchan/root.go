// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/pkgchan/pkgchan/internal/config"
	"github.com/pkgchan/pkgchan/pkg/types"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the command tree bound to app.
func NewRootCommand(app *App) *cobra.Command {
	flags := &rootFlagValues{}

	rootCmd := &cobra.Command{
		Use:   config.AppName,
		Short: "Build packages from declarative recipes",
		Long: TitleStyle.Render(config.AppName) + SubtitleStyle.Render(" - build packages from declarative recipes") + `

pkgchan reads recipes from channel directories of CUE files. A recipe
names its source, its inputs, a build system and an install plan.
Building a recipe realizes its inputs first, runs its phases in a
staging tree and commits the installed files to the store.

` + SubtitleStyle.Render("Examples:") + `
  pkgchan --channel ./channel list        List the recipes of a channel
  pkgchan build hello                     Build the newest hello
  pkgchan build hello@2.12 --watch        Rebuild when the channel changes
  pkgchan plan wrapper                    Show the build order of wrapper
  pkgchan show hello -o json              Print a recipe definition
  pkgchan config show                     Show the effective configuration`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging and detailed error output")
	pf.StringVar(&flags.configPath, "config", "", "config file (default is $XDG_CONFIG_HOME/pkgchan/config.cue)")
	pf.StringArrayVarP(&flags.channels, "channel", "C", nil, "channel directory (repeatable, replaces the configured channels)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&flags.logFormat, "log-format", "", "log format: text, logfmt, json")

	rootCmd.AddCommand(
		newBuildCommand(app, flags),
		newPlanCommand(app, flags),
		newValidateCommand(app, flags),
		newListCommand(app, flags),
		newShowCommand(app, flags),
		newStoreCommand(app, flags),
		newConfigCommand(app, flags),
		newCompletionCommand(app),
	)

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits with the code of the failure, if any.
// This is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	rootCmd := NewRootCommand(app)
	verbose := func() bool {
		v, _ := rootCmd.PersistentFlags().GetBool("verbose")
		return v
	}

	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(func(w io.Writer, _ fang.Styles, err error) {
			renderError(w, err, verbose())
		}),
	); err != nil {
		os.Exit(int(exitCode(err)))
	}
}

// exitCode extracts the process exit code from err.
func exitCode(err error) types.ExitCode {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Code.Validate() != nil {
			return types.ExitFailure
		}
		return exitErr.Code
	}
	_, code := classifyError(err)
	return code
}
