// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pkgchan/pkgchan/internal/config"
)

// newConfigCommand creates the `pkgchan config` command tree. Subcommands
// that read configuration use the App's ConfigProvider and honor --config.
func newConfigCommand(app *App, rootFlags *rootFlagValues) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage pkgchan configuration",
		Long: `Manage pkgchan configuration.

Configuration is read from the first of:
  - the file given with --config
  - $XDG_CONFIG_HOME/pkgchan/config.cue (~/.config/pkgchan/config.cue)
  - ./config.cue

PKGCHAN_* environment variables override file values, for example
PKGCHAN_JOBS=8 or PKGCHAN_LOG_LEVEL=debug.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return commandError(showConfig(cmd.Context(), app, rootFlags), "show configuration")
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return commandError(initConfig(app), "create configuration")
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration and data directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return commandError(showConfigPath(cmd.Context(), app, rootFlags), "show paths")
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.loadConfig(cmd.Context(), rootFlags)
			if err != nil {
				return commandError(err, "dump configuration")
			}
			fmt.Fprint(app.stdout, config.GenerateCUE(cfg))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(ctx context.Context, app *App, rootFlags *rootFlagValues) error {
	cfg, err := app.loadConfig(ctx, rootFlags)
	if err != nil {
		return err
	}
	paths, err := cfg.Paths()
	if err != nil {
		return err
	}

	keyStyle := CmdStyle
	valueStyle := SuccessStyle
	w := app.stdout

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)

	if cfg.Source != "" {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), cfg.Source)
	} else {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(w)

	dirValue := func(set config.DirPath, resolved string) string {
		if set == "" {
			return valueStyle.Render(resolved) + " " + SubtitleStyle.Render("(default)")
		}
		return valueStyle.Render(resolved)
	}
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("store_dir"), dirValue(cfg.StoreDir, paths.Store))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("cache_dir"), dirValue(cfg.CacheDir, paths.Cache))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("work_dir"), dirValue(cfg.WorkDir, paths.Work))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("jobs"), valueStyle.Render(fmt.Sprint(cfg.Jobs)))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("max_file_size"), valueStyle.Render(fmt.Sprint(cfg.MaxFileSize)))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("channels"))
	if len(cfg.Channels) == 0 {
		fmt.Fprintf(w, "  %s\n", SubtitleStyle.Render("(none configured)"))
	}
	for _, ch := range cfg.Channels {
		fmt.Fprintf(w, "  - %s\n", valueStyle.Render(ch))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("log"))
	fmt.Fprintf(w, "  level: %s\n", valueStyle.Render(cfg.Log.Level.String()))
	fmt.Fprintf(w, "  format: %s\n", valueStyle.Render(string(cfg.Log.Format)))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("virtual_shell"))
	fmt.Fprintf(w, "  enable_builtins: %s\n", valueStyle.Render(fmt.Sprint(cfg.VirtualShell.EnableBuiltins)))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("fetch"))
	fmt.Fprintf(w, "  timeout: %s\n", valueStyle.Render(cfg.Fetch.Timeout.String()))

	return nil
}

func initConfig(app *App) error {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	existing := filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt)
	if _, statErr := os.Stat(existing); statErr == nil {
		fmt.Fprintf(app.stdout, "%s Configuration already exists at %s\n", WarningStyle.Render("!"), existing)
		return nil
	}

	path, err := config.CreateDefaultConfig()
	if err != nil {
		return permissionAware(err, "create configuration", cfgDir)
	}
	fmt.Fprintf(app.stdout, "%s Created default configuration at %s\n", SuccessStyle.Render("✓"), path)
	return nil
}

func showConfigPath(ctx context.Context, app *App, rootFlags *rootFlagValues) error {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	cfg, err := app.loadConfig(ctx, rootFlags)
	if err != nil {
		return err
	}
	paths, err := cfg.Paths()
	if err != nil {
		return err
	}

	fmt.Fprintf(app.stdout, "Config directory: %s\n", cfgDir)
	fmt.Fprintf(app.stdout, "Config file: %s\n", filepath.Join(cfgDir, config.ConfigFileName+"."+config.ConfigFileExt))
	fmt.Fprintf(app.stdout, "Store: %s\n", paths.Store)
	fmt.Fprintf(app.stdout, "Source cache: %s\n", paths.Cache)
	fmt.Fprintf(app.stdout, "Work directory: %s\n", paths.Work)
	return nil
}
