// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/pkgchan/pkgchan/internal/issue"
	"github.com/pkgchan/pkgchan/pkg/cueutil"
)

const (
	// AppName is the application name.
	AppName = "pkgchan"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// EnvPrefix prefixes environment overrides: PKGCHAN_JOBS, PKGCHAN_LOG_LEVEL, ...
	EnvPrefix = "PKGCHAN"
)

//go:embed config_schema.cue
var configSchemaSource []byte

var configSchema = cueutil.NewSchema(configSchemaSource, "#Config")

type (
	// Paths holds the resolved store, cache and work directories.
	Paths struct {
		Store string
		Cache string
		Work  string
	}
)

// ConfigDir returns the pkgchan configuration directory using platform-specific
// conventions: Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		var err error
		if configDir, err = xdgDir("XDG_CONFIG_HOME", ".config"); err != nil {
			return "", err
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// DataDir returns the directory holding the default store.
func DataDir() (string, error) {
	dir, err := xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, AppName), nil
}

// CacheDir returns the directory holding the default fetch cache and work dir.
func CacheDir() (string, error) {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, AppName), nil
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to get cache directory: %w", err)
	}
	return filepath.Join(dir, AppName), nil
}

func xdgDir(env, homeRel string) (string, error) {
	if dir := os.Getenv(env); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, homeRel), nil
}

// Paths resolves the directory settings, filling unset ones from the XDG
// data and cache directories.
func (c *Config) Paths() (Paths, error) {
	var p Paths
	if c.StoreDir != "" {
		p.Store = string(c.StoreDir)
	} else {
		data, err := DataDir()
		if err != nil {
			return Paths{}, err
		}
		p.Store = filepath.Join(data, "store")
	}
	if c.CacheDir == "" || c.WorkDir == "" {
		cache, err := CacheDir()
		if err != nil {
			return Paths{}, err
		}
		p.Cache = filepath.Join(cache, "sources")
		p.Work = filepath.Join(cache, "work")
	}
	if c.CacheDir != "" {
		p.Cache = string(c.CacheDir)
	}
	if c.WorkDir != "" {
		p.Work = string(c.WorkDir)
	}
	return p, nil
}

// loadWithOptions performs option-driven config loading without mutating
// package-level cache state.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("store_dir", defaults.StoreDir)
	v.SetDefault("cache_dir", defaults.CacheDir)
	v.SetDefault("work_dir", defaults.WorkDir)
	v.SetDefault("channels", defaults.Channels)
	v.SetDefault("jobs", defaults.Jobs)
	v.SetDefault("max_file_size", defaults.MaxFileSize)
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)
	v.SetDefault("virtual_shell.enable_builtins", defaults.VirtualShell.EnableBuiltins)
	v.SetDefault("fetch.timeout", defaults.Fetch.Timeout)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath, err := locateConfigFile(opts)
	if err != nil {
		return nil, "", err
	}
	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Run 'pkgchan config show' to see the effective configuration").
				Wrap(err).
				BuildError()
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}

	// Environment overrides bypass the CUE schema, so check the decoded result.
	if valid, errs := cfg.IsValid(); !valid {
		ec := issue.NewErrorContext().
			WithOperation("validate configuration").
			WithSuggestion("Check PKGCHAN_* environment variables for typos")
		if resolvedPath != "" {
			ec = ec.WithResource(resolvedPath)
		}
		return nil, "", ec.Wrap(joinFieldErrors(errs)).BuildError()
	}

	return &cfg, resolvedPath, nil
}

// locateConfigFile returns the first config file in search order, or "" when
// none exists. An explicit path that does not exist is an error.
func locateConfigFile(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				WithSuggestion("Use 'pkgchan config show' to see default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
	if err != nil {
		return "", err
	}
	name := ConfigFileName + "." + ConfigFileExt
	for _, candidate := range []string{filepath.Join(cfgDir, name), name} {
		if fileExists(candidate) {
			return candidate, nil
		}
	}
	return "", nil
}

// joinFieldErrors flattens nested Invalid*ConfigError values so every field
// problem is printed.
func joinFieldErrors(errs []error) error {
	var b strings.Builder
	var walk func(errs []error, depth int)
	walk = func(errs []error, depth int) {
		for _, err := range errs {
			if depth > 0 {
				b.WriteString("\n" + strings.Repeat("  ", depth) + "- ")
			}
			b.WriteString(err.Error())
			switch e := err.(type) {
			case *InvalidConfigError:
				walk(e.FieldErrors, depth+1)
			case *InvalidLogConfigError:
				walk(e.FieldErrors, depth+1)
			case *InvalidFetchConfigError:
				walk(e.FieldErrors, depth+1)
			}
		}
	}
	walk(errs, 0)
	return &validationError{msg: b.String(), errs: errs}
}

// validationError keeps the original field errors reachable through errors.Is.
type validationError struct {
	msg  string
	errs []error
}

func (e *validationError) Error() string   { return e.msg }
func (e *validationError) Unwrap() []error { return e.errs }

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}

	return ConfigDir()
}

// loadCUEIntoViper validates a CUE config file against #Config and merges
// it into v over the defaults. Every field is optional.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	values, err := cueutil.Decode[map[string]any](configSchema, data,
		cueutil.WithFilename(path),
		cueutil.WithPartial(),
	)
	if err != nil {
		return err
	}
	if err := v.MergeConfigMap(*values); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig creates a default config file if it doesn't exist and
// returns its path.
func CreateDefaultConfig() (string, error) {
	cfgDir, err := ConfigDir()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	cfgPath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)

	if _, err := os.Stat(cfgPath); err == nil {
		return cfgPath, nil
	}

	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return cfgPath, nil
}

// GenerateCUE generates a CUE representation of the configuration.
// Unset directory settings are omitted so the XDG defaults keep applying.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// pkgchan configuration file\n\n")

	for _, kv := range []struct {
		key   string
		value DirPath
	}{{"store_dir", cfg.StoreDir}, {"cache_dir", cfg.CacheDir}, {"work_dir", cfg.WorkDir}} {
		if kv.value != "" {
			fmt.Fprintf(&sb, "%s: %q\n", kv.key, kv.value)
		}
	}

	sb.WriteString("channels: [")
	for i, ch := range cfg.Channels {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%q", ch)
	}
	sb.WriteString("]\n")

	fmt.Fprintf(&sb, "jobs: %d\n", cfg.Jobs)
	fmt.Fprintf(&sb, "max_file_size: %d\n", cfg.MaxFileSize)

	sb.WriteString("\nlog: {\n")
	if cfg.Log.Level != "" {
		fmt.Fprintf(&sb, "\tlevel: %q\n", cfg.Log.Level)
	}
	if cfg.Log.Format != "" {
		fmt.Fprintf(&sb, "\tformat: %q\n", cfg.Log.Format)
	}
	sb.WriteString("}\n")

	sb.WriteString("\nvirtual_shell: {\n")
	fmt.Fprintf(&sb, "\tenable_builtins: %v\n", cfg.VirtualShell.EnableBuiltins)
	sb.WriteString("}\n")

	sb.WriteString("\nfetch: {\n")
	if cfg.Fetch.Timeout != "" {
		fmt.Fprintf(&sb, "\ttimeout: %q\n", cfg.Fetch.Timeout)
	}
	sb.WriteString("}\n")

	return sb.String()
}
