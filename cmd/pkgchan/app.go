// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/pkgchan/pkgchan/internal/build"
	"github.com/pkgchan/pkgchan/internal/builtin"
	"github.com/pkgchan/pkgchan/internal/channel"
	"github.com/pkgchan/pkgchan/internal/config"
	"github.com/pkgchan/pkgchan/internal/fetch"
	"github.com/pkgchan/pkgchan/internal/install"
	"github.com/pkgchan/pkgchan/internal/issue"
	"github.com/pkgchan/pkgchan/internal/logging"
	"github.com/pkgchan/pkgchan/internal/phase"
	"github.com/pkgchan/pkgchan/internal/resolve"
	"github.com/pkgchan/pkgchan/internal/store"
	"github.com/pkgchan/pkgchan/pkg/recipe"
)

type (
	// App is the composition root of the CLI. Command handlers receive it and
	// build a session per invocation.
	App struct {
		Config ConfigProvider
		stdout io.Writer
		stderr io.Writer
	}

	// Dependencies are the injection points for NewApp. Nil fields get
	// production defaults.
	Dependencies struct {
		Config ConfigProvider
		Stdout io.Writer
		Stderr io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// rootFlagValues holds the persistent flags shared by every command.
	rootFlagValues struct {
		configPath string
		channels   []string
		logLevel   string
		logFormat  string
		verbose    bool
	}

	// session is everything one command invocation needs, wired from the
	// effective configuration.
	session struct {
		cfg      *config.Config
		paths    config.Paths
		logger   *log.Logger
		shell    *phase.Shell
		dirs     []string
		channel  *channel.Channel
		store    *store.Store
		builder  *build.Builder
		resolver *resolve.Resolver
	}

	// sessionOptions tunes which parts of a session are built.
	sessionOptions struct {
		// storeOnly skips channel loading.
		storeOnly   bool
		keepStaging bool
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	return &App{Config: deps.Config, stdout: deps.Stdout, stderr: deps.Stderr}
}

// loadConfig loads the configuration and applies flag overrides on top.
func (app *App) loadConfig(ctx context.Context, flags *rootFlagValues) (*config.Config, error) {
	cfg, err := app.Config.Load(ctx, config.LoadOptions{ConfigFilePath: flags.configPath})
	if err != nil {
		return nil, withIssue(err, "load configuration", issue.ConfigLoadFailedId)
	}
	if len(flags.channels) > 0 {
		cfg.Channels = flags.channels
	}
	if flags.logLevel != "" {
		cfg.Log.Level = config.LogLevel(flags.logLevel)
	}
	if flags.logFormat != "" {
		cfg.Log.Format = logging.Format(flags.logFormat)
	}
	if flags.verbose && flags.logLevel == "" {
		cfg.Log.Level = config.LogLevelDebug
	}
	if ok, errs := cfg.IsValid(); !ok {
		return nil, issue.NewErrorContext().
			WithOperation("apply command-line flags").
			WithSuggestion("Valid log levels: debug, info, warn, error").
			WithSuggestion("Valid log formats: text, logfmt, json").
			WithIssue(issue.ConfigLoadFailedId).
			Wrap(errors.Join(errs...)).
			BuildError()
	}
	return cfg, nil
}

// newSession wires the configured components in dependency order:
// logger, shell, channel, store, fetcher, executor, builder, resolver.
func (app *App) newSession(ctx context.Context, flags *rootFlagValues, opts sessionOptions) (*session, error) {
	cfg, err := app.loadConfig(ctx, flags)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(app.stderr, logging.Options{
		Level:  cfg.Log.Level.String(),
		Format: cfg.Log.Format,
		Prefix: config.AppName,
	})
	if err != nil {
		return nil, err
	}
	paths, err := cfg.Paths()
	if err != nil {
		return nil, fmt.Errorf("resolving directories: %w", err)
	}

	s := &session{cfg: cfg, paths: paths, logger: logger, dirs: cfg.Channels}

	s.store, err = store.Open(paths.Store, store.WithLogger(logger))
	if err != nil {
		return nil, permissionAware(err, "open store", paths.Store)
	}
	if opts.storeOnly {
		return s, nil
	}

	var builtins *builtin.Registry
	if cfg.VirtualShell.EnableBuiltins {
		builtins = builtin.Default()
	}
	s.shell = phase.NewShell(phase.WithBuiltins(builtins))
	catalog := phase.DefaultCatalog(s.shell)

	if err := s.loadChannel(catalog); err != nil {
		return nil, err
	}

	timeout, err := cfg.Fetch.Timeout.Parse()
	if err != nil {
		return nil, err
	}
	fetcher := fetch.NewMux(paths.Cache, paths.Work, fetch.WithLogger(logger), fetch.WithTimeout(timeout))

	executor, err := phase.NewExecutor(catalog, paths.Work,
		phase.WithLogger(logger),
		phase.WithOutput(phaseWriter(logger), phaseWriter(logger)),
	)
	if err != nil {
		return nil, err
	}
	s.builder = build.New(fetcher, executor, install.NewApplier(install.WithLogger(logger)), s.store,
		build.WithLogger(logger),
		build.WithKeepStaging(opts.keepStaging),
	)
	if s.resolver, err = s.newResolver(); err != nil {
		return nil, err
	}
	return s, nil
}

// newResolver creates a resolver over the loaded channel, seeded with every
// committed store entry so their input closures are not walked again.
func (s *session) newResolver() (*resolve.Resolver, error) {
	receipts, err := s.store.List()
	if err != nil {
		return nil, permissionAware(err, "read store receipts", s.store.Root())
	}
	opts := make([]resolve.Option, 0, len(receipts)+2)
	for _, r := range receipts {
		id := recipe.Identity{Name: r.Name, Version: r.Version}
		opts = append(opts, resolve.WithPrebuilt(id, s.store.Path(id)))
	}
	opts = append(opts, resolve.WithJobs(s.cfg.Jobs), resolve.WithLogger(s.logger))
	return resolve.New(s.channel.Registry, s.builder, opts...), nil
}

// loadChannel reads every configured channel directory into s.channel.
func (s *session) loadChannel(catalog recipe.Catalog) error {
	if len(s.dirs) == 0 {
		return issue.NewErrorContext().
			WithOperation("load channels").
			WithSuggestion("Pass --channel <dir> or set channels in the config file").
			WithIssue(issue.ChannelNotFoundId).
			Wrap(errNoChannels).
			BuildError()
	}
	ch, err := channel.NewLoader(s.shell, catalog,
		channel.WithLogger(s.logger),
		channel.WithMaxFileSize(s.cfg.MaxFileSize),
	).Load(s.dirs...)
	if err != nil {
		return err
	}
	if len(ch.Files) == 0 {
		return issue.NewErrorContext().
			WithOperation("load channels").
			WithResource(fmt.Sprint(s.dirs)).
			WithIssue(issue.ChannelNotFoundId).
			Wrap(errNoChannels).
			BuildError()
	}
	s.channel = ch
	return nil
}

// reload re-reads the channel directories and rebinds the resolver to the
// new registry. Builds already committed to the store are kept.
func (s *session) reload() error {
	if err := s.loadChannel(s.channel.Registry.Catalog()); err != nil {
		return err
	}
	resolver, err := s.newResolver()
	if err != nil {
		return err
	}
	s.resolver = resolver
	return nil
}

// phaseWriter sends phase script output to the logger at debug level, one
// record per line.
func phaseWriter(logger *log.Logger) io.Writer {
	return logger.StandardLog(log.StandardLogOptions{ForceLevel: log.DebugLevel}).Writer()
}

// permissionAware links permission failures to their catalog entry.
func permissionAware(err error, op, resource string) error {
	if !errors.Is(err, os.ErrPermission) {
		return err
	}
	return issue.NewErrorContext().
		WithOperation(op).
		WithResource(resource).
		WithIssue(issue.PermissionDeniedId).
		Wrap(err).
		BuildError()
}
