package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kingrea/lattice-hub/internal/config"
	"github.com/kingrea/lattice-hub/internal/container"
	"github.com/kingrea/lattice-hub/internal/logging"
	"github.com/kingrea/lattice-hub/plugins"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	project  string
	testing  bool
	logLevel string
}

func newRootCommand(version, commit, date string) *cobra.Command {
	opts := &globalOptions{}
	rootCmd := &cobra.Command{
		Use:   "hub",
		Short: "hub discovers and activates plugins installed in a project",
		Long: `hub crawls a project's package.json dependency graph for modules tagged
with the hub-plugin keyword, catalogs the features each one offers, and resolves
features of activated plugins to loadable identifiers.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.project, "project", "", "path to the project directory (defaults to cwd)")
	flags.BoolVar(&opts.testing, "testing", false, "also crawl the project's devDependencies")
	flags.StringVar(&opts.logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")

	rootCmd.AddCommand(newInitCommand(opts))
	rootCmd.AddCommand(newPluginsCommand(opts))
	return rootCmd
}

func newInitCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the .hub directory and a default config.yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := opts.projectDir()
			if err != nil {
				return err
			}
			if err := config.InitHubDir(dir); err != nil {
				return fmt.Errorf("init %s: %w", config.HubDir, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s\n", filepath.Join(dir, config.HubDir))
			return nil
		},
	}
}

func (o *globalOptions) projectDir() (string, error) {
	project := strings.TrimSpace(o.project)
	if project == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("determine working directory: %w", err)
		}
		project = cwd
	}
	return filepath.Abs(project)
}

// session is everything a plugin command needs: configuration, a logger and
// a loader bound to the project.
type session struct {
	cfg      *config.Config
	logger   *zap.Logger
	loader   *plugins.Loader
	registry *container.Registry
	close    func() error
}

func (o *globalOptions) openSession(cmd *cobra.Command) (*session, error) {
	dir, err := o.projectDir()
	if err != nil {
		return nil, err
	}
	cfg, err := config.NewConfig(dir)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("testing") {
		cfg.Project.Testing = o.testing
	}
	logOpts := logging.Options{
		Level:  cfg.Project.Log.Level,
		Format: cfg.Project.Log.Format,
	}
	if o.logLevel != "" {
		logOpts.Level = o.logLevel
	}
	if cfg.Project.Log.File {
		logOpts.FilePath = cfg.LogFilePath()
	}
	logger, closeLog, err := logging.New(logOpts)
	if err != nil {
		return nil, err
	}
	loader, err := plugins.New(cfg, plugins.WithLogger(logger))
	if err != nil {
		_ = closeLog()
		return nil, err
	}
	return &session{
		cfg:      cfg,
		logger:   logger,
		loader:   loader,
		registry: container.NewRegistry(),
		close:    closeLog,
	}, nil
}

func (s *session) active(ctx context.Context) (*plugins.Active, error) {
	return s.loader.ActivePlugins(ctx, s.cfg.PluginConfigs(), s.registry)
}

// withSession opens a session around fn and releases it afterwards.
func withSession(opts *globalOptions, fn func(cmd *cobra.Command, args []string, s *session) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := opts.openSession(cmd)
		if err != nil {
			return err
		}
		defer func() { _ = s.close() }()
		return fn(cmd, args, s)
	}
}
