package main

import (
	"encoding/json"
	"fmt"
	"sort"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kingrea/lattice-hub/internal/feature"
	"github.com/kingrea/lattice-hub/internal/tui"
	"github.com/kingrea/lattice-hub/plugins"
)

func newPluginsCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Inspect, activate and resolve installed plugins",
	}
	cmd.AddCommand(
		newListCommand(opts),
		newFeaturesCommand(opts),
		newLookupCommand(opts),
		newLoadCommand(opts),
		newActivateCommand(opts),
		newDeactivateCommand(opts),
		newBrowseCommand(opts),
	)
	return cmd
}

func newListCommand(opts *globalOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List installed plugins and their features",
		Args:  cobra.NoArgs,
		RunE: withSession(opts, func(cmd *cobra.Command, _ []string, s *session) error {
			ctx := cmd.Context()
			if asJSON {
				public, err := s.loader.InstalledPlugins(ctx)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(public)
			}
			installed, err := s.loader.Plugins(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), plugins.RenderSummary(installed))
			return nil
		}),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the public projection as JSON")
	return cmd
}

func newFeaturesCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "features <type>",
		Short: "List features of a type offered by activated plugins",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(opts, func(cmd *cobra.Command, args []string, s *session) error {
			typ, err := feature.ParseType(args[0])
			if err != nil {
				return err
			}
			active, err := s.active(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range active.ListAll(typ) {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		}),
	}
}

func newLookupCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <type> <name>",
		Short: "Resolve a fully-qualified feature name to its identifier",
		Args:  cobra.ExactArgs(2),
		RunE: withSession(opts, func(cmd *cobra.Command, args []string, s *session) error {
			typ, err := feature.ParseType(args[0])
			if err != nil {
				return err
			}
			active, err := s.active(cmd.Context())
			if err != nil {
				return err
			}
			id, err := active.IdentifierAndAssert(typ, args[1])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		}),
	}
}

func newLoadCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "load <type> <name>",
		Short: "Interpret a feature implementation and print what its constructor returns",
		Args:  cobra.ExactArgs(2),
		RunE: withSession(opts, func(cmd *cobra.Command, args []string, s *session) error {
			typ, err := feature.ParseType(args[0])
			if err != nil {
				return err
			}
			active, err := s.active(cmd.Context())
			if err != nil {
				return err
			}
			value, err := active.LookupFeatureAndAssert(typ, args[1])
			if err != nil {
				return err
			}
			s.logger.Debug("feature loaded", zap.String("type", string(typ)), zap.String("name", args[1]))
			fmt.Fprintf(cmd.OutOrStdout(), "%v\n", value)
			return nil
		}),
	}
}

func newActivateCommand(opts *globalOptions) *cobra.Command {
	var (
		configFile string
		sets       = keyValueFlag{}
	)
	cmd := &cobra.Command{
		Use:   "activate <module>",
		Short: "Add an activation record for an installed plugin",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(opts, func(cmd *cobra.Command, args []string, s *session) error {
			attributes, err := buildAttributes(configFile, sets)
			if err != nil {
				return err
			}
			installed, err := s.loader.Plugins(cmd.Context())
			if err != nil {
				return err
			}
			if !isInstalled(installed, args[0]) {
				s.logger.Warn("activating a plugin that is not installed", zap.String("plugin", args[0]))
			}
			if err := s.cfg.Activate(args[0], attributes); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Activated %s\n", args[0])
			return nil
		}),
	}
	cmd.Flags().StringVar(&configFile, "config-file", "", "YAML or JSON file with plugin attributes")
	cmd.Flags().Var(&sets, "set", "plugin attribute (key=value, repeatable)")
	return cmd
}

func newDeactivateCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate <module>",
		Short: "Remove the activation records of a plugin",
		Args:  cobra.ExactArgs(1),
		RunE: withSession(opts, func(cmd *cobra.Command, args []string, s *session) error {
			removed, err := s.cfg.Deactivate(args[0])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("%s is not activated", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deactivated %s\n", args[0])
			return nil
		}),
	}
}

func newBrowseCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse installed plugins interactively",
		Args:  cobra.NoArgs,
		RunE: withSession(opts, func(cmd *cobra.Command, _ []string, s *session) error {
			active, err := s.active(cmd.Context())
			if err != nil {
				return err
			}
			installed, err := s.loader.Plugins(cmd.Context())
			if err != nil {
				return err
			}
			p := tea.NewProgram(
				tui.NewBrowser(s.cfg.ProjectDir, installed, active),
				tea.WithAltScreen(),
			)
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("run browser: %w", err)
			}
			return nil
		}),
	}
}

func isInstalled(installed []plugins.Plugin, name string) bool {
	for _, p := range installed {
		if p.Name == name {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
