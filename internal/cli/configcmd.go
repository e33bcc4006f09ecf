package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aryankumar/lomsync/internal/config"
	"github.com/aryankumar/lomsync/internal/output"
)

// newConfigCmd creates the config command group
func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the lomsync configuration",
	}

	cmd.AddCommand(newConfigViewCmd(a))
	cmd.AddCommand(newConfigInitCmd(a))

	return cmd
}

// newConfigViewCmd prints the effective configuration
func newConfigViewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "view",
		Short: "Print the effective configuration after file, environment and flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format := output.Format(a.cfg.Defaults.OutputFormat)
			if format == output.FormatTable {
				format = output.FormatYAML
			}
			return output.NewFormatter(format).Format(cmd.OutOrStdout(), a.cfg)
		},
	}
}

// newConfigInitCmd writes the defaults to the config file
func newConfigInitCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with the default settings",
		Example: `  # Create ~/.lomsync/config.yaml
  lomsync config init

  # Write somewhere else, replacing an existing file
  lomsync config init --config ./lomsync.yaml --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path := a.manager.Path(); path != "" && !force {
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("config file %s already exists, use --force to replace it", path)
				}
			}

			a.manager.SetConfig(config.Default())
			if err := a.manager.Save(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", a.manager.Path())
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "replace an existing config file")

	return cmd
}
