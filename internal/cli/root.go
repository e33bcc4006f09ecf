package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/aryankumar/lomsync/internal/config"
	"github.com/aryankumar/lomsync/internal/output"
)

// flagKeys maps command-line flags to the configuration keys they override.
// Flags missing from the executing command are skipped.
var flagKeys = map[string]string{
	"output":       "defaults.outputFormat",
	"no-color":     "defaults.noColor",
	"storage":      "storage.driver",
	"db-path":      "storage.path",
	"dsn":          "storage.dsn",
	"metrics-addr": "metrics.addr",
	"max-workers":  "pool.maxWorkers",
	"mode":         "import.mode",
	"timeout":      "import.perItemTimeout",
	"deadline":     "import.barrierDeadline",
	"parallelism":  "import.parallelism",
	"wait":         "cache.deleteWait",
}

// app carries state shared by every command of one invocation
type app struct {
	cfgFile string
	manager *config.Manager
	cfg     *config.Config
	logger  *slog.Logger
}

// Execute runs the root command with the provided context
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

// newRootCmd creates the root command
func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "lomsync",
		Short: "lomsync - concurrent learning resource ingestion",
		Long: `lomsync imports learning resources in parallel batches and keeps a
synchronized read-through cache in front of the resource store.

Batches run on a bounded, elastic worker pool. Every item of a batch ends as
success, failure, timeout or cancelled, and the batch reports the totals.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig(cmd)
		},
	}

	// Define persistent flags
	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.lomsync/config.yaml or $HOME/.lomsync.yaml)")
	rootCmd.PersistentFlags().StringP("output", "o", "", "output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output with debug logging")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colored output")
	rootCmd.PersistentFlags().String("storage", "", "storage driver (memory, sqlite, postgres)")
	rootCmd.PersistentFlags().String("db-path", "", "SQLite database file")
	rootCmd.PersistentFlags().String("dsn", "", "Postgres connection string")
	rootCmd.PersistentFlags().String("metrics-addr", "", "serve Prometheus metrics on this address while the command runs")
	rootCmd.PersistentFlags().Int("max-workers", 0, "maximum worker pool size")

	// Add subcommands
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())
	rootCmd.AddCommand(newConfigCmd(a))
	rootCmd.AddCommand(newImportCmd(a))
	rootCmd.AddCommand(newGetCmd(a))
	rootCmd.AddCommand(newUpdateCmd(a))
	rootCmd.AddCommand(newDeleteCmd(a))
	rootCmd.AddCommand(newSearchCmd(a))
	rootCmd.AddCommand(newStatsCmd(a))

	return rootCmd
}

// initConfig loads configuration, binds flags over it and sets up logging
func (a *app) initConfig(cmd *cobra.Command) error {
	a.manager = config.NewManager(a.cfgFile)

	if err := bindFlags(a.manager, cmd.Flags()); err != nil {
		return err
	}

	cfg, err := a.manager.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.logger = setupLogging(cmd, cfg)
	if path := a.manager.Path(); path != "" {
		a.logger.Debug("loaded configuration", "file", path)
	}

	return nil
}

// bindFlags binds every known flag of the executing command to its key
func bindFlags(m *config.Manager, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := m.Viper().BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag %q: %w", name, err)
		}
	}
	return nil
}

// setupLogging configures structured logging with slog
func setupLogging(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	verbose, _ := cmd.Flags().GetBool("verbose")

	// Set log level based on verbose flag
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}

	// Create handler options
	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	var handler slog.Handler
	if cfg.Defaults.NoColor {
		// Use JSON handler for no-color mode
		handler = slog.NewJSONHandler(cmd.ErrOrStderr(), opts)
	} else {
		handler = slog.NewTextHandler(cmd.ErrOrStderr(), opts)
	}

	// Set default logger
	logger := slog.New(handler)
	slog.SetDefault(logger)

	if verbose {
		logger.Debug("verbose logging enabled")
	}
	return logger
}

// formatter returns the output formatter selected by configuration
func (a *app) formatter(wide bool) output.Formatter {
	return output.NewFormatter(
		output.Format(a.cfg.Defaults.OutputFormat),
		output.WithNoColor(a.cfg.Defaults.NoColor),
		output.WithWide(wide),
	)
}
