package cli

import (
	"github.com/spf13/cobra"

	"github.com/aryankumar/lomsync/internal/output"
)

// newStatsCmd creates the stats command
func newStatsCmd(a *app) *cobra.Command {
	var noLanguages bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache counters, pool gauges and resources per language",
		Long: `Show the service counters (queries, updates, errors, cache size), the worker
pool gauges and the number of resources per language.

Counters cover the current process only. Use --metrics-addr on a long-running
command to scrape them while it works.`,
		Example: `  # Counters and language breakdown of a SQLite store
  lomsync stats --storage sqlite --db-path ./lomsync.db

  # Machine-readable
  lomsync stats -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			report := output.StatsReport{}
			if !noLanguages {
				report.Languages, err = rt.cache.LanguageStats(cmd.Context())
				if err != nil {
					return err
				}
			}

			report.Counters = rt.cache.Counters()
			poolStats := rt.pool.Stats()
			report.Pool = &poolStats

			return a.formatter(false).FormatStats(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().BoolVar(&noLanguages, "no-languages", false, "skip the per-language count")

	return cmd
}
