package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aryankumar/lomsync/internal/catalog"
	"github.com/aryankumar/lomsync/internal/ingest"
	"github.com/aryankumar/lomsync/internal/output"
	"github.com/aryankumar/lomsync/internal/util"
)

// newImportCmd creates the import command
func newImportCmd(a *app) *cobra.Command {
	var (
		file      string
		wide      bool
		progress  bool
		reconcile bool
	)

	cmd := &cobra.Command{
		Use:   "import -f FILE",
		Short: "Import a batch of learning resources",
		Long: `Import every item of a YAML or JSON file as a new resource.

Items are created in parallel on the worker pool. The batch mode decides how
results are gathered:

  ordered   wait for each item in input order, each for up to --timeout
  barrier   wait for the whole batch for up to --deadline
  parallel  create with at most --parallelism in flight, report successes only

Timed-out and cancelled items count as failures. Their creation may still have
been committed; --reconcile looks them up in the store after the batch.`,
		Example: `  # Import from a YAML file with the configured defaults
  lomsync import -f items.yaml

  # Wait at most 5s per item and show progress
  lomsync import -f items.yaml --timeout 5s --progress

  # Whole batch within one minute, into SQLite
  lomsync import -f items.json --mode barrier --deadline 1m --storage sqlite --db-path ./lomsync.db

  # Read items from stdin
  cat items.yaml | lomsync import -f -`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := loadItems(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}

			rt, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			return runImport(cmd, a, rt, items, importOptions{
				wide:      wide,
				progress:  progress,
				reconcile: reconcile,
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "items file (YAML or JSON), - for stdin")
	cmd.Flags().String("mode", "", "batch mode (ordered, barrier, parallel)")
	cmd.Flags().Duration("timeout", 0, "per-item wait in ordered mode")
	cmd.Flags().Duration("deadline", 0, "whole-batch wait in barrier mode")
	cmd.Flags().Int("parallelism", 0, "concurrent creations in parallel mode")
	cmd.Flags().BoolVar(&wide, "wide", false, "show locator and failure reason columns")
	cmd.Flags().BoolVar(&progress, "progress", false, "print per-item progress to stderr")
	cmd.Flags().BoolVar(&reconcile, "reconcile", false, "look up timed-out and cancelled items in the store afterwards")
	cmd.MarkFlagRequired("file")

	return cmd
}

type importOptions struct {
	wide      bool
	progress  bool
	reconcile bool
}

func runImport(cmd *cobra.Command, a *app, rt *runtime, items []catalog.Item, opts importOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	formatter := a.formatter(opts.wide)

	if ingest.Mode(rt.cfg.Import.Mode) == ingest.ModeParallel {
		resources := rt.importer.ImportParallel(ctx, items, rt.cfg.Import.Parallelism)
		values := make([]catalog.Resource, 0, len(resources))
		for _, r := range resources {
			values = append(values, *r)
		}
		rt.logger.Info("parallel import finished", "requested", len(items), "created", len(values))
		return formatter.FormatResources(out, values)
	}

	var (
		batch *ingest.BatchResult
		err   error
	)
	switch ingest.Mode(rt.cfg.Import.Mode) {
	case ingest.ModeBarrier:
		batch, err = rt.importer.ImportWithBarrier(ctx, items, rt.cfg.Import.BarrierDeadline)
	default:
		batch, err = rt.importer.ImportBatch(ctx, items, rt.cfg.Import.PerItemTimeout, progressObserver(cmd, rt, opts.progress))
	}

	if batch != nil {
		if ferr := formatter.FormatBatch(out, batch); ferr != nil {
			return ferr
		}
		if opts.reconcile {
			if rerr := reportReconciled(cmd, rt, batch); rerr != nil {
				return util.CombineErrors(err, rerr)
			}
		}
	}

	return err
}

// progressLabelWidth bounds item labels on --progress lines
const progressLabelWidth = 60

// progressObserver logs every outcome and, when asked, prints a progress line
func progressObserver(cmd *cobra.Command, rt *runtime, progress bool) ingest.Observer {
	obs := ingest.MultiObserver{ingest.NewLogObserver(rt.logger)}
	if progress {
		errOut := cmd.ErrOrStderr()
		obs = append(obs, ingest.ObserverFuncs{
			Progress: func(current, total int, label string) {
				fmt.Fprintf(errOut, "[%d/%d] %s\n", current, total, util.ShortLabel(label, progressLabelWidth))
			},
		})
	}
	return obs
}

// reportReconciled lists timed-out or cancelled items that were stored anyway
func reportReconciled(cmd *cobra.Command, rt *runtime, batch *ingest.BatchResult) error {
	found, err := ingest.Reconcile(cmd.Context(), rt.store, batch)
	if err != nil {
		return fmt.Errorf("failed to reconcile batch %s: %w", batch.ID, err)
	}
	if len(found) == 0 {
		return nil
	}

	rt.logger.Warn("items reported as not imported were stored", "batch", batch.ID, "count", len(found))
	fmt.Fprintf(cmd.OutOrStdout(), "\nStored despite timeout or cancellation:\n")
	return output.NewTableFormatter(&output.Options{NoColor: rt.cfg.Defaults.NoColor}).FormatResources(cmd.OutOrStdout(), found)
}

// loadItems reads an items file. The document is either a list of items or a
// mapping with an items key; JSON is accepted as YAML.
func loadItems(stdin io.Reader, path string) ([]catalog.Item, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read items file: %w", err)
	}

	return parseItems(data)
}

func parseItems(data []byte) ([]catalog.Item, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("items file is empty: %w", util.ErrInvalidItem)
	}

	var items []catalog.Item
	if err := yaml.Unmarshal(data, &items); err != nil {
		var doc struct {
			Items []catalog.Item `yaml:"items"`
		}
		if derr := yaml.Unmarshal(data, &doc); derr != nil {
			return nil, fmt.Errorf("failed to parse items file: %w", err)
		}
		items = doc.Items
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("items file contains no items: %w", util.ErrInvalidItem)
	}
	return items, nil
}
