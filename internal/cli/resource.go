package cli

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/aryankumar/lomsync/internal/catalog"
	"github.com/aryankumar/lomsync/internal/util"
)

// parseIDs converts command arguments to resource IDs
func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid resource ID %q: must be a positive integer", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// newGetCmd creates the get command
func newGetCmd(a *app) *cobra.Command {
	var (
		wide        bool
		loadTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "get ID [ID...]",
		Short: "Show resources by ID",
		Long: `Show resources by ID through the read-through cache.

Several IDs are loaded in parallel on the worker pool. Resources that do not
exist are skipped; whatever loaded within --load-timeout is shown.`,
		Example: `  # Show one resource
  lomsync get 42

  # Load several in parallel, as JSON
  lomsync get 1 2 3 -o json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}

			rt, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			formatter := a.formatter(wide)

			if len(ids) == 1 {
				r, err := rt.cache.ReadThrough(cmd.Context(), ids[0])
				if err != nil {
					return err
				}
				return formatter.FormatResources(cmd.OutOrStdout(), []catalog.Resource{r})
			}

			resources, loadErr := rt.cache.LoadMany(cmd.Context(), ids, loadTimeout)
			if err := formatter.FormatResources(cmd.OutOrStdout(), resources); err != nil {
				return err
			}
			if loadErr != nil {
				return loadErr
			}
			if missing := len(ids) - len(resources); missing > 0 {
				rt.logger.Warn("some resources were not found", "requested", len(ids), "missing", missing)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&wide, "wide", false, "show locator and update time columns")
	cmd.Flags().DurationVar(&loadTimeout, "load-timeout", 30*time.Second, "wait for parallel loads")

	return cmd
}

// newUpdateCmd creates the update command
func newUpdateCmd(a *app) *cobra.Command {
	var (
		file        string
		title       string
		locator     string
		description string
		language    string
	)

	cmd := &cobra.Command{
		Use:   "update [ID]",
		Short: "Update one resource, or many in one transaction",
		Long: `Update a resource through the cache. The cached entry is invalidated whether
or not the store accepts the change.

With --file, every resource in the file is applied under one exclusive cache
lock, in a single transaction when the store supports it.`,
		Example: `  # Change the title of resource 42
  lomsync update 42 --title "Intro to Go, 2nd edition"

  # Apply a batch of updates
  lomsync update -f updates.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" && len(args) == 0 {
				return fmt.Errorf("either a resource ID or --file is required")
			}
			if file != "" && len(args) > 0 {
				return fmt.Errorf("a resource ID and --file cannot be combined")
			}

			rt, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			ctx := cmd.Context()

			if file != "" {
				resources, err := loadResources(file)
				if err != nil {
					return err
				}
				if err := rt.cache.BatchUpdate(ctx, resources); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %d resources\n", len(resources))
				return nil
			}

			ids, err := parseIDs(args)
			if err != nil {
				return err
			}

			r, err := rt.cache.ReadThrough(ctx, ids[0])
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("title") {
				r.Title = title
			}
			if flags.Changed("locator") {
				r.Locator = locator
			}
			if flags.Changed("description") {
				r.Description = description
			}
			if flags.Changed("language") {
				r.Language = language
			}

			if err := rt.cache.WriteThrough(ctx, r); err != nil {
				return err
			}

			updated, err := rt.cache.ReadThrough(ctx, r.ID)
			if err != nil {
				return err
			}
			return a.formatter(false).FormatResources(cmd.OutOrStdout(), []catalog.Resource{updated})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML or JSON list of resources to update in one batch")
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&locator, "locator", "", "new locator")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&language, "language", "", "new language")

	return cmd
}

// loadResources reads a YAML or JSON list of resources
func loadResources(path string) ([]catalog.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read resources file: %w", err)
	}

	var resources []catalog.Resource
	if err := yaml.Unmarshal(data, &resources); err != nil {
		return nil, fmt.Errorf("failed to parse resources file: %w", err)
	}
	for i, r := range resources {
		if r.ID <= 0 {
			return nil, fmt.Errorf("resource %d in %s has no id", i+1, path)
		}
	}
	return resources, nil
}

// newDeleteCmd creates the delete command
func newDeleteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a resource, waiting a bounded time for the delete lock",
		Long: `Delete a resource from the store and the cache.

Deletes are serialized by a dedicated lock. If the lock cannot be taken within
--wait the command gives up and reports the resource as busy; --wait 0 makes a
single attempt.`,
		Example: `  # Delete with the configured wait
  lomsync delete 42

  # Give up immediately if another delete is running
  lomsync delete 42 --wait 0`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}

			rt, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			deleted, err := rt.cache.DeleteBounded(cmd.Context(), ids[0], rt.cfg.Cache.DeleteWait)
			if err != nil {
				return err
			}
			if !deleted {
				return fmt.Errorf("resource %d not deleted within %s: %w", ids[0], rt.cfg.Cache.DeleteWait, util.ErrLockTimeout)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Resource %d deleted\n", ids[0])
			return nil
		},
	}

	cmd.Flags().Duration("wait", 5*time.Second, "maximum wait for the delete lock")

	return cmd
}

// newSearchCmd creates the search command
func newSearchCmd(a *app) *cobra.Command {
	var wide bool

	cmd := &cobra.Command{
		Use:   "search KEYWORD",
		Short: "Find resources whose title contains a keyword",
		Example: `  # Case-insensitive keyword search
  lomsync search concurrency -o yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			resources, err := rt.cache.Search(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.formatter(wide).FormatResources(cmd.OutOrStdout(), resources)
		},
	}

	cmd.Flags().BoolVar(&wide, "wide", false, "show locator and update time columns")

	return cmd
}
