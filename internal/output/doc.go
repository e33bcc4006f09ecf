// Package output renders lomsync command results as tables, JSON or YAML.
//
// # Basic Usage
//
//	formatter := output.NewFormatter(output.FormatTable, output.WithNoColor(noColor))
//
//	// One row per imported item, then a summary line
//	formatter.FormatBatch(os.Stdout, batch)
//
//	// Resource listings from get and search
//	formatter.FormatResources(os.Stdout, resources)
//
//	// Cache counters, pool gauges and per-language counts
//	formatter.FormatStats(os.Stdout, output.StatsReport{Counters: c, Pool: &poolStats})
//
// # Formatters
//
// The table formatter prints borderless, tab-padded tables. Wide mode adds the
// locator and failure reason columns. JSON and YAML render the same documents
// for scripting: batch durations are strings and error values are reduced to
// their reason text.
//
// # Color Support
//
// Colors are used only when the writer is a terminal and WithNoColor is not
// set. Titles are cyan, successes green, failures red, and timeouts and
// cancellations yellow.
package output
