package output

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aryankumar/lomsync/internal/catalog"
	"github.com/aryankumar/lomsync/internal/ingest"
	"github.com/aryankumar/lomsync/internal/util"
	"github.com/olekukonko/tablewriter"
)

// Cell widths, in runes, before text is cut with "..."
const (
	labelWidth  = 60
	reasonWidth = 50
)

// TableFormatter formats output as a borderless table
type TableFormatter struct {
	options *Options
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(opts *Options) *TableFormatter {
	if opts == nil {
		opts = &Options{}
	}
	return &TableFormatter{
		options: opts,
	}
}

// Format outputs a single data item as a table
func (f *TableFormatter) Format(w io.Writer, data interface{}) error {
	table := f.createTable(w)

	// Handle different data types
	switch v := data.(type) {
	case map[string]interface{}:
		return f.formatMap(table, v)
	case []map[string]interface{}:
		return f.formatMapSlice(table, v)
	case catalog.Resource:
		return f.FormatResources(w, []catalog.Resource{v})
	case string:
		fmt.Fprintln(w, v)
		return nil
	default:
		// Fallback to simple string representation
		fmt.Fprintln(w, v)
		return nil
	}
}

// FormatBatch outputs one row per item in input order followed by a summary
func (f *TableFormatter) FormatBatch(w io.Writer, batch *ingest.BatchResult) error {
	colors := NewColorScheme(w, f.options.NoColor)

	if len(batch.Outcomes) == 0 {
		fmt.Fprintln(w, "No items")
		f.printBatchSummary(w, batch, colors)
		return nil
	}

	table := f.createTable(w)

	headers := []string{"#", "TITLE", "STATUS", "ID"}
	if f.options.Wide {
		headers = append(headers, "LOCATOR", "REASON")
	}
	f.setHeader(table, headers, colors)

	for i, o := range batch.Outcomes {
		table.Append(f.formatOutcomeRow(i+1, o, colors))
	}

	table.Render()

	f.printBatchSummary(w, batch, colors)

	// Failure reasons are always shown; wide mode adds them as a column too
	if !f.options.Wide && len(batch.Failures) > 0 {
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "Failures:")
		for _, fail := range batch.Failures {
			fmt.Fprintf(w, "  %s: %s\n", fail.Item.Label(), colors.Error("%s", fail.Reason))
		}
	}

	return nil
}

// formatOutcomeRow formats a single outcome as a table row
func (f *TableFormatter) formatOutcomeRow(n int, o ingest.Outcome, colors *ColorScheme) []string {
	title := util.ShortLabel(o.Item.Title, labelWidth)
	if !colors.Disabled {
		title = colors.Title("%s", title)
	}

	status := o.Kind.String()
	if !colors.Disabled {
		status = colors.KindColor(o.Kind)("%s", status)
	}

	id := "-"
	if o.Resource != nil {
		id = strconv.FormatInt(o.Resource.ID, 10)
	}

	row := []string{strconv.Itoa(n), title, status, id}

	if f.options.Wide {
		row = append(row, util.ShortLabel(o.Item.Locator, labelWidth), util.ShortLabel(o.Reason, reasonWidth))
	}

	return row
}

// FormatResources outputs resources ordered as given
func (f *TableFormatter) FormatResources(w io.Writer, resources []catalog.Resource) error {
	if len(resources) == 0 {
		fmt.Fprintln(w, "No resources found")
		return nil
	}

	colors := NewColorScheme(w, f.options.NoColor)
	table := f.createTable(w)

	headers := []string{"ID", "TITLE", "LANGUAGE", "VERSION"}
	if f.options.Wide {
		headers = append(headers, "LOCATOR", "UPDATED")
	}
	f.setHeader(table, headers, colors)

	for _, r := range resources {
		title := util.ShortLabel(r.Title, labelWidth)
		if !colors.Disabled {
			title = colors.Title("%s", title)
		}
		language := r.Language
		if language == "" {
			language = "-"
		}

		row := []string{strconv.FormatInt(r.ID, 10), title, language, strconv.FormatInt(r.Version, 10)}
		if f.options.Wide {
			row = append(row, util.ShortLabel(r.Locator, labelWidth), r.UpdatedAt.UTC().Format(time.RFC3339))
		}
		table.Append(row)
	}

	table.Render()
	return nil
}

// FormatStats outputs counters, then pool gauges, then language counts
func (f *TableFormatter) FormatStats(w io.Writer, report StatsReport) error {
	colors := NewColorScheme(w, f.options.NoColor)

	counters := f.createTable(w)
	f.setHeader(counters, []string{"COUNTER", "VALUE"}, colors)
	counters.Append([]string{"queries", strconv.FormatInt(report.Counters.Queries, 10)})
	counters.Append([]string{"updates", strconv.FormatInt(report.Counters.Updates, 10)})
	errs := strconv.FormatInt(report.Counters.Errors, 10)
	if !colors.Disabled && report.Counters.Errors > 0 {
		errs = colors.Error("%s", errs)
	}
	counters.Append([]string{"errors", errs})
	counters.Append([]string{"cache size", strconv.Itoa(report.Counters.CacheSize)})
	counters.Render()

	if p := report.Pool; p != nil {
		fmt.Fprintln(w, "")
		pool := f.createTable(w)
		f.setHeader(pool, []string{"POOL", "VALUE"}, colors)
		pool.Append([]string{"workers", fmt.Sprintf("%d (min %d, max %d)", p.Workers, p.MinWorkers, p.MaxWorkers)})
		pool.Append([]string{"idle", strconv.Itoa(p.Idle)})
		pool.Append([]string{"queued", strconv.Itoa(p.Queued)})
		pool.Append([]string{"submitted", strconv.FormatInt(p.Submitted, 10)})
		pool.Append([]string{"completed", strconv.FormatInt(p.Completed, 10)})
		pool.Append([]string{"failed", strconv.FormatInt(p.Failed, 10)})
		pool.Append([]string{"rejected", strconv.FormatInt(p.Rejected, 10)})
		pool.Append([]string{"caller runs", strconv.FormatInt(p.CallerRuns, 10)})
		pool.Render()
	}

	if len(report.Languages) > 0 {
		fmt.Fprintln(w, "")
		langs := f.createTable(w)
		f.setHeader(langs, []string{"LANGUAGE", "RESOURCES"}, colors)
		for _, lc := range report.Languages {
			langs.Append([]string{lc.Language, strconv.FormatInt(lc.Count, 10)})
		}
		langs.Render()
	}

	return nil
}

// setHeader applies headers unless disabled, colored when colors are on
func (f *TableFormatter) setHeader(table *tablewriter.Table, headers []string, colors *ColorScheme) {
	if f.options.NoHeaders {
		return
	}
	if colors.Disabled {
		table.SetHeader(headers)
		return
	}
	coloredHeaders := make([]string, len(headers))
	for i, h := range headers {
		coloredHeaders[i] = colors.Header("%s", h)
	}
	table.SetHeader(coloredHeaders)
}

// formatMap formats a map as a two-column table (key-value pairs) sorted by key
func (f *TableFormatter) formatMap(table *tablewriter.Table, data map[string]interface{}) error {
	if !f.options.NoHeaders {
		table.SetHeader([]string{"KEY", "VALUE"})
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		table.Append([]string{k, fmt.Sprintf("%v", data[k])})
	}

	table.Render()
	return nil
}

// formatMapSlice formats a slice of maps as a table
func (f *TableFormatter) formatMapSlice(table *tablewriter.Table, data []map[string]interface{}) error {
	if len(data) == 0 {
		return nil
	}

	// Extract headers from the first map
	var headers []string
	for k := range data[0] {
		headers = append(headers, strings.ToUpper(k))
	}
	sort.Strings(headers)

	if !f.options.NoHeaders {
		table.SetHeader(headers)
	}

	// Add rows
	for _, item := range data {
		var row []string
		for _, h := range headers {
			key := strings.ToLower(h)
			row = append(row, fmt.Sprintf("%v", item[key]))
		}
		table.Append(row)
	}

	table.Render()
	return nil
}

// createTable creates a new borderless, tab-padded table
func (f *TableFormatter) createTable(w io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(w)

	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)

	return table
}

// printBatchSummary prints the batch counts and duration
func (f *TableFormatter) printBatchSummary(w io.Writer, batch *ingest.BatchResult, colors *ColorScheme) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Batch %s: ", colors.Title("%s", batch.ID))

	successText := fmt.Sprintf("%d successful", batch.SuccessCount)
	if !colors.Disabled {
		successText = colors.Success("%s", successText)
	}

	failedText := fmt.Sprintf("%d failed", batch.FailureCount)
	if !colors.Disabled && batch.FailureCount > 0 {
		failedText = colors.Error("%s", failedText)
	}

	durationText := fmt.Sprintf("took %s", batch.Duration.Round(time.Millisecond))
	if !colors.Disabled {
		durationText = colors.Duration("%s", durationText)
	}

	fmt.Fprintf(w, "%s, %s, %s", successText, failedText, durationText)
	if !batch.Complete {
		fmt.Fprintf(w, ", %s", colors.Warning("%d pending", batch.Pending))
	}
	fmt.Fprintln(w)
}
