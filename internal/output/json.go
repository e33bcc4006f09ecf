package output

import (
	"encoding/json"
	"io"

	"github.com/aryankumar/lomsync/internal/catalog"
	"github.com/aryankumar/lomsync/internal/ingest"
)

// JSONFormatter formats output as JSON
type JSONFormatter struct {
	options *Options
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(opts *Options) *JSONFormatter {
	if opts == nil {
		opts = &Options{}
	}
	return &JSONFormatter{
		options: opts,
	}
}

// Format outputs a single data item as JSON
func (f *JSONFormatter) Format(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// FormatBatch outputs an import batch as JSON
func (f *JSONFormatter) FormatBatch(w io.Writer, batch *ingest.BatchResult) error {
	return f.Format(w, newBatchDocument(batch))
}

// FormatResources outputs resources as a JSON array
func (f *JSONFormatter) FormatResources(w io.Writer, resources []catalog.Resource) error {
	return f.Format(w, nonNilResources(resources))
}

// FormatStats outputs the stats report as JSON
func (f *JSONFormatter) FormatStats(w io.Writer, report StatsReport) error {
	return f.Format(w, nonNilLanguages(report))
}
