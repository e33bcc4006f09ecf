package output

import (
	"io"

	"github.com/aryankumar/lomsync/internal/catalog"
	"github.com/aryankumar/lomsync/internal/ingest"
	"gopkg.in/yaml.v3"
)

// YAMLFormatter formats output as YAML
type YAMLFormatter struct {
	options *Options
}

// NewYAMLFormatter creates a new YAML formatter
func NewYAMLFormatter(opts *Options) *YAMLFormatter {
	if opts == nil {
		opts = &Options{}
	}
	return &YAMLFormatter{
		options: opts,
	}
}

// Format outputs a single data item as YAML
func (f *YAMLFormatter) Format(w io.Writer, data interface{}) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	defer encoder.Close()

	return encoder.Encode(data)
}

// FormatBatch outputs an import batch as YAML
func (f *YAMLFormatter) FormatBatch(w io.Writer, batch *ingest.BatchResult) error {
	return f.Format(w, newBatchDocument(batch))
}

// FormatResources outputs resources as a YAML sequence
func (f *YAMLFormatter) FormatResources(w io.Writer, resources []catalog.Resource) error {
	return f.Format(w, nonNilResources(resources))
}

// FormatStats outputs the stats report as YAML
func (f *YAMLFormatter) FormatStats(w io.Writer, report StatsReport) error {
	return f.Format(w, nonNilLanguages(report))
}
