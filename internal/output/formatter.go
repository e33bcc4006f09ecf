package output

import (
	"io"

	"github.com/aryankumar/lomsync/internal/cache"
	"github.com/aryankumar/lomsync/internal/catalog"
	"github.com/aryankumar/lomsync/internal/executor"
	"github.com/aryankumar/lomsync/internal/ingest"
	"github.com/aryankumar/lomsync/internal/stats"
)

// Format represents the output format type
type Format string

const (
	// FormatTable outputs data in a borderless table
	FormatTable Format = "table"
	// FormatJSON outputs data in JSON format
	FormatJSON Format = "json"
	// FormatYAML outputs data in YAML format
	FormatYAML Format = "yaml"
)

// Formatter defines the interface for output formatting
type Formatter interface {
	// Format outputs a single data item to the writer
	Format(w io.Writer, data interface{}) error

	// FormatBatch outputs the outcome of one import call
	FormatBatch(w io.Writer, batch *ingest.BatchResult) error

	// FormatResources outputs a list of catalog resources
	FormatResources(w io.Writer, resources []catalog.Resource) error

	// FormatStats outputs cache counters, pool gauges and language counts
	FormatStats(w io.Writer, report StatsReport) error
}

// StatsReport gathers everything the stats command shows
type StatsReport struct {
	Counters  stats.ServiceCounters `json:"counters" yaml:"counters"`
	Pool      *executor.PoolStats   `json:"pool,omitempty" yaml:"pool,omitempty"`
	Languages []cache.LanguageCount `json:"languages" yaml:"languages"`
}

// Option is a functional option for configuring formatters
type Option func(*Options)

// Options holds configuration for formatters
type Options struct {
	// NoColor disables color output
	NoColor bool

	// NoHeaders disables table headers
	NoHeaders bool

	// Wide enables wide output with additional columns
	Wide bool
}

// WithNoColor disables color output
func WithNoColor(noColor bool) Option {
	return func(o *Options) {
		o.NoColor = noColor
	}
}

// WithNoHeaders disables table headers
func WithNoHeaders(noHeaders bool) Option {
	return func(o *Options) {
		o.NoHeaders = noHeaders
	}
}

// WithWide enables wide output
func WithWide(wide bool) Option {
	return func(o *Options) {
		o.Wide = wide
	}
}

// NewFormatter creates a new formatter based on the specified format
func NewFormatter(format Format, opts ...Option) Formatter {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	switch format {
	case FormatJSON:
		return NewJSONFormatter(options)
	case FormatYAML:
		return NewYAMLFormatter(options)
	case FormatTable:
		fallthrough
	default:
		return NewTableFormatter(options)
	}
}

// batchDocument is the structured rendering of a BatchResult shared by the
// JSON and YAML formatters
type batchDocument struct {
	ID        string             `json:"id" yaml:"id"`
	Mode      string             `json:"mode" yaml:"mode"`
	Total     int                `json:"total" yaml:"total"`
	Succeeded int                `json:"succeeded" yaml:"succeeded"`
	Failed    int                `json:"failed" yaml:"failed"`
	Pending   int                `json:"pending,omitempty" yaml:"pending,omitempty"`
	Complete  bool               `json:"complete" yaml:"complete"`
	Duration  string             `json:"duration" yaml:"duration"`
	Resources []catalog.Resource `json:"resources" yaml:"resources"`
	Failures  []failureDocument  `json:"failures" yaml:"failures"`
}

type failureDocument struct {
	Title   string `json:"title" yaml:"title"`
	Locator string `json:"locator,omitempty" yaml:"locator,omitempty"`
	Kind    string `json:"kind" yaml:"kind"`
	Reason  string `json:"reason" yaml:"reason"`
}

func newBatchDocument(b *ingest.BatchResult) batchDocument {
	doc := batchDocument{
		ID:        b.ID,
		Mode:      string(b.Mode),
		Total:     b.Total,
		Succeeded: b.SuccessCount,
		Failed:    b.FailureCount,
		Pending:   b.Pending,
		Complete:  b.Complete,
		Duration:  b.Duration.String(),
		Resources: make([]catalog.Resource, 0, len(b.Succeeded)),
		Failures:  make([]failureDocument, 0, len(b.Failures)),
	}
	for _, r := range b.Succeeded {
		if r != nil {
			doc.Resources = append(doc.Resources, *r)
		}
	}
	for _, f := range b.Failures {
		doc.Failures = append(doc.Failures, failureDocument{
			Title:   f.Item.Title,
			Locator: f.Item.Locator,
			Kind:    f.Kind,
			Reason:  f.Reason,
		})
	}
	return doc
}

func nonNilResources(resources []catalog.Resource) []catalog.Resource {
	if resources == nil {
		return []catalog.Resource{}
	}
	return resources
}

func nonNilLanguages(report StatsReport) StatsReport {
	if report.Languages == nil {
		report.Languages = []cache.LanguageCount{}
	}
	return report
}
