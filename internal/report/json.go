package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/clickcrawl/internal/model"
)

// JSONWriter outputs the full crawl result in JSON format for tool
// integration.
type JSONWriter struct {
	baseWriter

	// version is stamped into the output when non-empty.
	version string

	// indent enables pretty-printed output.
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion stamps the clickcrawl version into the output.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// JSONReport wraps a result with output-only metadata.
type JSONReport struct {
	// Version is the clickcrawl version that generated this report.
	Version string `json:"version,omitempty"`

	// Status is the short run state ("complete", "cancelled", ...).
	Status string `json:"status"`

	// DurationSeconds is the crawl duration.
	DurationSeconds float64 `json:"duration_seconds"`

	// FailureCounts counts failures by kind.
	FailureCounts map[string]int `json:"failure_counts,omitempty"`

	// Result is the full crawl result.
	Result *model.CrawlResult `json:"result"`
}

// NewJSONReport creates the wrapper for result.
func NewJSONReport(result *model.CrawlResult, version string) *JSONReport {
	var counts map[string]int
	if len(result.Failures) > 0 {
		counts = make(map[string]int)
		for kind, n := range result.FailureCounts() {
			counts[kind.String()] = n
		}
	}

	return &JSONReport{
		Version:         version,
		Status:          result.Status(),
		DurationSeconds: result.Duration().Seconds(),
		FailureCounts:   counts,
		Result:          result,
	}
}

// Write outputs the wrapped result.
func (w *JSONWriter) Write(result *model.CrawlResult) (int, error) {
	return w.writeJSON(NewJSONReport(result, w.version))
}

// writeJSON marshals v and writes it with a trailing newline.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	data = append(data, '\n')

	return w.output.Write(data)
}
