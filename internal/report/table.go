package report

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/nao1215/clickcrawl/internal/model"
)

// TableWriter outputs the visited URLs and their parents as a console table.
type TableWriter struct {
	baseWriter

	// showPath adds the full discovery path column.
	showPath bool
}

// TableWriterOption configures a TableWriter.
type TableWriterOption func(*TableWriter)

// WithPaths adds a column with the root-to-URL path of every row.
func WithPaths(show bool) TableWriterOption {
	return func(w *TableWriter) {
		w.showPath = show
	}
}

// NewTableWriter creates a TableWriter that outputs to the given writer.
func NewTableWriter(output io.Writer, opts ...TableWriterOption) *TableWriter {
	w := &TableWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write renders one row per visited URL in visit order. The root has an
// empty parent column.
func (w *TableWriter) Write(result *model.CrawlResult) (int, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.Style().Format.Header = text.FormatDefault
	t.SetTitle("%s (%s)", result.Origin, result.Status())

	header := table.Row{"#", "Visited URL", "Parent URL"}
	if w.showPath {
		header = append(header, "Path")
	}
	t.AppendHeader(header)

	for i, e := range PathEntries(result) {
		parent := result.ParentOf(e.URL)
		if parent == "" {
			parent = "-"
		}
		row := table.Row{i + 1, e.URL, parent}
		if w.showPath {
			row = append(row, FormatPath(e.Path))
		}
		t.AppendRow(row)
	}

	t.SetCaption("%d URL(s), %d action(s), %d failure(s) in %s",
		len(result.Visited), len(result.Actions), len(result.Failures),
		result.Duration().Round(time.Millisecond))

	return io.WriteString(w.output, t.Render()+"\n")
}
