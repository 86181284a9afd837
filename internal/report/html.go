package report

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/nao1215/clickcrawl/internal/model"
)

// HTMLExt is the extension of HTML reports.
const HTMLExt = ".html"

//go:embed templates/report.html.tmpl
var htmlTemplateText string

var htmlTemplate = template.Must(template.New("report").Parse(htmlTemplateText))

// HTMLWriter outputs a standalone HTML page. The discovery graph is rendered
// in the browser by mermaid.js.
type HTMLWriter struct {
	baseWriter
}

// NewHTMLWriter creates an HTMLWriter that outputs to the given writer.
func NewHTMLWriter(output io.Writer) *HTMLWriter {
	return &HTMLWriter{baseWriter: newBaseWriter(output)}
}

type htmlPath struct {
	URL    string
	Parent string
	Depth  int
	Path   string
}

type htmlView struct {
	Origin      string
	StartURL    string
	RunID       string
	Started     string
	Duration    string
	ActionCount int
	Status      string
	Error       string
	Graph       string
	GraphNote   string
	Paths       []htmlPath
	Pending     []string
	Failures    []model.Failure
}

// Write outputs the report in HTML format.
func (w *HTMLWriter) Write(result *model.CrawlResult) (int, error) {
	view := htmlView{
		Origin:      result.Origin,
		StartURL:    result.StartURL,
		RunID:       result.RunID,
		Started:     result.StartedAt.Format("2006-01-02 15:04:05 MST"),
		Duration:    result.Duration().Round(time.Millisecond).String(),
		ActionCount: len(result.Actions),
		Status:      result.Status(),
		Error:       result.ErrorMessage,
		Pending:     result.Pending,
		Failures:    result.Failures,
	}

	switch {
	case len(result.Visited) == 0:
		view.GraphNote = "No URL was visited."
	case len(result.Visited) > maxGraphNodes:
		view.GraphNote = fmt.Sprintf("The graph has %d nodes and is omitted; see the paths below.", len(result.Visited))
	default:
		view.Graph = mermaidGraph(result)
	}

	for _, e := range PathEntries(result) {
		view.Paths = append(view.Paths, htmlPath{
			URL:    e.URL,
			Parent: result.ParentOf(e.URL),
			Depth:  e.Depth(),
			Path:   FormatPath(e.Path),
		})
	}

	cw := &countingWriter{w: w.output}
	if err := htmlTemplate.Execute(cw, view); err != nil {
		return cw.n, fmt.Errorf("render html: %w", err)
	}
	return cw.n, nil
}

// WriteHTML writes the HTML report of result to dir/<host>.html and
// returns the file path.
func WriteHTML(dir string, result *model.CrawlResult) (string, error) {
	return WriteFile(dir, HTMLExt, result, func(out io.Writer) Writer {
		return NewHTMLWriter(out)
	})
}
