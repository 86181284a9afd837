package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/flowchart"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/clickcrawl/internal/model"
)

// maxGraphNodes caps the mermaid graph; larger crawls list paths only.
const maxGraphNodes = 200

// MarkdownWriter outputs GitHub-flavored Markdown with a mermaid discovery
// graph, a pie chart of click outcomes and the discovery path of every URL.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(result *model.CrawlResult) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, result)
	w.writeGraph(md, result)
	w.writeActions(md, result)
	w.writePaths(md, result)
	w.writeFailures(md, result)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the run overview and a status alert.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, result *model.CrawlResult) {
	md.H1f("Crawl Report: %s", result.Origin)
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Start URL", "`" + result.StartURL + "`"},
			{"Run ID", "`" + result.RunID + "`"},
			{"Started", result.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", result.Duration().Round(time.Millisecond).String()},
			{"Visited URLs", strconv.Itoa(len(result.Visited))},
			{"Triggered Actions", strconv.Itoa(len(result.Actions))},
			{"Pending URLs", strconv.Itoa(len(result.Pending))},
			{"Status", result.Status()},
		},
	})
	md.PlainText("")

	switch result.Status() {
	case "failed":
		md.Cautionf("The run stopped on a fatal error: %s", result.ErrorMessage)
	case "cancelled":
		md.Warningf("The run was interrupted. %d URL(s) were still queued.", len(result.Pending))
	case "truncated":
		md.Importantf("The page limit stopped the run. %d URL(s) were still queued.", len(result.Pending))
	default:
		md.Tip("The frontier was exhausted: every reachable URL was visited.")
	}
	md.PlainText("")
}

// writeGraph writes the discovery graph as a mermaid flowchart.
func (w *MarkdownWriter) writeGraph(md *markdown.Markdown, result *model.CrawlResult) {
	md.H2("Discovery Graph")
	md.PlainText("")

	if len(result.Visited) == 0 {
		md.PlainText("No URL was visited.")
		md.PlainText("")
		return
	}
	if len(result.Visited) > maxGraphNodes {
		md.PlainTextf("The graph has %d nodes and is omitted; see the paths below.", len(result.Visited))
		md.PlainText("")
		return
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, mermaidGraph(result))
	md.PlainText("")
}

// mermaidGraph builds a top-down flowchart with one node per visited URL
// and one edge per parent link.
func mermaidGraph(result *model.CrawlResult) string {
	chart := flowchart.NewFlowchart(io.Discard, flowchart.WithOrientalTopToBottom())

	ids := make(map[string]string, len(result.Visited))
	for i, u := range result.Visited {
		id := "n" + strconv.Itoa(i)
		ids[u] = id
		chart.NodeWithText(id, mermaidLabel(shortLabel(result.Origin, u)))
	}
	for _, edge := range result.Edges() {
		parentID, ok := ids[edge.Parent]
		if !ok {
			continue
		}
		chart.LinkWithArrowHead(parentID, ids[edge.URL])
	}
	return chart.String()
}

// mermaidLabel escapes characters that end a quoted mermaid label.
func mermaidLabel(s string) string {
	return strings.NewReplacer(`"`, "#quot;", "\n", " ").Replace(s)
}

// writeActions writes the click outcome chart and the navigating actions.
func (w *MarkdownWriter) writeActions(md *markdown.Markdown, result *model.CrawlResult) {
	md.H2("Click Actions")
	md.PlainText("")

	if len(result.Actions) == 0 {
		md.PlainText("No click handler was triggered.")
		md.PlainText("")
		return
	}

	var newURL, knownURL, stayed uint64
	for _, a := range result.Actions {
		switch {
		case a.Enqueued:
			newURL++
		case a.Navigated:
			knownURL++
		default:
			stayed++
		}
	}

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Click Outcomes"),
		piechart.WithShowData(true),
	)
	if newURL > 0 {
		chart.LabelAndIntValue("New URL", newURL)
	}
	if knownURL > 0 {
		chart.LabelAndIntValue("Known URL", knownURL)
	}
	if stayed > 0 {
		chart.LabelAndIntValue("No navigation", stayed)
	}
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")

	navigating := result.NavigatingActions()
	if len(navigating) == 0 {
		return
	}

	rows := make([][]string, 0, len(navigating))
	for _, a := range navigating {
		rows = append(rows, []string{
			"`" + escapeTableCell(truncateString(a.Signature, 60)) + "`",
			escapeTableCell(a.PageURL),
			escapeTableCell(a.ResultURL),
			yesNo(a.Enqueued),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Handler", "Page", "Result", "New"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writePaths writes the root-to-URL path of every visited URL.
func (w *MarkdownWriter) writePaths(md *markdown.Markdown, result *model.CrawlResult) {
	md.H2("Discovery Paths")
	md.PlainText("")

	entries := PathEntries(result)
	if len(entries) == 0 {
		md.PlainText("No paths recorded.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			escapeTableCell(e.URL),
			strconv.Itoa(e.Depth()),
			escapeTableCell(FormatPath(e.Path)),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Depth", "Path"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFailures writes the failures of the run, if any.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, result *model.CrawlResult) {
	if len(result.Failures) == 0 {
		return
	}

	md.H2("Failures")
	md.PlainText("")

	rows := make([][]string, 0, len(result.Failures))
	for _, f := range result.Failures {
		action := f.Action
		if action == "" {
			action = "-"
		}
		rows = append(rows, []string{
			f.Kind.String(),
			escapeTableCell(f.URL),
			escapeTableCell(truncateString(action, 40)),
			escapeTableCell(truncateString(f.Message, 80)),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Kind", "URL", "Action", "Message"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [clickcrawl](https://github.com/nao1215/clickcrawl)*")
}

// escapeTableCell keeps pipes from splitting Markdown table cells.
func escapeTableCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// truncateString truncates a string to maxLen runes with an ellipsis.
func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return fmt.Sprintf("%s...", string(runes[:maxLen-3]))
}
