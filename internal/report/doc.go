// Package report renders crawl results.
//
// Writers share the Writer interface and can be combined with MultiWriter:
//   - ArtifactWriter: the raw provenance map, one JSON object per origin
//   - TableWriter: visited URLs and parents as a console table
//   - MarkdownWriter: GitHub-flavored Markdown with mermaid diagrams
//   - HTMLWriter: a standalone page with the discovery graph
//   - JSONWriter: the full result for tool integration
//
// File outputs are named after the origin host, as in
// "localhost_8080.json" for http://localhost:8080.
package report
