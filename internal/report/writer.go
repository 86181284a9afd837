package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nao1215/clickcrawl/internal/model"
)

// Writer renders a crawl result in one format.
type Writer interface {
	// Write outputs the report and returns the number of bytes written.
	Write(result *model.CrawlResult) (int, error)
}

// MultiWriter writes to multiple Writers, for example the console table
// and a Markdown file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// It stops on the first error and returns the total bytes written.
func (m *MultiWriter) Write(result *model.CrawlResult) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(result)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// countingWriter counts bytes passed to an underlying writer.
type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}

// WriteFile renders result with the writer built by newWriter into
// dir/<origin stem><ext>, creating dir as needed. It returns the file path.
func WriteFile(dir, ext string, result *model.CrawlResult, newWriter func(io.Writer) Writer) (string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, FileStem(result.Origin)+ext)
	f, err := os.Create(path) //nolint:gosec // Path is built from the configured directory
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}

	if _, err := newWriter(f).Write(result); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}
