package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/nao1215/clickcrawl/internal/model"
)

// ArtifactExt is the extension of provenance artifacts.
const ArtifactExt = ".json"

// ArtifactWriter writes the raw provenance map of a run: one JSON object
// keyed by canonical URL whose value is the parent URL, or null for the root.
//
//	{
//	  "https://app.example.com": null,
//	  "https://app.example.com/#/users": "https://app.example.com"
//	}
type ArtifactWriter struct {
	baseWriter
}

// NewArtifactWriter creates an ArtifactWriter that outputs to the given writer.
func NewArtifactWriter(output io.Writer) *ArtifactWriter {
	return &ArtifactWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the complete provenance map, falling back to the visited
// graph for results that carry no raw map. Keys are sorted by encoding/json.
func (w *ArtifactWriter) Write(result *model.CrawlResult) (int, error) {
	provenance := result.RawProvenance
	if len(provenance) == 0 {
		provenance = result.Provenance
	}
	if provenance == nil {
		provenance = map[string]*string{}
	}

	data, err := json.MarshalIndent(provenance, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("encode provenance: %w", err)
	}
	data = append(data, '\n')
	return w.output.Write(data)
}

// WriteArtifact writes the provenance artifact of result to
// dir/<host>.json and returns the file path.
func WriteArtifact(dir string, result *model.CrawlResult) (string, error) {
	return WriteFile(dir, ArtifactExt, result, func(out io.Writer) Writer {
		return NewArtifactWriter(out)
	})
}

// ReadArtifact loads a provenance artifact written by WriteArtifact.
func ReadArtifact(path string) (map[string]*string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Artifact path comes from the caller
	if err != nil {
		return nil, err
	}

	provenance := make(map[string]*string)
	if err := json.Unmarshal(data, &provenance); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return provenance, nil
}
