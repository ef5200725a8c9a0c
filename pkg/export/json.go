package export

import (
	"encoding/json"
	"fmt"
	"io"

	"tapline-hq/cellar/pkg/ordering"
)

// JSONExporter writes a run as an indented JSON document. Unlike the CSV
// exporter it preserves the full run detail including the summary, warnings,
// and recount report.
type JSONExporter struct {
	// Indent controls pretty-printing. Empty means compact output.
	Indent string
}

// NewJSONExporter creates a JSON exporter with two-space indentation.
func NewJSONExporter() *JSONExporter {
	return &JSONExporter{Indent: "  "}
}

// Export writes the run to w in JSON format.
func (e *JSONExporter) Export(run *ordering.RecommendationRun, w io.Writer) error {
	if run == nil {
		return fmt.Errorf("run cannot be nil")
	}

	enc := json.NewEncoder(w)
	if e.Indent != "" {
		enc.SetIndent("", e.Indent)
	}
	if err := enc.Encode(run); err != nil {
		return fmt.Errorf("failed to encode run: %w", err)
	}
	return nil
}
