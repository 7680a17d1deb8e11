package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/onepage/internal/model"
)

// JSONWriter outputs reports in JSON format for tool integration.
// The field names are those of the model types' json tags.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
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

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in JSON format.
func (w *JSONWriter) Write(report *model.MirrorReport) (int, error) {
	return w.writeJSON(report)
}

// WriteDiff outputs the comparison in JSON format.
func (w *JSONWriter) WriteDiff(diff *model.MirrorDiff) (int, error) {
	return w.writeJSON(diff)
}

// writeJSON marshals the given value to JSON and writes it to the output.
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

// JSONReport wraps a report with the version of the tool that produced it.
type JSONReport struct {
	// Version is the onepage version that generated this report.
	Version string `json:"version"`

	// Report is the mirror report.
	Report *model.MirrorReport `json:"report"`

	// TotalBytes is the sum of all resource sizes.
	TotalBytes int64 `json:"total_bytes"`

	// Counts is the number of resources per kind.
	Counts map[model.ResourceKind]int `json:"counts"`
}

// NewJSONReport creates a JSONReport wrapper with version information.
func NewJSONReport(report *model.MirrorReport, version string) *JSONReport {
	return &JSONReport{
		Version:    version,
		Report:     report,
		TotalBytes: report.TotalBytes(),
		Counts:     report.CountByKind(),
	}
}

// FullJSONWriter outputs reports wrapped with metadata.
type FullJSONWriter struct {
	*JSONWriter

	// version is the onepage version string.
	version string
}

// NewFullJSONWriter creates a writer for reports with metadata.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write outputs the report wrapped with metadata.
func (w *FullJSONWriter) Write(report *model.MirrorReport) (int, error) {
	return w.writeJSON(NewJSONReport(report, w.version))
}
