package report

import (
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/nao1215/onepage/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Writer defines the interface for report output.
// Implementations write mirror results in various formats.
type Writer interface {
	// Write outputs the report of one mirror run.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.MirrorReport) (int, error)

	// WriteDiff outputs the comparison of two runs of the same URL.
	WriteDiff(diff *model.MirrorDiff) (int, error)
}

// MultiWriter writes to multiple Writers in order.
// Our Writer writes reports, not bytes, so io.MultiWriter does not fit.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to all configured Writers.
// Returns the total bytes written across all writers.
// Stops on first error encountered.
func (m *MultiWriter) Write(report *model.MirrorReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteDiff outputs the comparison to all configured Writers.
func (m *MultiWriter) WriteDiff(diff *model.MirrorDiff) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteDiff(diff)
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

var titleCaser = cases.Title(language.English)

// kindLabel returns the display name of a resource kind, e.g. "Stylesheet".
func kindLabel(kind model.ResourceKind) string {
	return titleCaser.String(string(kind))
}

// formatBytes returns a human readable size, e.g. "1.2 kB".
func formatBytes(n int64) string {
	if n < 0 {
		return "-" + humanize.Bytes(uint64(-n))
	}
	return humanize.Bytes(uint64(n))
}

// formatSizeDelta formats a size change with an explicit sign.
func formatSizeDelta(delta int64) string {
	switch {
	case delta > 0:
		return "+" + formatBytes(delta)
	case delta < 0:
		return formatBytes(delta)
	default:
		return "0 B"
	}
}

// statusText returns a one-line status of the run.
func statusText(report *model.MirrorReport) string {
	switch {
	case !report.Succeeded():
		return "FAILED - " + report.Error
	case report.HasFailures():
		return "Complete with failures"
	default:
		return "Complete"
	}
}

// modeText describes where the files went.
func modeText(report *model.MirrorReport) string {
	var parts []string
	if report.Simulated {
		parts = append(parts, "simulate")
	} else {
		parts = append(parts, "write to "+report.OutDir)
	}
	if report.Rendered {
		parts = append(parts, "rendered root")
	}
	if report.Options.Dedupe {
		parts = append(parts, "dedupe")
	}
	return strings.Join(parts, ", ")
}

// enabledKinds lists the asset switches that were on.
func enabledKinds(opts model.MirrorOptions) string {
	var kinds []string
	if opts.CSS {
		kinds = append(kinds, "css")
	}
	if opts.JS {
		kinds = append(kinds, "js")
	}
	if opts.Images {
		kinds = append(kinds, "images")
	}
	if len(kinds) == 0 {
		return "none"
	}
	return strings.Join(kinds, ", ")
}

// truncateString truncates a string to maxLen bytes with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// shortHash returns the first 12 hex digits of a hash.
func shortHash(h string) string {
	if len(h) <= 12 {
		return h
	}
	return h[:12]
}
