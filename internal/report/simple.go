package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/onepage/internal/model"
)

const ruleWidth = 70

// SimpleWriter outputs human-readable text reports.
// Plain ASCII is used so the output can be piped to files unchanged.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no entries are shown.
	showEmpty bool

	// verbose lists every resource and adds finding impacts.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.MirrorReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	w.writeResources(&sb, report)
	w.writeFailures(&sb, report)
	w.writeFindings(&sb, report)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func writeRule(sb *strings.Builder, ch string) {
	sb.WriteString(strings.Repeat(ch, ruleWidth))
	sb.WriteString("\n")
}

func writeSection(sb *strings.Builder, title string) {
	writeRule(sb, "-")
	sb.WriteString(title)
	sb.WriteString("\n")
	writeRule(sb, "-")
	sb.WriteString("\n")
}

// writeHeader writes the report header with run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.MirrorReport) {
	sb.WriteString("\n")
	writeRule(sb, "=")
	sb.WriteString("                       ONEPAGE MIRROR REPORT\n")
	writeRule(sb, "=")
	sb.WriteString("\n")

	fmt.Fprintf(sb, "URL:      %s\n", report.RootURL)
	fmt.Fprintf(sb, "Run ID:   %s\n", report.ID)
	fmt.Fprintf(sb, "Started:  %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Duration: %s\n", report.Duration().Round(time.Millisecond))
	fmt.Fprintf(sb, "Mode:     %s\n", modeText(report))
	fmt.Fprintf(sb, "Assets:   %s\n", enabledKinds(report.Options))
	fmt.Fprintf(sb, "Status:   %s\n", statusText(report))
	sb.WriteString("\n")
}

// writeSummary writes the per-kind counts.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.MirrorReport) {
	writeSection(sb, "SUMMARY")

	counts := report.CountByKind()
	for _, kind := range model.AllKinds {
		if counts[kind] == 0 && !w.showEmpty {
			continue
		}
		fmt.Fprintf(sb, "  %-12s %d\n", kindLabel(kind)+":", counts[kind])
	}
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  %-12s %d files, %s\n", "TOTAL:", len(report.Resources), formatBytes(report.TotalBytes()))
	fmt.Fprintf(sb, "  %-12s %d\n", "FAILED:", len(report.Failures))
	fmt.Fprintf(sb, "  %-12s %d\n", "SKIPPED:", report.Skipped)
	sb.WriteString("\n")
}

// writeResources lists the mirrored files in verbose mode.
func (w *SimpleWriter) writeResources(sb *strings.Builder, report *model.MirrorReport) {
	if !w.verbose {
		return
	}
	if len(report.Resources) == 0 && !w.showEmpty {
		return
	}

	writeSection(sb, "RESOURCES")
	if len(report.Resources) == 0 {
		sb.WriteString("  No resources\n\n")
		return
	}
	for _, res := range report.Resources {
		fmt.Fprintf(sb, "  %-10s %10s  %s\n", res.Kind, formatBytes(res.Size), res.Path)
	}
	sb.WriteString("\n")
}

// writeFailures lists assets that could not be mirrored.
func (w *SimpleWriter) writeFailures(sb *strings.Builder, report *model.MirrorReport) {
	if !report.HasFailures() && !w.showEmpty {
		return
	}

	writeSection(sb, "FAILURES")
	if !report.HasFailures() {
		sb.WriteString("  No failures\n\n")
		return
	}
	for _, f := range report.Failures {
		fmt.Fprintf(sb, "  [x] %s (%s)\n", f.Reference, f.Source)
		if f.URL != "" {
			fmt.Fprintf(sb, "      URL:   %s\n", f.URL)
		}
		fmt.Fprintf(sb, "      Error: %s\n", f.Error)
	}
	sb.WriteString("\n")
}

// writeFindings writes findings grouped by severity.
func (w *SimpleWriter) writeFindings(sb *strings.Builder, report *model.MirrorReport) {
	if len(report.Findings) == 0 && !w.showEmpty {
		return
	}

	writeSection(sb, "PRIVACY FINDINGS")

	for _, severity := range severityOrder {
		findings := findingsBySeverity(report.Findings, severity)
		if len(findings) == 0 && !w.showEmpty {
			continue
		}
		w.writeFindingsForSeverity(sb, severity, findings)
	}
}

// writeFindingsForSeverity writes findings of a specific severity level.
func (w *SimpleWriter) writeFindingsForSeverity(sb *strings.Builder, severity model.Severity, findings []model.Finding) {
	fmt.Fprintf(sb, "[%s] %s\n", severityIndicator(severity), severity)

	if len(findings) == 0 {
		sb.WriteString("  No findings\n\n")
		return
	}

	for _, f := range findings {
		fmt.Fprintf(sb, "  * %s\n", f.Title)
		if f.Value != "" {
			fmt.Fprintf(sb, "    Value: %s\n", f.Value)
		}
		if f.Location != "" {
			fmt.Fprintf(sb, "    Location: %s\n", f.Location)
		}
		if w.verbose && f.Impact != "" {
			fmt.Fprintf(sb, "    Impact: %s\n", f.Impact)
		}
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	writeRule(sb, "=")
	sb.WriteString("Report generated by onepage\n")
	sb.WriteString("https://github.com/nao1215/onepage\n")
	writeRule(sb, "=")
}

// WriteDiff outputs the comparison of two runs in human-readable format.
func (w *SimpleWriter) WriteDiff(diff *model.MirrorDiff) (int, error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Mirror Comparison: %s\n", diff.RootURL)
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "Previous run: %s  %s\n", diff.Previous.StartedAt.Format("2006-01-02 15:04:05"), diff.Previous.ID)
	fmt.Fprintf(&sb, "Current run:  %s  %s\n", diff.Current.StartedAt.Format("2006-01-02 15:04:05"), diff.Current.ID)

	sb.WriteString("\nSummary:\n")
	fmt.Fprintf(&sb, "  %-10s  %-12s  %-12s  %-12s\n", "Metric", "Previous", "Current", "Change")
	sb.WriteString("  " + strings.Repeat("-", 52) + "\n")
	fmt.Fprintf(&sb, "  %-10s  %-12d  %-12d  %-12s\n", "Files",
		diff.Previous.ResourceCount, diff.Current.ResourceCount,
		formatDelta(diff.Current.ResourceCount-diff.Previous.ResourceCount))
	fmt.Fprintf(&sb, "  %-10s  %-12d  %-12d  %-12s\n", "Failures",
		diff.Previous.FailureCount, diff.Current.FailureCount,
		formatDelta(diff.Current.FailureCount-diff.Previous.FailureCount))
	fmt.Fprintf(&sb, "  %-10s  %-12s  %-12s  %-12s\n", "Size",
		formatBytes(diff.Previous.TotalBytes), formatBytes(diff.Current.TotalBytes),
		formatSizeDelta(diff.SizeDelta()))

	if !diff.HasChanges() {
		sb.WriteString("\nNo changes.\n")
	}

	if len(diff.Added) > 0 {
		fmt.Fprintf(&sb, "\nAdded (%d):\n", len(diff.Added))
		for _, res := range diff.Added {
			fmt.Fprintf(&sb, "  [+] %s (%s)\n", res.Path, formatBytes(res.Size))
		}
	}
	if len(diff.Removed) > 0 {
		fmt.Fprintf(&sb, "\nRemoved (%d):\n", len(diff.Removed))
		for _, res := range diff.Removed {
			fmt.Fprintf(&sb, "  [-] %s (%s)\n", res.Path, formatBytes(res.Size))
		}
	}
	if len(diff.Changed) > 0 {
		fmt.Fprintf(&sb, "\nChanged (%d):\n", len(diff.Changed))
		for _, c := range diff.Changed {
			fmt.Fprintf(&sb, "  [~] %s (%s -> %s)\n", c.Path, formatBytes(c.OldSize), formatBytes(c.NewSize))
		}
	}
	if diff.UnchangedCount > 0 {
		fmt.Fprintf(&sb, "\nUnchanged: %d files\n", diff.UnchangedCount)
	}

	return io.WriteString(w.output, sb.String())
}

// severityOrder lists severities from most to least severe.
var severityOrder = []model.Severity{
	model.SeverityHigh,
	model.SeverityMedium,
	model.SeverityLow,
	model.SeverityInfo,
}

// findingsBySeverity returns the findings of one severity, keeping order.
func findingsBySeverity(findings []model.Finding, severity model.Severity) []model.Finding {
	var out []model.Finding
	for _, f := range findings {
		if f.Severity == severity {
			out = append(out, f)
		}
	}
	return out
}

// severityIndicator returns a visual indicator for the severity level.
func severityIndicator(severity model.Severity) string {
	switch severity {
	case model.SeverityHigh:
		return "!!"
	case model.SeverityMedium:
		return "!"
	case model.SeverityLow:
		return "-"
	case model.SeverityInfo:
		return "i"
	default:
		return "?"
	}
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return fmt.Sprintf("+%d", delta)
	}
	return fmt.Sprintf("%d", delta)
}
