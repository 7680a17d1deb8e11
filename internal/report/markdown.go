package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/onepage/internal/model"
)

// MarkdownWriter outputs reports in Markdown format for sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.MirrorReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeResources(md, report)
	w.writeFailures(md, report)
	w.writeFindings(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.MirrorReport) {
	md.H1("onepage Mirror Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"URL", "`" + report.RootURL + "`"},
			{"Run ID", "`" + report.ID + "`"},
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.Duration().String()},
			{"Mode", modeText(report)},
			{"Assets", enabledKinds(report.Options)},
			{"Status", w.statusText(report)},
		},
	})
	md.PlainText("")
}

// statusText returns the status text with an emoji marker.
func (w *MarkdownWriter) statusText(report *model.MirrorReport) string {
	switch {
	case !report.Succeeded():
		return "❌ Failed - " + report.Error
	case report.HasFailures():
		return "⚠️ Complete with " + strconv.Itoa(len(report.Failures)) + " failure(s)"
	default:
		return "✅ Complete"
	}
}

// writeSummary writes per-kind counts, a chart and an alert.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.MirrorReport) {
	md.H2("Summary")
	md.PlainText("")

	counts := report.CountByKind()
	rows := make([][]string, 0, len(model.AllKinds)+3)
	for _, kind := range model.AllKinds {
		if counts[kind] == 0 {
			continue
		}
		rows = append(rows, []string{kindLabel(kind), strconv.Itoa(counts[kind])})
	}
	rows = append(rows,
		[]string{"**Total**", "**" + strconv.Itoa(len(report.Resources)) + "** (" + formatBytes(report.TotalBytes()) + ")"},
		[]string{"Failed", strconv.Itoa(len(report.Failures))},
		[]string{"Skipped", strconv.FormatInt(report.Skipped, 10)},
	)

	md.Table(markdown.TableSet{
		Header: []string{"Kind", "Files"},
		Rows:   rows,
	})
	md.PlainText("")

	if len(report.Resources) > 1 {
		w.writePieChart(md, counts)
	}

	w.writeAlert(md, report)
}

// writePieChart writes a mermaid pie chart of files per kind.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, counts map[model.ResourceKind]int) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Mirrored Files by Kind"),
		piechart.WithShowData(true),
	)

	for _, kind := range model.AllKinds {
		if counts[kind] > 0 {
			chart.LabelAndIntValue(kindLabel(kind), uint64(counts[kind]))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an alert for the most important problem of the run.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.MirrorReport) {
	high := len(findingsBySeverity(report.Findings, model.SeverityHigh))
	medium := len(findingsBySeverity(report.Findings, model.SeverityMedium))

	switch {
	case !report.Succeeded():
		md.Cautionf("The root document could not be mirrored: %s", report.Error)
	case high > 0:
		md.Warningf(
			"Mirrored files reveal locations or secrets. %d high severity finding(s) should be removed before publishing.",
			high,
		)
	case medium > 0 || report.HasFailures():
		md.Importantf(
			"%d asset(s) failed and %d finding(s) may identify the site owner.",
			len(report.Failures), medium,
		)
	case len(report.Findings) > 0:
		md.Note("Only low severity and informational findings.")
	default:
		md.Tip("All assets were mirrored and nothing identifying was found.")
	}
	md.PlainText("")
}

// writeResources writes the table of mirrored files.
func (w *MarkdownWriter) writeResources(md *markdown.Markdown, report *model.MirrorReport) {
	md.H2("Resources")
	md.PlainText("")

	if len(report.Resources) == 0 {
		md.PlainText("No files were mirrored.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Resources))
	for i, res := range report.Resources {
		rows[i] = []string{
			"`" + truncateString(res.Path, 60) + "`",
			kindLabel(res.Kind),
			formatBytes(res.Size),
			"`" + shortHash(res.SHA256) + "`",
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Path", "Kind", "Size", "SHA-256"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFailures writes the table of failed assets.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, report *model.MirrorReport) {
	if !report.HasFailures() {
		return
	}

	md.H2("Failures")
	md.PlainText("")

	rows := make([][]string, len(report.Failures))
	for i, f := range report.Failures {
		status := "-"
		if f.StatusCode != 0 {
			status = strconv.Itoa(f.StatusCode)
		}
		rows[i] = []string{
			"`" + truncateString(f.Reference, 50) + "`",
			f.Source,
			status,
			truncateString(f.Error, 80),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Reference", "Source", "Status", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFindings writes findings grouped by severity.
func (w *MarkdownWriter) writeFindings(md *markdown.Markdown, report *model.MirrorReport) {
	if len(report.Findings) == 0 {
		return
	}

	md.H2("Privacy Findings")
	md.PlainText("")

	headers := map[model.Severity]string{
		model.SeverityHigh:   "### 🟠 High",
		model.SeverityMedium: "### 🟡 Medium",
		model.SeverityLow:    "### 🔵 Low",
		model.SeverityInfo:   "### ⚪ Info",
	}

	for _, sev := range severityOrder {
		findings := findingsBySeverity(report.Findings, sev)
		if len(findings) == 0 {
			continue
		}

		md.PlainText(headers[sev])
		md.PlainText("")
		w.writeFindingsTable(md, findings)
	}
}

// writeFindingsTable writes a table of findings with details.
func (w *MarkdownWriter) writeFindingsTable(md *markdown.Markdown, findings []model.Finding) {
	rows := make([][]string, len(findings))
	for i, f := range findings {
		rows[i] = []string{
			f.Title,
			truncateString(f.Value, 50),
			"`" + truncateString(f.Location, 40) + "`",
			truncateString(f.Recommendation, 60),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Title", "Value", "File", "Recommendation"},
		Rows:   rows,
	})
	md.PlainText("")

	seen := make(map[string]bool)
	for _, f := range findings {
		if f.Impact != "" && !seen[f.Type] {
			seen[f.Type] = true
			md.Details(f.Title, f.Impact)
		}
	}
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [onepage](https://github.com/nao1215/onepage)*")
}

// WriteDiff outputs the comparison of two runs in Markdown format.
func (w *MarkdownWriter) WriteDiff(diff *model.MirrorDiff) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Mirror Comparison: " + diff.RootURL)
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows: [][]string{
			{"Date", diff.Previous.StartedAt.Format("2006-01-02 15:04"), diff.Current.StartedAt.Format("2006-01-02 15:04"), "-"},
			{"Run ID", "`" + diff.Previous.ID + "`", "`" + diff.Current.ID + "`", "-"},
			{"Files", strconv.Itoa(diff.Previous.ResourceCount), strconv.Itoa(diff.Current.ResourceCount),
				formatDelta(diff.Current.ResourceCount - diff.Previous.ResourceCount)},
			{"Failures", strconv.Itoa(diff.Previous.FailureCount), strconv.Itoa(diff.Current.FailureCount),
				formatDelta(diff.Current.FailureCount - diff.Previous.FailureCount)},
			{"Size", formatBytes(diff.Previous.TotalBytes), formatBytes(diff.Current.TotalBytes), formatSizeDelta(diff.SizeDelta())},
		},
	})
	md.PlainText("")

	if !diff.HasChanges() {
		md.Tip("No files were added, removed or changed.")
		md.PlainText("")
	}

	if len(diff.Added) > 0 {
		md.H2("Added (" + strconv.Itoa(len(diff.Added)) + ")")
		md.PlainText("")
		items := make([]string, len(diff.Added))
		for i, res := range diff.Added {
			items[i] = "`" + res.Path + "` (" + formatBytes(res.Size) + ")"
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	if len(diff.Removed) > 0 {
		md.H2("Removed (" + strconv.Itoa(len(diff.Removed)) + ")")
		md.PlainText("")
		items := make([]string, len(diff.Removed))
		for i, res := range diff.Removed {
			items[i] = "~~`" + res.Path + "`~~"
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	if len(diff.Changed) > 0 {
		md.H2("Changed (" + strconv.Itoa(len(diff.Changed)) + ")")
		md.PlainText("")
		rows := make([][]string, len(diff.Changed))
		for i, c := range diff.Changed {
			rows[i] = []string{
				"`" + c.Path + "`",
				formatBytes(c.OldSize),
				formatBytes(c.NewSize),
				"`" + shortHash(c.OldSHA256) + "` → `" + shortHash(c.NewSHA256) + "`",
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Path", "Old Size", "New Size", "Hash"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	if diff.UnchangedCount > 0 {
		md.HorizontalRule()
		md.PlainText("")
		md.PlainTextf("*%d files unchanged*", diff.UnchangedCount)
	}

	return len(md.String()), md.Build()
}
