package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/mdimg/internal/model"
)

// MarkdownWriter outputs reports in Markdown format.
// This format is designed for documentation and sharing, using the
// nao1215/markdown library for tables, alerts, and mermaid charts.
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
func (w *MarkdownWriter) Write(report *model.SyncReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeDownloads(md, report)
	w.writeFindings(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with document information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.SyncReport) {
	md.H1("Image Sync Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Document", "`" + report.Document + "`"},
			{"Output", "`" + report.OutputPath + "`"},
			{"Prefix", "`" + report.Prefix + "`"},
			{"Sync Date", report.DateSynced.Format("2006-01-02 15:04:05 MST")},
			{"Elapsed", report.Elapsed.Round(timeRounding).String()},
			{"Status", w.getStatusText(report)},
		},
	})
	md.PlainText("")
}

// getStatusText returns the status text based on report state.
func (w *MarkdownWriter) getStatusText(report *model.SyncReport) string {
	if report.Cancelled {
		return "⚠️ Cancelled (partial results)"
	}
	if report.Error != nil {
		return "❌ Error - " + report.Error.Error()
	}
	return "✅ Complete"
}

// writeSummary writes the download summary section.
func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.SyncReport) {
	summary := report.Summarize()

	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows: [][]string{
			{"🟢 Downloaded", strconv.Itoa(summary.Downloaded)},
			{"🔵 Skipped", strconv.Itoa(summary.Skipped)},
			{"🔴 Failed", strconv.Itoa(summary.Failed)},
			{"**Total**", "**" + strconv.Itoa(summary.Total) + "**"},
		},
	})
	md.PlainText("")

	if summary.Total > 0 {
		w.writePieChart(md, summary)
	}

	w.writeAlert(md, report, summary)
}

// writePieChart writes a mermaid pie chart for the outcome distribution.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary model.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Download Outcomes"),
		piechart.WithShowData(true),
	)

	if summary.Downloaded > 0 {
		chart.LabelAndIntValue("Downloaded", uint64(summary.Downloaded))
	}
	if summary.Skipped > 0 {
		chart.LabelAndIntValue("Skipped", uint64(summary.Skipped))
	}
	if summary.Failed > 0 {
		chart.LabelAndIntValue("Failed", uint64(summary.Failed))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an appropriate alert based on the outcome counts.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.SyncReport, summary model.Summary) {
	highCount := len(report.FindingsBySeverity(model.SeverityHigh))

	switch {
	case summary.Failed > 0:
		md.Warningf(
			"%d download(s) failed. Their links were left untouched; run the sync again to retry.",
			summary.Failed,
		)
	case highCount > 0:
		md.Cautionf(
			"%d image(s) carry high-severity metadata such as GPS coordinates. Scrub them before publishing.",
			highCount,
		)
	case summary.FindingCount > 0:
		md.Notef("%d metadata finding(s) detected in the downloaded images.", summary.FindingCount)
	case summary.Total > 0:
		md.Tip("All images synced cleanly.")
	default:
		md.Note("No remote images found in this document.")
	}
	md.PlainText("")
}

// writeDownloads writes a table with one row per image reference.
func (w *MarkdownWriter) writeDownloads(md *markdown.Markdown, report *model.SyncReport) {
	md.H2("Downloads")
	md.PlainText("")

	if len(report.Downloads) == 0 {
		md.PlainText("No remote images referenced.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Downloads))
	for i, d := range report.Downloads {
		detail := "-"
		switch d.Status {
		case model.StatusFailed:
			detail = truncateString(d.Error, 60)
		case model.StatusDownloaded, model.StatusSkipped:
			detail = strconv.FormatInt(d.ByteSize, 10) + " bytes"
		}

		rows[i] = []string{
			truncateString(d.URL, 60),
			d.Filename,
			d.Status.String(),
			detail,
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Filename", "Status", "Detail"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFindings writes metadata findings grouped by severity.
func (w *MarkdownWriter) writeFindings(md *markdown.Markdown, report *model.SyncReport) {
	md.H2("Metadata Findings")
	md.PlainText("")

	if len(report.Findings) == 0 {
		md.PlainText("No metadata findings in the downloaded images.")
		md.PlainText("")
		return
	}

	severities := []struct {
		level  model.Severity
		header string
	}{
		{model.SeverityHigh, "### 🟠 High"},
		{model.SeverityMedium, "### 🟡 Medium"},
		{model.SeverityLow, "### 🔵 Low"},
		{model.SeverityInfo, "### ⚪ Info"},
	}

	for _, sev := range severities {
		findings := report.FindingsBySeverity(sev.level)
		if len(findings) == 0 {
			continue
		}

		md.PlainText(sev.header)
		md.PlainText("")
		w.writeFindingsTable(md, findings)
	}
}

// writeFindingsTable writes a table of findings with details.
func (w *MarkdownWriter) writeFindingsTable(md *markdown.Markdown, findings []model.Finding) {
	rows := make([][]string, len(findings))
	for i, f := range findings {
		value := f.Value
		if value == "" {
			value = "-"
		}
		file := f.File
		if file == "" {
			file = "-"
		}

		rows[i] = []string{
			f.Title,
			truncateString(value, 50),
			truncateString(file, 40),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Title", "Value", "File"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, f := range findings {
		if f.Description != "" {
			md.Details(f.Title, f.Description)
		}
	}
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [mdimg](https://github.com/nao1215/mdimg)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
