package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/mdimg/internal/model"
)

// timeRounding trims sub-millisecond noise from elapsed durations.
const timeRounding = time.Millisecond

// SimpleWriter outputs human-readable text reports.
// This format is designed for terminal display with clear section
// formatting and no ANSI colors, so it pipes cleanly to files.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no entries are shown.
	showEmpty bool

	// verbose enables additional detail in the output.
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
		showEmpty:  false,
		verbose:    false,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.SyncReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSummary(&sb, report)
	w.writeFailures(&sb, report)
	w.writeFindings(&sb, report)
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with document information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.SyncReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                         MDIMG SYNC REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Document:    %s\n", report.Document))
	if report.OutputPath != "" {
		sb.WriteString(fmt.Sprintf("Output:      %s\n", report.OutputPath))
	}
	sb.WriteString(fmt.Sprintf("Prefix:      %s\n", report.Prefix))
	sb.WriteString(fmt.Sprintf("Sync Date:   %s\n", report.DateSynced.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Elapsed:     %s\n", report.Elapsed.Round(timeRounding)))

	switch {
	case report.Cancelled:
		sb.WriteString("Status:      CANCELLED (partial results)\n")
	case report.Error != nil:
		sb.WriteString(fmt.Sprintf("Status:      ERROR - %s\n", report.Error))
	default:
		sb.WriteString("Status:      Complete\n")
	}

	sb.WriteString("\n")
}

// writeSummary writes the download summary section.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.SyncReport) {
	summary := report.Summarize()

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("DOWNLOAD SUMMARY\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("  IMAGES FOUND: %d\n", summary.Total))
	sb.WriteString(fmt.Sprintf("  DOWNLOADED:   %d\n", summary.Downloaded))
	sb.WriteString(fmt.Sprintf("  SKIPPED:      %d\n", summary.Skipped))
	sb.WriteString(fmt.Sprintf("  FAILED:       %d\n", summary.Failed))
	sb.WriteString(fmt.Sprintf("  REWRITTEN:    %d link(s)\n", report.Rewritten))
	sb.WriteString("\n")
}

// writeFailures lists every URL whose retries were exhausted.
func (w *SimpleWriter) writeFailures(sb *strings.Builder, report *model.SyncReport) {
	failed := report.FailedDownloads()
	if len(failed) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("FAILED DOWNLOADS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(failed) == 0 {
		sb.WriteString("  No failures\n")
	} else {
		for _, d := range failed {
			sb.WriteString(fmt.Sprintf("  [x] %s\n", d.URL))
			sb.WriteString(fmt.Sprintf("      Attempts: %d\n", d.Attempts))
			if d.Error != "" {
				sb.WriteString(fmt.Sprintf("      Error: %s\n", d.Error))
			}
		}
	}
	sb.WriteString("\n")
}

// writeFindings writes metadata findings grouped by severity.
func (w *SimpleWriter) writeFindings(sb *strings.Builder, report *model.SyncReport) {
	if len(report.Findings) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("METADATA FINDINGS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	severities := []model.Severity{
		model.SeverityHigh,
		model.SeverityMedium,
		model.SeverityLow,
		model.SeverityInfo,
	}

	for _, severity := range severities {
		findings := report.FindingsBySeverity(severity)
		if len(findings) == 0 && !w.showEmpty {
			continue
		}

		w.writeFindingsForSeverity(sb, severity, findings)
	}
}

// writeFindingsForSeverity writes findings of a specific severity level.
func (w *SimpleWriter) writeFindingsForSeverity(sb *strings.Builder, severity model.Severity, findings []model.Finding) {
	indicator := w.getSeverityIndicator(severity)
	sb.WriteString(fmt.Sprintf("[%s] %s\n", indicator, severity.String()))

	if len(findings) == 0 {
		sb.WriteString("  No findings\n\n")
		return
	}

	for _, finding := range findings {
		sb.WriteString(fmt.Sprintf("  * %s\n", finding.Title))
		if finding.Value != "" {
			sb.WriteString(fmt.Sprintf("    Value: %s\n", finding.Value))
		}
		if finding.File != "" {
			sb.WriteString(fmt.Sprintf("    File: %s\n", finding.File))
		}
		if w.verbose && finding.Description != "" {
			sb.WriteString(fmt.Sprintf("    Description: %s\n", finding.Description))
		}
	}
	sb.WriteString("\n")
}

// getSeverityIndicator returns a visual indicator for the severity level.
func (w *SimpleWriter) getSeverityIndicator(severity model.Severity) string {
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

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by mdimg\n")
	sb.WriteString("https://github.com/nao1215/mdimg\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
