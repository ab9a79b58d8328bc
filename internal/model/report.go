package model

import "time"

// SyncReport accumulates everything that happened while processing a
// single Markdown document. It is created before the pipeline runs and
// each step fills in its portion: extraction adds references, the
// downloader adds results, the metadata audit adds findings, and the
// rewriter records the output path and replacement count.
type SyncReport struct {
	// Document is the path of the input Markdown file.
	Document string `json:"document"`

	// OutputPath is the path of the rewritten document.
	// Empty until the write step runs.
	OutputPath string `json:"output_path,omitempty"`

	// Prefix is the destination prefix links were rewritten to,
	// normalized to end with "/".
	Prefix string `json:"prefix"`

	// DateSynced is when processing of this document started.
	DateSynced time.Time `json:"date_synced"`

	// Elapsed is the total processing duration.
	Elapsed time.Duration `json:"elapsed"`

	// References are the unique remote image URLs found in the
	// document, in order of first appearance.
	References []ImageReference `json:"references"`

	// Downloads holds one result per reference, in the same order.
	Downloads []DownloadResult `json:"downloads"`

	// Findings are metadata warnings raised for committed images.
	Findings []Finding `json:"findings,omitempty"`

	// Rewritten is the number of link occurrences replaced in the text.
	// This can exceed len(References) when a URL appears multiple times.
	Rewritten int `json:"rewritten"`

	// PerformedSteps lists the pipeline steps that ran, in order.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// Text is the raw document content, loaded once and shared by the
	// steps. Excluded from JSON to keep reports small.
	Text string `json:"-"`

	// RewrittenText is the document content after link replacement.
	RewrittenText string `json:"-"`

	// Error is the first critical error encountered, if any.
	Error error `json:"-"`

	// ErrorMessage mirrors Error as a string for serialization.
	ErrorMessage string `json:"error,omitempty"`

	// Cancelled is set when the run was interrupted before completion.
	Cancelled bool `json:"cancelled,omitempty"`
}

// NewSyncReport creates a SyncReport for the given document path.
func NewSyncReport(document string) *SyncReport {
	return &SyncReport{
		Document:   document,
		DateSynced: time.Now(),
		References: make([]ImageReference, 0),
		Downloads:  make([]DownloadResult, 0),
		Findings:   make([]Finding, 0),
	}
}

// RewriteMap returns the mapping from original URL to replacement
// string (prefix + filename) for every reference whose local file
// exists. Failed downloads are excluded so their URLs stay untouched.
func (r *SyncReport) RewriteMap() map[string]string {
	m := make(map[string]string, len(r.Downloads))
	for _, d := range r.Downloads {
		if d.OK() {
			m[d.URL] = r.Prefix + d.Filename
		}
	}
	return m
}

// Summary holds aggregate counters for one sync run.
type Summary struct {
	// Total is the number of unique image URLs extracted.
	Total int `json:"total"`

	// Downloaded is the number of files fetched and committed.
	Downloaded int `json:"downloaded"`

	// Skipped is the number of files already present with matching size.
	Skipped int `json:"skipped"`

	// Failed is the number of URLs whose retries were exhausted.
	Failed int `json:"failed"`

	// FindingCount is the number of metadata warnings raised.
	FindingCount int `json:"finding_count"`
}

// Summarize computes aggregate counters from the report's results.
func (r *SyncReport) Summarize() Summary {
	s := Summary{
		Total:        len(r.References),
		FindingCount: len(r.Findings),
	}
	for _, d := range r.Downloads {
		switch d.Status {
		case StatusDownloaded:
			s.Downloaded++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}

// FailedDownloads returns the results whose retries were exhausted.
func (r *SyncReport) FailedDownloads() []DownloadResult {
	failed := make([]DownloadResult, 0)
	for _, d := range r.Downloads {
		if d.Status == StatusFailed {
			failed = append(failed, d)
		}
	}
	return failed
}

// FindingsBySeverity returns findings matching the given severity.
func (r *SyncReport) FindingsBySeverity(sev Severity) []Finding {
	findings := make([]Finding, 0)
	for _, f := range r.Findings {
		if f.Severity == sev {
			findings = append(findings, f)
		}
	}
	return findings
}
