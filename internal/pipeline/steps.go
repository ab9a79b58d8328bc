package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/mdimg/internal/config"
	"github.com/nao1215/mdimg/internal/download"
	"github.com/nao1215/mdimg/internal/extract"
	"github.com/nao1215/mdimg/internal/metadata"
	"github.com/nao1215/mdimg/internal/model"
	"github.com/nao1215/mdimg/internal/rewrite"
)

// ReadStep loads the document text into the report.
// A missing or unreadable document is a critical failure; no later
// step can do anything useful without the text.
type ReadStep struct{}

// NewReadStep creates a document reading step.
func NewReadStep() *ReadStep {
	return &ReadStep{}
}

// Name returns the step name.
func (s *ReadStep) Name() string {
	return "read"
}

// Do executes the read step.
func (s *ReadStep) Do(_ context.Context, report *model.SyncReport) error {
	data, err := os.ReadFile(report.Document) //nolint:gosec // Path comes from the user's own glob
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}
	report.Text = string(data)
	return nil
}

// ExtractStep scans the document text for remote image references.
type ExtractStep struct {
	// extractor finds image URLs in the text.
	extractor *extract.Extractor

	// logger for structured logging.
	logger *slog.Logger
}

// ExtractStepOption configures an ExtractStep.
type ExtractStepOption func(*ExtractStep)

// WithExtractLogger sets a custom logger for the extract step.
func WithExtractLogger(logger *slog.Logger) ExtractStepOption {
	return func(s *ExtractStep) {
		s.logger = logger
	}
}

// NewExtractStep creates a link extraction step.
func NewExtractStep(extractor *extract.Extractor, opts ...ExtractStepOption) *ExtractStep {
	s := &ExtractStep{
		extractor: extractor,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *ExtractStep) Name() string {
	return "extract"
}

// Do executes the extraction step.
func (s *ExtractStep) Do(_ context.Context, report *model.SyncReport) error {
	report.References = s.extractor.ImageURLs(report.Text)
	s.logger.Debug("extracted image references",
		"document", report.Document,
		"count", len(report.References),
	)
	return nil
}

// DownloadStep fetches every extracted reference into the images
// directory. URLs are fetched sequentially within one document so the
// per-host rate limits stay meaningful; concurrency happens across
// documents in the batch processor.
type DownloadStep struct {
	// downloader fetches and commits the files.
	downloader *download.Downloader

	// logger for structured logging.
	logger *slog.Logger
}

// DownloadStepOption configures a DownloadStep.
type DownloadStepOption func(*DownloadStep)

// WithDownloadLogger sets a custom logger for the download step.
func WithDownloadLogger(logger *slog.Logger) DownloadStepOption {
	return func(s *DownloadStep) {
		s.logger = logger
	}
}

// NewDownloadStep creates a download step.
func NewDownloadStep(downloader *download.Downloader, opts ...DownloadStepOption) *DownloadStep {
	s := &DownloadStep{
		downloader: downloader,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *DownloadStep) Name() string {
	return "download"
}

// Do executes the download step. Individual failures are recorded in
// the report; only cancellation aborts the step.
func (s *DownloadStep) Do(ctx context.Context, report *model.SyncReport) error {
	for _, ref := range report.References {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		result := s.downloader.Download(ctx, ref)
		report.Downloads = append(report.Downloads, result)

		if result.Status == model.StatusFailed {
			s.logger.Warn("download failed",
				"document", report.Document,
				"url", ref.URL,
				"error", result.Error,
			)
		}
	}
	return nil
}

// MetadataStep audits committed images for EXIF metadata.
// Omit this step to skip the audit entirely.
type MetadataStep struct {
	// auditor extracts EXIF findings from committed files.
	auditor *metadata.Auditor
}

// NewMetadataStep creates a metadata audit step.
func NewMetadataStep(auditor *metadata.Auditor) *MetadataStep {
	return &MetadataStep{auditor: auditor}
}

// Name returns the step name.
func (s *MetadataStep) Name() string {
	return "metadata"
}

// Do executes the metadata audit step.
func (s *MetadataStep) Do(ctx context.Context, report *model.SyncReport) error {
	findings, err := s.auditor.Audit(ctx, report.Downloads)
	if err != nil {
		return err
	}
	report.Findings = append(report.Findings, findings...)
	return nil
}

// RewriteStep replaces successfully synced URLs in the document text
// with the destination prefix plus filename.
type RewriteStep struct {
	// rewriter applies the replacements.
	rewriter *rewrite.Rewriter

	// prefix is the destination prefix, normalized on construction.
	prefix string
}

// NewRewriteStep creates a link rewriting step.
func NewRewriteStep(rewriter *rewrite.Rewriter, prefix string) *RewriteStep {
	return &RewriteStep{
		rewriter: rewriter,
		prefix:   config.NormalizePrefix(prefix),
	}
}

// Name returns the step name.
func (s *RewriteStep) Name() string {
	return "rewrite"
}

// Do executes the rewrite step.
func (s *RewriteStep) Do(_ context.Context, report *model.SyncReport) error {
	report.Prefix = s.prefix
	report.RewrittenText, report.Rewritten = s.rewriter.Rewrite(report.Text, report.RewriteMap())
	return nil
}

// WriteStep writes the rewritten text next to the original document
// with the configured suffix inserted before the extension:
// "docs/guide.md" becomes "docs/guide_new.md".
type WriteStep struct {
	// suffix is inserted before the file extension.
	suffix string
}

// NewWriteStep creates an output writing step.
func NewWriteStep(suffix string) *WriteStep {
	return &WriteStep{suffix: suffix}
}

// Name returns the step name.
func (s *WriteStep) Name() string {
	return "write"
}

// Do executes the write step.
func (s *WriteStep) Do(_ context.Context, report *model.SyncReport) error {
	outputPath := OutputPath(report.Document, s.suffix)
	if err := os.WriteFile(outputPath, []byte(report.RewrittenText), 0600); err != nil {
		return fmt.Errorf("failed to write output document: %w", err)
	}
	report.OutputPath = outputPath
	return nil
}

// OutputPath computes the rewritten document path: the suffix goes
// before the extension, so "docs/guide.md" with "_new" becomes
// "docs/guide_new.md". A file without extension gets the suffix
// appended.
func OutputPath(document, suffix string) string {
	ext := filepath.Ext(document)
	base := strings.TrimSuffix(document, ext)
	return base + suffix + ext
}
