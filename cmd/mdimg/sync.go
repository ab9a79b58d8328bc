package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/mdimg/internal/config"
	"github.com/nao1215/mdimg/internal/database"
	"github.com/nao1215/mdimg/internal/download"
	"github.com/nao1215/mdimg/internal/extract"
	mdlog "github.com/nao1215/mdimg/internal/log"
	"github.com/nao1215/mdimg/internal/metadata"
	"github.com/nao1215/mdimg/internal/model"
	"github.com/nao1215/mdimg/internal/pipeline"
	"github.com/nao1215/mdimg/internal/report"
	"github.com/nao1215/mdimg/internal/rewrite"
)

// NewSyncCmd creates the sync command.
func NewSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync [file-patterns...]",
		Short: "Download remote images and rewrite Markdown references",
		Long: `Sync downloads the remote images referenced by the given Markdown
documents, commits them to a local directory, and writes a copy of each
document with the references rewritten to the destination prefix.

The original documents are never modified. Failed URLs keep their
original form so a later run can pick them up.

Examples:
  # Sync one document to a CDN prefix
  mdimg sync --prefix https://cdn.example.com/img/ docs/guide.md

  # Sync a whole directory of posts (".md" is appended to bare patterns)
  mdimg sync -p /static/images/ "posts/*"

  # Preview without downloading or writing anything
  mdimg sync -p https://cdn.example.com/img/ --dry-run docs/guide.md

  # JSON report to a file
  mdimg sync -p https://cdn.example.com/img/ -j -o report.json docs/guide.md

Configuration file (.mdimg) example:
  defaults:
    prefix: "https://cdn.example.com/blog/"
  hosts:
    img.example.com:
      referer: "https://blog.example.com/"
      cookie: "session_id=abc123"`,
		Args: cobra.ArbitraryArgs,
		RunE: runSyncCmd,
	}

	// Destination flags
	cmd.Flags().StringP("prefix", "p", "",
		"Destination prefix substituted for original URLs (e.g. https://cdn.example.com/img/)")
	cmd.Flags().StringP("images-dir", "i", config.DefaultImagesDir,
		"Directory downloaded images are committed to")
	cmd.Flags().StringP("suffix", "s", config.DefaultSuffix,
		"Suffix inserted before the extension of the rewritten document")

	// Download behavior flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"HTTP timeout for each request")
	cmd.Flags().IntP("retries", "r", config.DefaultRetries,
		"Number of retries after the first failed attempt")
	cmd.Flags().Duration("backoff", config.DefaultBackoff,
		"Base backoff duration; the wait doubles after each retry")
	cmd.Flags().Duration("delay", config.DefaultDelay,
		"Minimum interval between requests to the same host")

	// Batch processing flags
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of documents processed concurrently")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .mdimg in current or home directory)")

	// Behavior switches
	cmd.Flags().Bool("dry-run", false,
		"Extract and report without downloading or writing files")
	cmd.Flags().Bool("no-audit", false,
		"Skip the EXIF metadata audit of downloaded images")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

// runSyncCmd executes the sync command.
func runSyncCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Set up structured logging
	verbose := getVerboseFlag(cmd)
	logger := mdlog.NewSecureLogger(os.Stderr, verbose)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal, cancelling...")
		cancel()
	}()

	return runSync(ctx, cfg, logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error

	cfg.Prefix, err = cmd.Flags().GetString("prefix")
	if err != nil {
		return nil, err
	}

	cfg.ImagesDir, err = cmd.Flags().GetString("images-dir")
	if err != nil {
		return nil, err
	}

	cfg.Suffix, err = cmd.Flags().GetString("suffix")
	if err != nil {
		return nil, err
	}

	cfg.Timeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	cfg.Retries, err = cmd.Flags().GetInt("retries")
	if err != nil {
		return nil, err
	}

	cfg.Backoff, err = cmd.Flags().GetDuration("backoff")
	if err != nil {
		return nil, err
	}

	cfg.Delay, err = cmd.Flags().GetDuration("delay")
	if err != nil {
		return nil, err
	}

	cfg.BatchSize, err = cmd.Flags().GetInt("batch")
	if err != nil {
		return nil, err
	}

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg.DryRun, err = cmd.Flags().GetBool("dry-run")
	if err != nil {
		return nil, err
	}

	cfg.NoAudit, err = cmd.Flags().GetBool("no-audit")
	if err != nil {
		return nil, err
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	// Load per-host configurations from the config file.
	// If the user explicitly specified a path, error if not found.
	// Otherwise silently use an empty config.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cfg.Hosts, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		applyFileDefaults(cmd, cfg)
	} else if explicitConfigPath {
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	} else {
		cfg.Hosts = &config.File{
			Hosts: make(map[string]config.HostConfig),
		}
	}

	// Completed runs are always recorded in the XDG data directory,
	// except for dry runs which change nothing.
	cfg.SaveHistory = !cfg.DryRun
	cfg.DBDir = config.XDGDataDir()

	cfg.Patterns = args

	return cfg, nil
}

// applyFileDefaults fills config values from the file's defaults block
// for flags the user did not set explicitly. CLI flags always win.
func applyFileDefaults(cmd *cobra.Command, cfg *config.Config) {
	defaults := cfg.Hosts.Defaults

	if !cmd.Flags().Changed("prefix") && defaults.Prefix != "" {
		cfg.Prefix = defaults.Prefix
	}
	if !cmd.Flags().Changed("images-dir") && defaults.ImagesDir != "" {
		cfg.ImagesDir = defaults.ImagesDir
	}
	if !cmd.Flags().Changed("suffix") && defaults.Suffix != "" {
		cfg.Suffix = defaults.Suffix
	}
	if defaults.UserAgent != "" {
		cfg.UserAgent = defaults.UserAgent
	}
	if !cmd.Flags().Changed("delay") && defaults.DelayMillis > 0 {
		cfg.Delay = time.Duration(defaults.DelayMillis) * time.Millisecond
	}
}

// expandPatterns expands the input patterns into document paths.
// A pattern without an extension gets ".md" appended before glob
// expansion. A pattern matching nothing is an error; a typo should not
// silently sync zero documents.
func expandPatterns(patterns []string) ([]string, error) {
	documents := make([]string, 0, len(patterns))
	seen := make(map[string]bool)

	for _, pattern := range patterns {
		if filepath.Ext(pattern) == "" {
			pattern += ".md"
		}

		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no documents match pattern %q", pattern)
		}

		for _, m := range matches {
			if seen[m] {
				continue
			}
			seen[m] = true
			documents = append(documents, m)
		}
	}

	return documents, nil
}

// runSync executes the sync.
func runSync(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	documents, err := expandPatterns(cfg.Patterns)
	if err != nil {
		return err
	}

	logger.Info("starting sync",
		"documents", len(documents),
		"prefix", cfg.Prefix,
		"imagesDir", cfg.ImagesDir,
		"batchSize", cfg.BatchSize,
		"dryRun", cfg.DryRun,
	)

	// Open database connection if history saving is enabled
	var db *database.SyncDB
	if cfg.SaveHistory {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("history database opened", "dir", cfg.DBDir)
	}

	client, err := download.NewClient(cfg.Timeout,
		download.WithUserAgent(cfg.UserAgent),
		download.WithHosts(cfg.Hosts),
		download.WithDelay(cfg.Delay),
		download.WithClientLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create HTTP client: %w", err)
	}

	factory := newPipelineFactory(cfg, client, logger)

	// Use the batch processor for parallel syncing of multiple documents
	if len(documents) > 1 && cfg.BatchSize > 1 {
		return runBatchSync(ctx, cfg, documents, factory, db, logger)
	}

	return runSequentialSync(ctx, cfg, documents, factory, db, logger)
}

// newPipelineFactory builds the per-document pipeline constructor.
// Dry runs stop after extraction; the audit step is skippable.
func newPipelineFactory(cfg *config.Config, client *download.Client, logger *slog.Logger) func() *pipeline.Pipeline {
	extractor := extract.New()

	return func() *pipeline.Pipeline {
		p := pipeline.New(pipeline.WithLogger(logger))
		p.AddSteps(
			pipeline.NewReadStep(),
			pipeline.NewExtractStep(extractor, pipeline.WithExtractLogger(logger)),
		)

		if cfg.DryRun {
			return p
		}

		downloader := download.NewDownloader(client, cfg.ImagesDir,
			download.WithRetries(cfg.Retries),
			download.WithBackoff(cfg.Backoff),
			download.WithMaxBodySize(cfg.MaxBodySize),
			download.WithLogger(logger),
		)
		p.AddStep(pipeline.NewDownloadStep(downloader, pipeline.WithDownloadLogger(logger)))

		if !cfg.NoAudit {
			auditor := metadata.NewAuditor(
				metadata.WithMaxImageSize(cfg.MaxBodySize),
				metadata.WithLogger(logger),
			)
			p.AddStep(pipeline.NewMetadataStep(auditor))
		}

		p.AddSteps(
			pipeline.NewRewriteStep(rewrite.New(extractor.Pattern()), cfg.Prefix),
			pipeline.NewWriteStep(cfg.Suffix),
		)

		return p
	}
}

// runSequentialSync processes documents one at a time.
func runSequentialSync(ctx context.Context, cfg *config.Config, documents []string, factory func() *pipeline.Pipeline, db *database.SyncDB, logger *slog.Logger) error {
	for _, document := range documents {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		syncReport := model.NewSyncReport(document)

		fmt.Printf("Syncing %s...\n", document)

		if err := factory().Execute(ctx, syncReport); err != nil {
			logger.Error("sync failed", "document", document, "error", err)
			fmt.Fprintf(os.Stderr, "Sync error for %s: %v\n", document, err)
			continue
		}

		fmt.Printf("Sync completed in %s\n\n", syncReport.Elapsed.Round(time.Millisecond))

		if err := outputReport(cfg, syncReport); err != nil {
			logger.Error("report failed", "document", document, "error", err)
		}

		if err := saveSyncReport(ctx, db, syncReport, logger); err != nil {
			logger.Error("failed to save sync report", "document", document, "error", err)
		}

		noteFailures(syncReport)
	}

	return nil
}

// noteFailures warns on stderr when a document had failed downloads.
// The rewritten copy keeps those URLs, so a re-run can retry them.
func noteFailures(syncReport *model.SyncReport) {
	if failed := syncReport.Summarize().Failed; failed > 0 {
		fmt.Fprintf(os.Stderr, "Warning: %d download(s) failed for %s; original URLs were kept\n",
			failed, syncReport.Document)
	}
}

// runBatchSync processes documents concurrently using the BatchProcessor.
func runBatchSync(ctx context.Context, cfg *config.Config, documents []string, factory func() *pipeline.Pipeline, db *database.SyncDB, logger *slog.Logger) error {
	fmt.Printf("Starting batch sync of %d documents (concurrency: %d)...\n\n",
		len(documents), cfg.BatchSize)

	startTime := time.Now()

	bp := pipeline.NewBatchProcessor(factory,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	// Process with callback for streaming output
	var mu sync.Mutex
	err := bp.ProcessBatchWithCallback(ctx, documents, func(syncReport *model.SyncReport, index int) {
		mu.Lock()
		defer mu.Unlock()

		fmt.Printf("[%d/%d] Sync completed: %s\n", index+1, len(documents), syncReport.Document)

		if err := outputReport(cfg, syncReport); err != nil {
			logger.Error("report failed", "document", syncReport.Document, "error", err)
		}

		if err := saveSyncReport(ctx, db, syncReport, logger); err != nil {
			logger.Error("failed to save sync report", "document", syncReport.Document, "error", err)
		}

		noteFailures(syncReport)
	})

	fmt.Printf("\nBatch sync completed in %s\n", time.Since(startTime).Round(time.Millisecond))

	return err
}

// outputReport outputs the sync report in the requested format.
func outputReport(cfg *config.Config, syncReport *model.SyncReport) error {
	// Determine output destination
	var output *os.File
	if cfg.ReportFile != "" {
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		// Reports can reveal the user's cookie-bearing hosts, so keep
		// them owner-readable only.
		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	} else {
		output = os.Stdout
	}

	var writer report.Writer
	switch {
	case cfg.JSONReport:
		writer = report.NewJSONWriter(output, report.WithPrettyPrint())
	case cfg.MarkdownReport:
		writer = report.NewMarkdownWriter(output)
	default:
		writer = report.NewSimpleWriter(output)
	}

	_, err := writer.Write(syncReport)
	return err
}

// saveSyncReport saves the sync report to the database if enabled.
// If db is nil, this function is a no-op.
func saveSyncReport(ctx context.Context, db *database.SyncDB, syncReport *model.SyncReport, logger *slog.Logger) error {
	if db == nil {
		return nil
	}

	// A cancelled batch should not race the closing database.
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}

	if _, err := db.SaveSyncReport(ctx, syncReport); err != nil {
		return fmt.Errorf("failed to save sync report: %w", err)
	}

	logger.Info("sync report saved to history", "document", syncReport.Document)
	return nil
}
