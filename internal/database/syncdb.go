package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/mdimg/internal/model"
)

// SyncDB provides SQLite-based storage for sync run history.
// It manages connection pooling and provides methods for saving and
// querying runs.
type SyncDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures SyncDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a SyncDB at the specified directory.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*SyncDB, error) {
	dbPath := filepath.Join(dbDir, "mdimg.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite connection string: mode=rw prevents creating
	// new files, mode=rwc allows creation.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	sdb := &SyncDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := sdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return sdb, nil
}

// Close closes the database connection.
func (sdb *SyncDB) Close() error {
	return sdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (sdb *SyncDB) createTables() error {
	schema := `
	-- Sync runs store one row per processed document
	CREATE TABLE IF NOT EXISTS sync_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		document TEXT NOT NULL,
		output_path TEXT,
		prefix TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		elapsed_ms INTEGER DEFAULT 0,
		total INTEGER DEFAULT 0,
		downloaded INTEGER DEFAULT 0,
		skipped INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		findings INTEGER DEFAULT 0,
		rewritten INTEGER DEFAULT 0,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_document ON sync_runs(document);
	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON sync_runs(timestamp);

	-- Downloads store the per-URL outcome of each run
	CREATE TABLE IF NOT EXISTS downloads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES sync_runs(id),
		url TEXT NOT NULL,
		filename TEXT NOT NULL,
		status TEXT NOT NULL,
		byte_size INTEGER DEFAULT 0,
		attempts INTEGER DEFAULT 0,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_downloads_run ON downloads(run_id);
	CREATE INDEX IF NOT EXISTS idx_downloads_url ON downloads(url);
	`

	_, err := sdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveSyncReport saves a completed sync run and its per-URL outcomes.
func (sdb *SyncDB) SaveSyncReport(ctx context.Context, report *model.SyncReport) (int64, error) {
	if report.Error != nil && report.ErrorMessage == "" {
		report.ErrorMessage = report.Error.Error()
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	summary := report.Summarize()

	tx, err := sdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op

	result, err := tx.ExecContext(ctx, `
	INSERT INTO sync_runs (document, output_path, prefix, elapsed_ms, total, downloaded, skipped, failed, findings, rewritten, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.Document,
		report.OutputPath,
		report.Prefix,
		report.Elapsed.Milliseconds(),
		summary.Total,
		summary.Downloaded,
		summary.Skipped,
		summary.Failed,
		summary.FindingCount,
		report.Rewritten,
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save sync run: %w", err)
	}

	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}

	for _, d := range report.Downloads {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO downloads (run_id, url, filename, status, byte_size, attempts, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		`,
			runID,
			d.URL,
			d.Filename,
			d.Status.String(),
			d.ByteSize,
			d.Attempts,
			d.Error,
		); err != nil {
			return 0, fmt.Errorf("failed to save download record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit sync run: %w", err)
	}

	return runID, nil
}

// SyncRunMetadata contains summary information about a stored sync run.
// This is used for displaying history without loading the full report.
type SyncRunMetadata struct {
	// ID is the unique identifier of the run in the database.
	ID int64

	// Document is the input document path.
	Document string

	// OutputPath is the rewritten document path.
	OutputPath string

	// Prefix is the destination prefix used for the run.
	Prefix string

	// Timestamp is when the run was performed.
	Timestamp time.Time

	// Elapsed is the total run duration.
	Elapsed time.Duration

	// Summary holds the aggregate counters.
	Summary model.Summary

	// Rewritten is the number of link occurrences replaced.
	Rewritten int
}

// ListRuns retrieves sync run metadata, newest first. When document is
// non-empty the results are restricted to that document. A limit of
// zero or less means no limit.
func (sdb *SyncDB) ListRuns(ctx context.Context, document string, limit int) ([]SyncRunMetadata, error) {
	query := `
	SELECT id, document, output_path, prefix, timestamp, elapsed_ms, total, downloaded, skipped, failed, findings, rewritten
	FROM sync_runs
	`
	args := make([]any, 0)

	if document != "" {
		query += " WHERE document = ?"
		args = append(args, document)
	}

	query += " ORDER BY timestamp DESC, id DESC"

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := sdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync runs: %w", err)
	}
	defer rows.Close()

	var results []SyncRunMetadata
	for rows.Next() {
		var meta SyncRunMetadata
		var timestamp string
		var elapsedMS int64
		var outputPath sql.NullString

		if err := rows.Scan(
			&meta.ID,
			&meta.Document,
			&outputPath,
			&meta.Prefix,
			&timestamp,
			&elapsedMS,
			&meta.Summary.Total,
			&meta.Summary.Downloaded,
			&meta.Summary.Skipped,
			&meta.Summary.Failed,
			&meta.Summary.FindingCount,
			&meta.Rewritten,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sync run: %w", err)
		}

		meta.OutputPath = outputPath.String
		meta.Timestamp = parseTimestamp(timestamp)
		meta.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		results = append(results, meta)
	}

	return results, rows.Err()
}

// ListDocuments returns the distinct documents that have sync history.
func (sdb *SyncDB) ListDocuments(ctx context.Context) ([]string, error) {
	rows, err := sdb.db.QueryContext(ctx, `
	SELECT DISTINCT document FROM sync_runs
	ORDER BY document
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var documents []string
	for rows.Next() {
		var document string
		if err := rows.Scan(&document); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		documents = append(documents, document)
	}

	return documents, rows.Err()
}

// GetRunByID retrieves a full sync report by its database ID.
// Returns nil without error when the ID is unknown.
func (sdb *SyncDB) GetRunByID(ctx context.Context, id int64) (*model.SyncReport, error) {
	var reportJSON string
	err := sdb.db.QueryRowContext(ctx, `
	SELECT report_json FROM sync_runs
	WHERE id = ?
	`, id).Scan(&reportJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync run: %w", err)
	}

	var report model.SyncReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &report, nil
}

// GetLatestRun retrieves the most recent sync report for a document.
// Returns nil without error when the document has no history.
func (sdb *SyncDB) GetLatestRun(ctx context.Context, document string) (*model.SyncReport, error) {
	var reportJSON string
	err := sdb.db.QueryRowContext(ctx, `
	SELECT report_json FROM sync_runs
	WHERE document = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT 1
	`, document).Scan(&reportJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync run: %w", err)
	}

	var report model.SyncReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}

	return &report, nil
}

// FailingURLs returns the URLs that failed in the most recent run for
// each document, with how often they have failed across all history.
func (sdb *SyncDB) FailingURLs(ctx context.Context, document string) (map[string]int, error) {
	query := `
	SELECT d.url, COUNT(*) FROM downloads d
	JOIN sync_runs r ON r.id = d.run_id
	WHERE d.status = 'failed'
	`
	args := make([]any, 0)

	if document != "" {
		query += " AND r.document = ?"
		args = append(args, document)
	}

	query += " GROUP BY d.url"

	rows, err := sdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query failing urls: %w", err)
	}
	defer rows.Close()

	failures := make(map[string]int)
	for rows.Next() {
		var url string
		var count int
		if err := rows.Scan(&url, &count); err != nil {
			return nil, fmt.Errorf("failed to scan failing url: %w", err)
		}
		failures[url] = count
	}

	return failures, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// SQLite may return timestamps in different formats depending on configuration.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
