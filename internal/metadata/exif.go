package metadata

import (
	"context"
	"io"
	"log/slog"
	"os"
	"regexp"

	exif "github.com/dsoprea/go-exif/v3"

	"github.com/nao1215/mdimg/internal/model"
)

// defaultMaxImageSize limits how much of a file the auditor reads.
// EXIF segments sit near the start of the file, so reading more than
// this buys nothing.
const defaultMaxImageSize = 50 * 1024 * 1024

// exifCapable matches filenames of formats that can carry EXIF
// segments. PNG and GIF downloads are skipped; the containers have no
// EXIF support worth auditing.
var exifCapable = regexp.MustCompile(`(?i)\.(jpe?g|tiff?)$`)

// Auditor extracts EXIF metadata from downloaded image files and
// reports tags a user would want scrubbed before re-publishing.
//
// The auditor checks for:
//   - GPS coordinates (location disclosure)
//   - Device serial numbers (device tracking)
//   - Author/copyright fields (identity disclosure)
//   - Camera make/model and timestamps (device and timezone inference)
//   - Software and host computer names (environment disclosure)
type Auditor struct {
	// maxImageSize limits the bytes read per file.
	maxImageSize int64

	// logger for structured logging.
	logger *slog.Logger
}

// Option configures an Auditor.
type Option func(*Auditor)

// WithMaxImageSize sets the maximum number of bytes read per file.
func WithMaxImageSize(size int64) Option {
	return func(a *Auditor) {
		if size > 0 {
			a.maxImageSize = size
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Auditor) {
		a.logger = logger
	}
}

// NewAuditor creates an Auditor.
func NewAuditor(opts ...Option) *Auditor {
	a := &Auditor{
		maxImageSize: defaultMaxImageSize,
	}

	for _, opt := range opts {
		opt(a)
	}

	if a.logger == nil {
		a.logger = slog.Default()
	}

	return a
}

// Audit inspects the committed files of the given download results.
// Unreadable files and files without EXIF data are skipped silently;
// a broken image must not fail the sync that downloaded it.
func (a *Auditor) Audit(ctx context.Context, results []model.DownloadResult) ([]model.Finding, error) {
	findings := make([]model.Finding, 0)

	for _, result := range results {
		select {
		case <-ctx.Done():
			return findings, ctx.Err()
		default:
		}

		if !result.OK() || result.LocalPath == "" {
			continue
		}
		if !exifCapable.MatchString(result.LocalPath) {
			continue
		}

		fileFindings, err := a.auditFile(result.LocalPath)
		if err != nil {
			a.logger.Debug("skipping unreadable image", "path", result.LocalPath, "error", err)
			continue
		}
		findings = append(findings, fileFindings...)
	}

	return findings, nil
}

// auditFile reads one image file and extracts its EXIF findings.
func (a *Auditor) auditFile(path string) ([]model.Finding, error) {
	f, err := os.Open(path) //nolint:gosec // Path is a file this run committed
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, a.maxImageSize))
	if err != nil {
		return nil, err
	}

	return a.auditImageData(data, path), nil
}

// auditImageData extracts EXIF findings from image bytes.
func (a *Auditor) auditImageData(imageData []byte, path string) []model.Finding {
	findings := make([]model.Finding, 0)

	rawExif, err := exif.SearchAndExtractExif(imageData)
	if err != nil || rawExif == nil {
		return findings
	}

	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return findings
	}

	for _, entry := range entries {
		tagName := entry.TagName
		value := entry.Formatted

		switch tagName {
		case "GPSLatitude", "GPSLongitude", "GPSLatitudeRef", "GPSLongitudeRef":
			findings = append(findings, model.Finding{
				Type:        "exif_gps",
				Title:       "GPS Coordinates in Image EXIF",
				Description: "The image embeds GPS coordinates revealing where it was taken. Strip them before publishing.",
				Severity:    model.SeverityHigh,
				Value:       tagName + ": " + value,
				File:        path,
			})

		case "SerialNumber", "CameraSerialNumber", "BodySerialNumber", "LensSerialNumber":
			findings = append(findings, model.Finding{
				Type:        "exif_serial",
				Title:       "Device Serial Number in Image EXIF",
				Description: "The image embeds a device serial number, a unique identifier that links photos taken with the same device.",
				Severity:    model.SeverityMedium,
				Value:       tagName + ": " + value,
				File:        path,
			})

		case "Artist", "Author", "Copyright", "XPAuthor":
			findings = append(findings, model.Finding{
				Type:        "exif_author",
				Title:       "Author Information in Image EXIF",
				Description: "The image embeds author or copyright information that could identify the photographer.",
				Severity:    model.SeverityMedium,
				Value:       tagName + ": " + value,
				File:        path,
			})

		case "Make", "Model":
			findings = append(findings, model.Finding{
				Type:        "exif_camera",
				Title:       "Camera Information in Image EXIF",
				Description: "The image embeds camera make or model information.",
				Severity:    model.SeverityLow,
				Value:       tagName + ": " + value,
				File:        path,
			})

		case "DateTimeOriginal", "DateTimeDigitized", "DateTime":
			findings = append(findings, model.Finding{
				Type:        "exif_datetime",
				Title:       "Timestamp in Image EXIF",
				Description: "The image embeds an original timestamp, which can reveal a timezone or activity pattern.",
				Severity:    model.SeverityLow,
				Value:       tagName + ": " + value,
				File:        path,
			})

		case "Software", "ProcessingSoftware":
			findings = append(findings, model.Finding{
				Type:        "exif_software",
				Title:       "Software Information in Image EXIF",
				Description: "The image embeds the name of the software used to create or edit it.",
				Severity:    model.SeverityInfo,
				Value:       tagName + ": " + value,
				File:        path,
			})

		case "HostComputer":
			findings = append(findings, model.Finding{
				Type:        "exif_computer",
				Title:       "Host Computer in Image EXIF",
				Description: "The image embeds the name of the computer used to process it.",
				Severity:    model.SeverityInfo,
				Value:       tagName + ": " + value,
				File:        path,
			})
		}
	}

	return findings
}
