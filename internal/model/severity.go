package model

import "fmt"

// Severity represents how concerning a metadata finding is for a user
// about to publish the downloaded images on a public destination.
//
// Design decision: We use iota-based constants rather than string
// constants for efficiency in comparisons and sorting. The String()
// method provides human-readable output when needed.
type Severity int

const (
	// SeverityInfo indicates informational findings with no direct
	// privacy impact. Examples: editing software names, host computer.
	SeverityInfo Severity = iota

	// SeverityLow indicates minor issues. Examples: camera make/model,
	// original timestamps that could reveal a timezone.
	SeverityLow

	// SeverityMedium indicates findings that identify a specific
	// person or device. Examples: author/copyright fields, device
	// serial numbers.
	SeverityMedium

	// SeverityHigh indicates findings that should be scrubbed before
	// the images are re-published. Example: embedded GPS coordinates.
	SeverityHigh
)

// String returns a human-readable representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler for JSON output.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so serialized
// reports can be read back.
func (s *Severity) UnmarshalText(text []byte) error {
	switch string(text) {
	case "INFO":
		*s = SeverityInfo
	case "LOW":
		*s = SeverityLow
	case "MEDIUM":
		*s = SeverityMedium
	case "HIGH":
		*s = SeverityHigh
	default:
		return fmt.Errorf("unknown severity %q", text)
	}
	return nil
}

// Finding describes metadata discovered in a committed image file.
type Finding struct {
	// Type is a stable identifier for the finding kind
	// (e.g. "exif_gps", "exif_serial").
	Type string `json:"type"`

	// Title is a short human-readable summary.
	Title string `json:"title"`

	// Description explains why the metadata matters before publication.
	Description string `json:"description"`

	// Severity is the assessed impact level.
	Severity Severity `json:"severity"`

	// Value is the offending tag name and formatted value.
	Value string `json:"value"`

	// File is the local path of the image the metadata was found in.
	File string `json:"file"`
}
